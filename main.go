package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/judyrop/electronics-store/auth"
	"github.com/judyrop/electronics-store/config"
	"github.com/judyrop/electronics-store/logging"
	"github.com/judyrop/electronics-store/mailer"
	"github.com/judyrop/electronics-store/media"
	"github.com/judyrop/electronics-store/middleware"
	"github.com/judyrop/electronics-store/models"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "storefront:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	db, err := models.Open(cfg.DBDriver, cfg.DBDSN, logging.Gorm(log))
	if err != nil {
		return err
	}
	if err := models.Migrate(db); err != nil {
		return err
	}

	if len(args) > 0 && args[0] == "createsuperuser" {
		return createSuperuser(ctx, db, args[1:], log)
	}
	if len(args) > 0 {
		return fmt.Errorf("unknown command %q", args[0])
	}
	return serve(ctx, cfg, db, log)
}

func serve(ctx context.Context, cfg config.Config, db *gorm.DB, log *logrus.Logger) error {
	gin.SetMode(gin.ReleaseMode)

	services := Services{
		Config:  cfg,
		Log:     log,
		Mailer:  mailer.NewSMTPMailer(cfg.SMTPAddr(), cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom),
		Storage: media.NewStorage(cfg.MediaDir, cfg.MediaURL),
		Metrics: middleware.NewMetrics(),
		Limiter: middleware.NewRateLimiter(cfg.FormRateLimit, log.WithField("component", "ratelimit")),
	}
	if cfg.OIDCIssuer != "" {
		verifier, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			return err
		}
		services.Tokens = verifier
	}
	if err := os.MkdirAll(cfg.MediaDir, 0o755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           SetupRouter(db, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				services.Limiter.Cleanup(10 * time.Minute)
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// createSuperuser adds a staff account from the command line.
func createSuperuser(ctx context.Context, db *gorm.DB, args []string, log logrus.FieldLogger) error {
	fs := flag.NewFlagSet("createsuperuser", flag.ContinueOnError)
	username := fs.String("username", "", "login name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := newSuperuser(*username, *email, *password)
	if err != nil {
		return err
	}
	if err := models.NewUsersRepository(db).Create(ctx, user); err != nil {
		return fmt.Errorf("create superuser: %w", err)
	}
	log.WithField("username", user.Username).Info("superuser created")
	return nil
}

func newSuperuser(username, email, password string) (*models.User, error) {
	if msgs := auth.ValidateUsername(username); len(msgs) > 0 {
		return nil, fmt.Errorf("username: %s", msgs[0])
	}
	if password == "" {
		return nil, errors.New("password is required")
	}
	if len(password) > auth.MaxPasswordBytes {
		return nil, fmt.Errorf("password is longer than %d bytes", auth.MaxPasswordBytes)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsStaff:      true,
		IsActive:     true,
	}, nil
}
