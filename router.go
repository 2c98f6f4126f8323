package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/judyrop/electronics-store/app/accounts"
	"github.com/judyrop/electronics-store/app/admin"
	"github.com/judyrop/electronics-store/app/api"
	"github.com/judyrop/electronics-store/app/contact"
	"github.com/judyrop/electronics-store/app/forms"
	"github.com/judyrop/electronics-store/app/pages"
	"github.com/judyrop/electronics-store/auth"
	"github.com/judyrop/electronics-store/config"
	"github.com/judyrop/electronics-store/mailer"
	"github.com/judyrop/electronics-store/media"
	"github.com/judyrop/electronics-store/middleware"
	"github.com/judyrop/electronics-store/models"
	"github.com/judyrop/electronics-store/web"
)

// Services are the collaborators the router needs besides the database.
type Services struct {
	Config  config.Config
	Log     *logrus.Logger
	Mailer  mailer.Mailer
	Storage *media.Storage
	Metrics *middleware.Metrics
	Limiter *middleware.RateLimiter
	// Tokens verifies API bearer tokens; nil disables them.
	Tokens auth.TokenVerifier
}

func SetupRouter(db *gorm.DB, s Services) *gin.Engine {
	forms.Setup()

	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, err any) {
		s.Log.WithFields(logrus.Fields{
			"panic":      err,
			"request_id": middleware.RequestID(c),
		}).Error("handler panicked")
		c.AbortWithStatus(http.StatusInternalServerError)
	}))
	r.Use(middleware.RequestLogger(s.Log))
	r.Use(s.Metrics.Instrument())
	if len(s.Config.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.Config.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.SetHTMLTemplate(web.Templates(s.Storage.URL))
	r.Static(strings.TrimSuffix(s.Config.MediaURL, "/"), s.Storage.Root())

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(s.Metrics.Handler()))

	users := models.NewUsersRepository(db)
	categories := models.NewCategoriesRepository(db)
	products := models.NewProductsRepository(db)
	reviews := models.NewReviewsRepository(db)

	sessions := auth.NewSessions(s.Config.SessionSecret, s.Config.SessionTTL, s.Config.SecureCookies)
	authenticator := &auth.Authenticator{
		Users:    users,
		Sessions: sessions,
		Tokens:   s.Tokens,
		Log:      s.Log.WithField("component", "auth"),
	}
	r.Use(authenticator.Middleware())

	limit := s.Limiter.Limit()

	pages.NewHandler(products, categories, reviews, s.Storage, s.Log.WithField("component", "pages")).Register(r)
	accounts.NewHandler(users, sessions, s.Log.WithField("component", "accounts")).Register(r, limit)
	contact.NewHandler(s.Mailer, s.Config.AdminEmail, s.Metrics, s.Log.WithField("component", "contact")).Register(r, limit)
	admin.NewHandler(categories, products, reviews, users, s.Log.WithField("component", "admin")).Register(r)
	api.NewHandler(products, categories, reviews, s.Storage, s.Log.WithField("component", "api")).Register(r.Group("/api"))

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		web.NotFound(c)
	})

	return r
}
