// Package accounts serves registration, login and logout.
package accounts

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/judyrop/electronics-store/app/forms"
	"github.com/judyrop/electronics-store/auth"
	"github.com/judyrop/electronics-store/models"
	"github.com/judyrop/electronics-store/web"
)

type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	TouchLogin(ctx context.Context, id uint, at time.Time) error
}

type Handler struct {
	users    UserStore
	sessions *auth.Sessions
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewHandler(users UserStore, sessions *auth.Sessions, log logrus.FieldLogger) *Handler {
	return &Handler{users: users, sessions: sessions, log: log, now: time.Now}
}

// Register mounts the account pages. limit guards the form posts.
func (h *Handler) Register(r gin.IRouter, limit gin.HandlerFunc) {
	r.GET("/register/", h.HandleRegisterForm)
	r.POST("/register/", limit, h.HandleRegister)
	r.GET("/login/", h.HandleLoginForm)
	r.POST("/login/", limit, h.HandleLogin)
	r.GET("/logout/", h.HandleLogout)
	r.POST("/logout/", h.HandleLogout)
}

type registerForm struct {
	Username  string `form:"username" binding:"required,max=150"`
	Email     string `form:"email" binding:"required,email"`
	Password1 string `form:"password1" binding:"required"`
	Password2 string `form:"password2" binding:"required,eqfield=Password1"`
}

type loginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

const invalidLogin = "Please enter a correct username and password. Note that both fields may be case-sensitive."

func (h *Handler) HandleRegisterForm(c *gin.Context) {
	h.renderRegister(c, http.StatusOK, registerForm{}, nil)
}

func (h *Handler) HandleRegister(c *gin.Context) {
	var form registerForm
	errs := models.ValidationErrors{}
	if err := c.ShouldBind(&form); err != nil {
		errs.Merge(forms.Errors(err))
	}
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)

	if _, ok := errs["username"]; !ok && form.Username != "" {
		for _, msg := range auth.ValidateUsername(form.Username) {
			errs.Add("username", msg)
		}
	}
	if _, ok := errs["password2"]; !ok && form.Password2 != "" {
		for _, msg := range auth.ValidatePassword(form.Password2, form.Username, form.Email) {
			errs.Add("password2", msg)
		}
	}
	if len(errs) > 0 {
		h.renderRegister(c, http.StatusBadRequest, form, errs)
		return
	}

	hash, err := auth.HashPassword(form.Password1)
	if err != nil {
		web.ServerError(c, err)
		return
	}
	user := &models.User{
		Username:     form.Username,
		Email:        form.Email,
		PasswordHash: hash,
		IsActive:     true,
		DateJoined:   h.now(),
	}
	if err := h.users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			errs.Add("username", "A user with that username already exists.")
			h.renderRegister(c, http.StatusBadRequest, form, errs)
			return
		}
		web.ServerError(c, err)
		return
	}

	if err := h.login(c, user); err != nil {
		web.ServerError(c, err)
		return
	}
	h.log.WithField("user_id", user.ID).Info("user registered")
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) HandleLoginForm(c *gin.Context) {
	h.renderLogin(c, http.StatusOK, loginForm{}, c.Query("next"), nil)
}

func (h *Handler) HandleLogin(c *gin.Context) {
	next := c.PostForm("next")

	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderLogin(c, http.StatusBadRequest, form, next, forms.Errors(err))
		return
	}

	user, err := h.users.GetByUsername(c.Request.Context(), strings.TrimSpace(form.Username))
	switch {
	case errors.Is(err, models.ErrUserNotFound):
	case err != nil:
		web.ServerError(c, err)
		return
	}
	if !auth.Authenticate(user, form.Password) {
		h.log.WithField("username", form.Username).Info("login failed")
		h.renderLogin(c, http.StatusBadRequest, form, next, models.ValidationErrors{
			models.NonFieldErrors: {invalidLogin},
		})
		return
	}

	if err := h.login(c, user); err != nil {
		web.ServerError(c, err)
		return
	}
	c.Redirect(http.StatusFound, auth.SafeNext(next, "/"))
}

func (h *Handler) HandleLogout(c *gin.Context) {
	h.sessions.End(c)
	c.Redirect(http.StatusFound, "/")
}

// login starts the session cookie and stamps last_login.
func (h *Handler) login(c *gin.Context, user *models.User) error {
	if err := h.sessions.Start(c, user.ID); err != nil {
		return err
	}
	if err := h.users.TouchLogin(c.Request.Context(), user.ID, h.now()); err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Warn("update last login")
	}
	return nil
}

func (h *Handler) renderRegister(c *gin.Context, status int, form registerForm, errs models.ValidationErrors) {
	web.Render(c, status, "register.html", gin.H{
		"title":  "Register",
		"form":   form,
		"errors": orEmpty(errs),
	})
}

func (h *Handler) renderLogin(c *gin.Context, status int, form loginForm, next string, errs models.ValidationErrors) {
	web.Render(c, status, "login.html", gin.H{
		"title":  "Log in",
		"form":   form,
		"next":   next,
		"errors": orEmpty(errs),
	})
}

func orEmpty(errs models.ValidationErrors) models.ValidationErrors {
	if errs == nil {
		return models.ValidationErrors{}
	}
	return errs
}
