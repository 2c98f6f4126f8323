package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/judyrop/electronics-store/models"
)

const userKey = "auth.user"

// UserLookup resolves the accounts referenced by sessions and tokens.
type UserLookup interface {
	Get(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type Authenticator struct {
	Users    UserLookup
	Sessions *Sessions
	// Tokens is optional; without it bearer tokens are ignored.
	Tokens TokenVerifier
	Log    logrus.FieldLogger
}

// Middleware attaches the signed-in user, if any, to the request. A bearer
// token that fails verification aborts with 401; a bad session cookie is
// dropped and the request continues anonymously.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if raw, ok := bearerToken(c); ok && a.Tokens != nil {
			email, err := a.Tokens.Verify(ctx, raw)
			if err != nil {
				a.Log.WithError(err).Debug("bearer token rejected")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
				return
			}
			user, err := a.Users.GetByEmail(ctx, email)
			if err != nil || !user.IsActive {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No active account for this token"})
				return
			}
			SetUser(c, user)
			c.Next()
			return
		}

		if raw, err := c.Cookie(SessionCookie); err == nil && raw != "" {
			id, err := a.Sessions.Parse(raw)
			if err == nil {
				user, lookupErr := a.Users.Get(ctx, id)
				if lookupErr == nil && user.IsActive {
					SetUser(c, user)
				} else {
					err = lookupErr
				}
			}
			if _, ok := CurrentUser(c); !ok {
				a.Log.WithError(err).Debug("session dropped")
				a.Sessions.End(c)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	const prefix = "Bearer "
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix)), true
}

// CurrentUser returns the user attached by Middleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// SetUser attaches user to the request as if it had signed in.
func SetUser(c *gin.Context, user *models.User) {
	c.Set(userKey, user)
}

// LoginURL is where anonymous visitors are sent, with next set to path.
func LoginURL(path string) string {
	return "/login/?next=" + url.QueryEscape(path)
}

// RequireLogin redirects anonymous page requests to the login form.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.Redirect(http.StatusFound, LoginURL(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireStaff lets staff through, redirects anonymous visitors to login
// and refuses everyone else.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.Redirect(http.StatusFound, LoginURL(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		if !user.IsStaff {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

// RequireUserForWrites answers 401 to anonymous API requests that are not
// GET, HEAD or OPTIONS.
func RequireUserForWrites() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if _, ok := CurrentUser(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication credentials were not provided."})
			return
		}
		c.Next()
	}
}

// SafeNext returns next when it is a local path, otherwise fallback.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return fallback
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" || u.Scheme != "" {
		return fallback
	}
	return next
}
