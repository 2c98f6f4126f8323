// Package web holds the HTML templates of the storefront.
package web

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/judyrop/electronics-store/auth"
	"github.com/judyrop/electronics-store/models"
)

//go:embed templates/*.html
var files embed.FS

// Templates parses every page. mediaURL maps a stored file path to its
// public URL.
func Templates(mediaURL func(string) string) *template.Template {
	funcs := template.FuncMap{
		"price": func(d decimal.Decimal) string { return d.StringFixed(models.PriceDecimals) },
		"date":  func(t time.Time) string { return t.Format("Jan 2, 2006, 15:04") },
		"media": mediaURL,
		"add":   func(a, b int) int { return a + b },
		"stars": func(n int) []struct{} { return make([]struct{}, n) },
		"deref": func(t *time.Time) string {
			if t == nil {
				return "never"
			}
			return t.Format("Jan 2, 2006, 15:04")
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(files, "templates/*.html"))
}

// Render writes the named page. It fills in the signed-in user and an empty
// error set so templates can index them unconditionally.
func Render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if user, ok := auth.CurrentUser(c); ok {
		data["user"] = user
	}
	if _, ok := data["errors"]; !ok {
		data["errors"] = models.ValidationErrors{}
	}
	c.HTML(status, name, data)
}

// NotFound renders the 404 page.
func NotFound(c *gin.Context) {
	Render(c, http.StatusNotFound, "error.html", gin.H{
		"title":   "Not found",
		"message": "The requested page was not found.",
	})
}

// ServerError records err on the context for the request log and renders
// the 500 page.
func ServerError(c *gin.Context, err error) {
	_ = c.Error(err)
	Render(c, http.StatusInternalServerError, "error.html", gin.H{
		"title":   "Server error",
		"message": "Something went wrong. Please try again later.",
	})
}
