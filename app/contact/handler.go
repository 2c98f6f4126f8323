// Package contact serves the contact form that mails the site admin.
package contact

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/judyrop/electronics-store/app/forms"
	"github.com/judyrop/electronics-store/mailer"
	"github.com/judyrop/electronics-store/models"
	"github.com/judyrop/electronics-store/web"
)

// MailRecorder counts delivery attempts.
type MailRecorder interface {
	MailSent(err error)
}

type Handler struct {
	mailer  mailer.Mailer
	adminTo string
	metrics MailRecorder
	log     logrus.FieldLogger
}

func NewHandler(m mailer.Mailer, adminTo string, metrics MailRecorder, log logrus.FieldLogger) *Handler {
	return &Handler{mailer: m, adminTo: adminTo, metrics: metrics, log: log}
}

func (h *Handler) Register(r gin.IRouter, limit gin.HandlerFunc) {
	r.GET("/contact/", h.HandleForm)
	r.POST("/contact/", limit, h.HandleSubmit)
}

type contactForm struct {
	Name    string `form:"name" binding:"required,max=100"`
	Email   string `form:"email" binding:"required,email"`
	Message string `form:"message" binding:"required"`
}

func (h *Handler) HandleForm(c *gin.Context) {
	h.render(c, http.StatusOK, contactForm{}, nil)
}

func (h *Handler) HandleSubmit(c *gin.Context) {
	var form contactForm
	err := c.ShouldBind(&form)
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	if err == nil && (form.Name == "" || strings.TrimSpace(form.Message) == "") {
		errs := models.ValidationErrors{}
		if form.Name == "" {
			errs.Add("name", "This field is required.")
		}
		if strings.TrimSpace(form.Message) == "" {
			errs.Add("message", "This field is required.")
		}
		err = errs
	}
	if err != nil {
		h.render(c, http.StatusBadRequest, form, forms.Errors(err))
		return
	}

	msg := mailer.Message{
		From:    form.Email,
		ReplyTo: form.Email,
		To:      []string{h.adminTo},
		Subject: "Contact form submission from " + form.Name,
		Body:    form.Message,
	}
	err = h.mailer.Send(c.Request.Context(), msg)
	h.metrics.MailSent(err)
	if err != nil {
		h.log.WithError(err).WithField("reply_to", form.Email).Error("contact mail failed")
		web.ServerError(c, err)
		return
	}

	h.log.WithField("reply_to", form.Email).Info("contact mail sent")
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) render(c *gin.Context, status int, form contactForm, errs models.ValidationErrors) {
	if errs == nil {
		errs = models.ValidationErrors{}
	}
	web.Render(c, status, "contact.html", gin.H{
		"title":  "Contact us",
		"form":   form,
		"errors": errs,
	})
}
