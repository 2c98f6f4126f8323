// Package api serves the JSON API over products, categories and reviews.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/judyrop/electronics-store/auth"
	"github.com/judyrop/electronics-store/models"
)

type ProductStore interface {
	List(ctx context.Context, filters models.ProductFilters, offset, limit int) ([]models.Product, int64, error)
	Get(ctx context.Context, id uint) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uint) error
}

type CategoryStore interface {
	List(ctx context.Context, filters models.CategoryFilters) ([]models.Category, error)
	Get(ctx context.Context, id uint) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id uint) error
}

type ReviewStore interface {
	List(ctx context.Context, filters models.ReviewFilters) ([]models.Review, error)
	Get(ctx context.Context, id uint) (*models.Review, error)
	Create(ctx context.Context, review *models.Review) error
	Update(ctx context.Context, review *models.Review) error
	Delete(ctx context.Context, id uint) error
}

type ImageStore interface {
	SaveImage(r io.Reader, dir string) (string, error)
	Remove(rel string) error
	URL(rel string) string
}

type Handler struct {
	products   ProductStore
	categories CategoryStore
	reviews    ReviewStore
	images     ImageStore
	log        logrus.FieldLogger
}

func NewHandler(p ProductStore, c CategoryStore, r ReviewStore, images ImageStore, log logrus.FieldLogger) *Handler {
	return &Handler{
		products:   p,
		categories: c,
		reviews:    r,
		images:     images,
		log:        log,
	}
}

// Register mounts the API under g. Reads are public, writes need a user.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.Use(auth.RequireUserForWrites())

	g.GET("/", h.HandleRoot)

	g.GET("/products/", h.HandleListProducts)
	g.POST("/products/", h.HandleCreateProduct)
	g.GET("/products/:id/", h.HandleGetProduct)
	g.PUT("/products/:id/", h.HandleUpdateProduct)
	g.PATCH("/products/:id/", h.HandleUpdateProduct)
	g.DELETE("/products/:id/", h.HandleDeleteProduct)

	g.GET("/categories/", h.HandleListCategories)
	g.POST("/categories/", h.HandleCreateCategory)
	g.GET("/categories/:id/", h.HandleGetCategory)
	g.PUT("/categories/:id/", h.HandleUpdateCategory)
	g.PATCH("/categories/:id/", h.HandleUpdateCategory)
	g.DELETE("/categories/:id/", h.HandleDeleteCategory)

	g.GET("/reviews/", h.HandleListReviews)
	g.POST("/reviews/", h.HandleCreateReview)
	g.GET("/reviews/:id/", h.HandleGetReview)
	g.PUT("/reviews/:id/", h.HandleUpdateReview)
	g.PATCH("/reviews/:id/", h.HandleUpdateReview)
	g.DELETE("/reviews/:id/", h.HandleDeleteReview)
}

// HandleRoot lists the collection URLs.
func (h *Handler) HandleRoot(c *gin.Context) {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	base := scheme + "://" + c.Request.Host + "/api/"
	c.JSON(http.StatusOK, gin.H{
		"products":   base + "products/",
		"categories": base + "categories/",
		"reviews":    base + "reviews/",
	})
}

// parseID reads the :id path parameter, answering 404 when it is not a
// positive integer.
func parseID(c *gin.Context, notFound string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return 0, false
	}
	return uint(id), true
}

// fail writes the response for a store error.
func fail(c *gin.Context, err error, notFound string) {
	if verr, ok := models.AsValidation(err); ok {
		c.JSON(http.StatusBadRequest, verr)
		return
	}
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
	case errors.Is(err, models.ErrCategoryInUse):
		c.JSON(http.StatusConflict, gin.H{"error": "Cannot delete this category because products still reference it."})
	case errors.Is(err, models.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "A record with these values already exists."})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// boolQuery parses an optional boolean query parameter.
func boolQuery(c *gin.Context, key string, errs models.ValidationErrors) *bool {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		errs.Add(key, "Must be a valid boolean.")
		return nil
	}
	return &b
}

// uintQuery parses an optional numeric id query parameter.
func uintQuery(c *gin.Context, key string, errs models.ValidationErrors) uint {
	raw := c.Query(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		errs.Add(key, "Enter a whole number.")
		return 0
	}
	return uint(n)
}
