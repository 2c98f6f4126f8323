// Package admin serves the staff-only management pages.
package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/judyrop/electronics-store/auth"
	"github.com/judyrop/electronics-store/models"
	"github.com/judyrop/electronics-store/web"
)

type CategoryStore interface {
	List(ctx context.Context, filters models.CategoryFilters) ([]models.Category, error)
	Get(ctx context.Context, id uint) (*models.Category, error)
	Count(ctx context.Context) (int64, error)
	SetActive(ctx context.Context, id uint, active bool) error
}

type ProductStore interface {
	List(ctx context.Context, filters models.ProductFilters, offset, limit int) ([]models.Product, int64, error)
	Get(ctx context.Context, id uint) (*models.Product, error)
	Count(ctx context.Context) (int64, error)
	SetActive(ctx context.Context, id uint, active bool) error
}

type ReviewStore interface {
	List(ctx context.Context, filters models.ReviewFilters) ([]models.Review, error)
	Count(ctx context.Context) (int64, error)
}

type Counter interface {
	Count(ctx context.Context) (int64, error)
}

type Handler struct {
	categories CategoryStore
	products   ProductStore
	reviews    ReviewStore
	users      Counter
	log        logrus.FieldLogger
}

func NewHandler(c CategoryStore, p ProductStore, r ReviewStore, users Counter, log logrus.FieldLogger) *Handler {
	return &Handler{categories: c, products: p, reviews: r, users: users, log: log}
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/admin", auth.RequireStaff())
	g.GET("/", h.HandleIndex)
	g.GET("/categories/", h.HandleCategories)
	g.POST("/categories/:id/toggle/", h.HandleToggleCategory)
	g.GET("/products/", h.HandleProducts)
	g.POST("/products/:id/toggle/", h.HandleToggleProduct)
	g.GET("/reviews/", h.HandleReviews)
}

func (h *Handler) HandleIndex(c *gin.Context) {
	ctx := c.Request.Context()
	counts := gin.H{}
	for name, store := range map[string]Counter{
		"categories": h.categories,
		"products":   h.products,
		"reviews":    h.reviews,
		"users":      h.users,
	} {
		n, err := store.Count(ctx)
		if err != nil {
			web.ServerError(c, err)
			return
		}
		counts[name] = n
	}
	web.Render(c, http.StatusOK, "admin_index.html", gin.H{
		"title":  "Site administration",
		"counts": counts,
	})
}

func (h *Handler) HandleCategories(c *gin.Context) {
	categories, err := h.categories.List(c.Request.Context(), models.CategoryFilters{})
	if err != nil {
		web.ServerError(c, err)
		return
	}
	web.Render(c, http.StatusOK, "admin_categories.html", gin.H{
		"title":      "Categories",
		"categories": categories,
	})
}

func (h *Handler) HandleProducts(c *gin.Context) {
	ctx := c.Request.Context()

	filters := models.ProductFilters{Search: strings.TrimSpace(c.Query("q"))}
	if id, err := strconv.ParseUint(c.Query("category"), 10, 64); err == nil {
		filters.CategoryID = uint(id)
	}
	isActive := c.Query("is_active")
	if b, err := strconv.ParseBool(isActive); err == nil {
		filters.IsActive = &b
	} else {
		isActive = ""
	}

	products, total, err := h.products.List(ctx, filters, 0, 0)
	if err != nil {
		web.ServerError(c, err)
		return
	}
	categories, err := h.categories.List(ctx, models.CategoryFilters{})
	if err != nil {
		web.ServerError(c, err)
		return
	}

	web.Render(c, http.StatusOK, "admin_products.html", gin.H{
		"title":      "Products",
		"products":   products,
		"total":      total,
		"categories": categories,
		"filters": gin.H{
			"q":         filters.Search,
			"category":  filters.CategoryID,
			"is_active": isActive,
		},
	})
}

func (h *Handler) HandleReviews(c *gin.Context) {
	ctx := c.Request.Context()

	var filters models.ReviewFilters
	if id, err := strconv.ParseUint(c.Query("product"), 10, 64); err == nil {
		filters.ProductID = uint(id)
	}
	if n, err := strconv.Atoi(c.Query("rating")); err == nil && n >= models.MinRating && n <= models.MaxRating {
		filters.Rating = n
	}

	reviews, err := h.reviews.List(ctx, filters)
	if err != nil {
		web.ServerError(c, err)
		return
	}
	products, _, err := h.products.List(ctx, models.ProductFilters{}, 0, 0)
	if err != nil {
		web.ServerError(c, err)
		return
	}

	web.Render(c, http.StatusOK, "admin_reviews.html", gin.H{
		"title":    "Reviews",
		"reviews":  reviews,
		"products": products,
		"ratings":  []int{1, 2, 3, 4, 5},
		"filters": gin.H{
			"product": filters.ProductID,
			"rating":  filters.Rating,
		},
	})
}

func (h *Handler) HandleToggleCategory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	category, err := h.categories.Get(c.Request.Context(), id)
	if err == nil {
		err = h.categories.SetActive(c.Request.Context(), id, !category.IsActive)
	}
	if !h.handled(c, err) {
		return
	}
	h.log.WithFields(logrus.Fields{"category_id": id, "is_active": !category.IsActive}).Info("category toggled")
	c.Redirect(http.StatusFound, "/admin/categories/")
}

func (h *Handler) HandleToggleProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	product, err := h.products.Get(c.Request.Context(), id)
	if err == nil {
		err = h.products.SetActive(c.Request.Context(), id, !product.IsActive)
	}
	if !h.handled(c, err) {
		return
	}
	h.log.WithFields(logrus.Fields{"product_id": id, "is_active": !product.IsActive}).Info("product toggled")
	c.Redirect(http.StatusFound, "/admin/products/")
}

// handled renders the error page for err and reports whether the caller
// may continue.
func (h *Handler) handled(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, models.ErrNotFound):
		web.NotFound(c)
	default:
		web.ServerError(c, err)
	}
	return false
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		web.NotFound(c)
		return 0, false
	}
	return uint(id), true
}
