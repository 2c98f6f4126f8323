package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/judyrop/electronics-store/app/forms"
	"github.com/judyrop/electronics-store/models"
)

const categoryNotFound = "Category not found"

type CategoryResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsActive  bool      `json:"is_active"`
}

func newCategoryResponse(c *models.Category) CategoryResponse {
	return CategoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		IsActive:  c.IsActive,
	}
}

type categoryInput struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
}

// apply copies the submitted fields onto category. Without partial, every
// required field must be present.
func (in categoryInput) apply(category *models.Category, partial bool) error {
	errs := models.ValidationErrors{}
	if in.Name != nil {
		category.Name = *in.Name
	} else if !partial {
		errs.Add("name", "This field is required.")
	}
	if in.IsActive != nil {
		category.IsActive = *in.IsActive
	}
	return errs.Err()
}

func (h *Handler) HandleListCategories(c *gin.Context) {
	errs := models.ValidationErrors{}
	filters := models.CategoryFilters{IsActive: boolQuery(c, "is_active", errs)}
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, errs)
		return
	}

	categories, err := h.categories.List(c.Request.Context(), filters)
	if err != nil {
		fail(c, err, categoryNotFound)
		return
	}

	response := make([]CategoryResponse, len(categories))
	for i := range categories {
		response[i] = newCategoryResponse(&categories[i])
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handler) HandleGetCategory(c *gin.Context) {
	id, ok := parseID(c, categoryNotFound)
	if !ok {
		return
	}
	category, err := h.categories.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err, categoryNotFound)
		return
	}
	c.JSON(http.StatusOK, newCategoryResponse(category))
}

func (h *Handler) HandleCreateCategory(c *gin.Context) {
	var in categoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, forms.Errors(err))
		return
	}

	category := &models.Category{IsActive: true}
	if err := in.apply(category, false); err != nil {
		fail(c, err, categoryNotFound)
		return
	}
	if err := h.categories.Create(c.Request.Context(), category); err != nil {
		fail(c, err, categoryNotFound)
		return
	}
	c.JSON(http.StatusCreated, newCategoryResponse(category))
}

func (h *Handler) HandleUpdateCategory(c *gin.Context) {
	id, ok := parseID(c, categoryNotFound)
	if !ok {
		return
	}
	category, err := h.categories.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err, categoryNotFound)
		return
	}

	var in categoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, forms.Errors(err))
		return
	}
	if err := in.apply(category, c.Request.Method == http.MethodPatch); err != nil {
		fail(c, err, categoryNotFound)
		return
	}
	if err := h.categories.Update(c.Request.Context(), category); err != nil {
		fail(c, err, categoryNotFound)
		return
	}
	c.JSON(http.StatusOK, newCategoryResponse(category))
}

func (h *Handler) HandleDeleteCategory(c *gin.Context) {
	id, ok := parseID(c, categoryNotFound)
	if !ok {
		return
	}
	if err := h.categories.Delete(c.Request.Context(), id); err != nil {
		fail(c, err, categoryNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}
