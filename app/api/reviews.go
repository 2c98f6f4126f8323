package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/judyrop/electronics-store/app/forms"
	"github.com/judyrop/electronics-store/auth"
	"github.com/judyrop/electronics-store/models"
)

const (
	reviewNotFound = "Review not found"
	notReviewOwner = "You do not have permission to perform this action."
)

type ReviewResponse struct {
	ID        uint      `json:"id"`
	Product   uint      `json:"product"`
	User      uint      `json:"user"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

func newReviewResponse(r *models.Review) ReviewResponse {
	return ReviewResponse{
		ID:        r.ID,
		Product:   r.ProductID,
		User:      r.UserID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}

// reviewInput has no user field; reviews always belong to the caller.
type reviewInput struct {
	Product *uint   `json:"product"`
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

func (in reviewInput) apply(review *models.Review, partial bool) error {
	errs := models.ValidationErrors{}
	if in.Product != nil {
		review.ProductID = *in.Product
		review.Product = models.Product{}
	} else if !partial {
		errs.Add("product", "This field is required.")
	}
	if in.Rating != nil {
		review.Rating = *in.Rating
	} else if !partial {
		errs.Add("rating", "This field is required.")
	}
	if in.Comment != nil {
		review.Comment = *in.Comment
	}
	return errs.Err()
}

// canEdit reports whether the caller wrote review or is staff, answering
// 403 otherwise.
func canEdit(c *gin.Context, review *models.Review) bool {
	user, ok := auth.CurrentUser(c)
	if ok && (user.IsStaff || user.ID == review.UserID) {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": notReviewOwner})
	return false
}

func (h *Handler) HandleListReviews(c *gin.Context) {
	errs := models.ValidationErrors{}
	filters := models.ReviewFilters{ProductID: uintQuery(c, "product", errs)}
	if raw := c.Query("rating"); raw != "" {
		rating, err := strconv.Atoi(raw)
		if err != nil {
			errs.Add("rating", "Enter a whole number.")
		}
		filters.Rating = rating
	}
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, errs)
		return
	}

	reviews, err := h.reviews.List(c.Request.Context(), filters)
	if err != nil {
		fail(c, err, reviewNotFound)
		return
	}

	response := make([]ReviewResponse, len(reviews))
	for i := range reviews {
		response[i] = newReviewResponse(&reviews[i])
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handler) HandleGetReview(c *gin.Context) {
	id, ok := parseID(c, reviewNotFound)
	if !ok {
		return
	}
	review, err := h.reviews.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err, reviewNotFound)
		return
	}
	c.JSON(http.StatusOK, newReviewResponse(review))
}

func (h *Handler) HandleCreateReview(c *gin.Context) {
	var in reviewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, forms.Errors(err))
		return
	}

	user, _ := auth.CurrentUser(c)
	review := &models.Review{UserID: user.ID}
	if err := in.apply(review, false); err != nil {
		fail(c, err, reviewNotFound)
		return
	}
	if err := h.reviews.Create(c.Request.Context(), review); err != nil {
		fail(c, err, reviewNotFound)
		return
	}
	c.JSON(http.StatusCreated, newReviewResponse(review))
}

func (h *Handler) HandleUpdateReview(c *gin.Context) {
	id, ok := parseID(c, reviewNotFound)
	if !ok {
		return
	}
	review, err := h.reviews.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err, reviewNotFound)
		return
	}
	if !canEdit(c, review) {
		return
	}

	var in reviewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, forms.Errors(err))
		return
	}
	if err := in.apply(review, c.Request.Method == http.MethodPatch); err != nil {
		fail(c, err, reviewNotFound)
		return
	}
	if err := h.reviews.Update(c.Request.Context(), review); err != nil {
		fail(c, err, reviewNotFound)
		return
	}
	c.JSON(http.StatusOK, newReviewResponse(review))
}

func (h *Handler) HandleDeleteReview(c *gin.Context) {
	id, ok := parseID(c, reviewNotFound)
	if !ok {
		return
	}
	review, err := h.reviews.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err, reviewNotFound)
		return
	}
	if !canEdit(c, review) {
		return
	}
	if err := h.reviews.Delete(c.Request.Context(), id); err != nil {
		fail(c, err, reviewNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}
