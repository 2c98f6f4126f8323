package pages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/judyrop/electronics-store/app/forms"
	"github.com/judyrop/electronics-store/auth"
	"github.com/judyrop/electronics-store/media"
	"github.com/judyrop/electronics-store/models"
	"github.com/judyrop/electronics-store/web"
)

type ProductStore interface {
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context, filters models.ProductFilters, offset, limit int) ([]models.Product, int64, error)
	Get(ctx context.Context, id uint) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uint) error
}

type CategoryLister interface {
	List(ctx context.Context, filters models.CategoryFilters) ([]models.Category, error)
}

type ReviewStore interface {
	List(ctx context.Context, filters models.ReviewFilters) ([]models.Review, error)
	Create(ctx context.Context, review *models.Review) error
}

type ImageStore interface {
	SaveImage(r io.Reader, dir string) (string, error)
	Remove(rel string) error
}

// Handler serves the server-rendered product pages.
type Handler struct {
	products   ProductStore
	categories CategoryLister
	reviews    ReviewStore
	images     ImageStore
	log        logrus.FieldLogger
}

func NewHandler(p ProductStore, c CategoryLister, r ReviewStore, images ImageStore, log logrus.FieldLogger) *Handler {
	return &Handler{
		products:   p,
		categories: c,
		reviews:    r,
		images:     images,
		log:        log,
	}
}

// Register mounts the product pages on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", h.HandleList)
	r.GET("/product/:id/", h.HandleDetail)

	login := r.Group("/", auth.RequireLogin())
	login.GET("/product/add/", h.HandleNew)
	login.POST("/product/add/", h.HandleCreate)
	login.GET("/product/:id/edit/", h.HandleEdit)
	login.POST("/product/:id/edit/", h.HandleUpdate)
	login.GET("/product/:id/delete/", h.HandleConfirmDelete)
	login.POST("/product/:id/delete/", h.HandleDelete)
	login.POST("/product/:id/reviews/", h.HandleAddReview)
}

type productForm struct {
	Name        string `form:"name" binding:"required,max=200"`
	Description string `form:"description"`
	Price       string `form:"price" binding:"required"`
	Category    uint   `form:"category" binding:"required"`
	IsActive    bool   `form:"is_active"`
}

type reviewForm struct {
	Rating  int    `form:"rating" binding:"required"`
	Comment string `form:"comment"`
}

var ratings = []int{1, 2, 3, 4, 5}

func (h *Handler) HandleList(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.products.Count(ctx)
	if err != nil {
		web.ServerError(c, err)
		return
	}
	page, ok := Paginate(c.Query("page"), count, PerPage)
	if !ok {
		web.NotFound(c)
		return
	}

	products, _, err := h.products.List(ctx, models.ProductFilters{}, page.Offset(PerPage), PerPage)
	if err != nil {
		web.ServerError(c, err)
		return
	}

	web.Render(c, http.StatusOK, "product_list.html", gin.H{
		"title":    "Products",
		"products": products,
		"page":     page,
	})
}

func (h *Handler) HandleDetail(c *gin.Context) {
	product, ok := h.loadProduct(c)
	if !ok {
		return
	}
	h.renderDetail(c, http.StatusOK, product, reviewForm{Rating: models.MaxRating}, nil)
}

func (h *Handler) renderDetail(c *gin.Context, status int, product *models.Product, form reviewForm, errs models.ValidationErrors) {
	reviews, err := h.reviews.List(c.Request.Context(), models.ReviewFilters{ProductID: product.ID})
	if err != nil {
		web.ServerError(c, err)
		return
	}
	if errs == nil {
		errs = models.ValidationErrors{}
	}
	web.Render(c, status, "product_detail.html", gin.H{
		"title":   product.Name,
		"product": product,
		"reviews": reviews,
		"ratings": ratings,
		"form":    form,
		"errors":  errs,
	})
}

func (h *Handler) HandleNew(c *gin.Context) {
	h.renderForm(c, http.StatusOK, "Add product", "/product/add/", productForm{IsActive: true}, "", nil)
}

func (h *Handler) HandleCreate(c *gin.Context) {
	product := &models.Product{}
	form, errs := h.bindProduct(c, product)
	if len(errs) > 0 {
		h.renderForm(c, http.StatusBadRequest, "Add product", "/product/add/", form, "", errs)
		return
	}

	newImage, ok := h.saveUpload(c, errs)
	if !ok {
		h.renderForm(c, http.StatusBadRequest, "Add product", "/product/add/", form, "", errs)
		return
	}
	product.Image = newImage

	if err := h.products.Create(c.Request.Context(), product); err != nil {
		h.discard(newImage)
		if verr, ok := models.AsValidation(err); ok {
			h.renderForm(c, http.StatusBadRequest, "Add product", "/product/add/", form, "", verr)
			return
		}
		web.ServerError(c, err)
		return
	}

	h.log.WithField("product_id", product.ID).Info("product created")
	c.Redirect(http.StatusFound, productURL(product.ID))
}

func (h *Handler) HandleEdit(c *gin.Context) {
	product, ok := h.loadProduct(c)
	if !ok {
		return
	}
	form := productForm{
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price.StringFixed(models.PriceDecimals),
		Category:    product.CategoryID,
		IsActive:    product.IsActive,
	}
	h.renderForm(c, http.StatusOK, "Edit product", editURL(product.ID), form, product.Image, nil)
}

func (h *Handler) HandleUpdate(c *gin.Context) {
	product, ok := h.loadProduct(c)
	if !ok {
		return
	}
	oldImage := product.Image
	action := editURL(product.ID)

	form, errs := h.bindProduct(c, product)
	if len(errs) > 0 {
		h.renderForm(c, http.StatusBadRequest, "Edit product", action, form, oldImage, errs)
		return
	}

	newImage, ok := h.saveUpload(c, errs)
	if !ok {
		h.renderForm(c, http.StatusBadRequest, "Edit product", action, form, oldImage, errs)
		return
	}
	if newImage != "" {
		product.Image = newImage
	}

	if err := h.products.Update(c.Request.Context(), product); err != nil {
		h.discard(newImage)
		if verr, ok := models.AsValidation(err); ok {
			h.renderForm(c, http.StatusBadRequest, "Edit product", action, form, oldImage, verr)
			return
		}
		if errors.Is(err, models.ErrNotFound) {
			web.NotFound(c)
			return
		}
		web.ServerError(c, err)
		return
	}
	if newImage != "" {
		h.discard(oldImage)
	}

	c.Redirect(http.StatusFound, productURL(product.ID))
}

func (h *Handler) HandleConfirmDelete(c *gin.Context) {
	product, ok := h.loadProduct(c)
	if !ok {
		return
	}
	web.Render(c, http.StatusOK, "product_confirm_delete.html", gin.H{
		"title":   "Delete " + product.Name,
		"product": product,
	})
}

func (h *Handler) HandleDelete(c *gin.Context) {
	product, ok := h.loadProduct(c)
	if !ok {
		return
	}
	if err := h.products.Delete(c.Request.Context(), product.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			web.NotFound(c)
			return
		}
		web.ServerError(c, err)
		return
	}
	h.discard(product.Image)

	h.log.WithField("product_id", product.ID).Info("product deleted")
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) HandleAddReview(c *gin.Context) {
	product, ok := h.loadProduct(c)
	if !ok {
		return
	}
	user, _ := auth.CurrentUser(c)

	var form reviewForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderDetail(c, http.StatusBadRequest, product, form, forms.Errors(err))
		return
	}

	review := &models.Review{
		ProductID: product.ID,
		UserID:    user.ID,
		Rating:    form.Rating,
		Comment:   strings.TrimSpace(form.Comment),
	}
	if err := h.reviews.Create(c.Request.Context(), review); err != nil {
		if verr, ok := models.AsValidation(err); ok {
			h.renderDetail(c, http.StatusBadRequest, product, form, verr)
			return
		}
		web.ServerError(c, err)
		return
	}
	c.Redirect(http.StatusFound, productURL(product.ID))
}

// bindProduct reads the submitted form into product. The returned form
// echoes the submission for re-rendering.
func (h *Handler) bindProduct(c *gin.Context, product *models.Product) (productForm, models.ValidationErrors) {
	var form productForm
	errs := models.ValidationErrors{}
	if err := c.ShouldBind(&form); err != nil {
		errs.Merge(forms.Errors(err))
	}

	if raw := strings.TrimSpace(form.Price); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			errs.Add("price", "Enter a number.")
		} else {
			for _, msg := range models.ValidatePrice(price) {
				errs.Add("price", msg)
			}
			product.Price = price
		}
	}

	product.Name = form.Name
	product.Description = form.Description
	product.CategoryID = form.Category
	product.IsActive = form.IsActive
	return form, errs
}

// saveUpload stores the optional "image" file. It returns "" when nothing
// was uploaded and false when the upload was rejected.
func (h *Handler) saveUpload(c *gin.Context, errs models.ValidationErrors) (string, bool) {
	fh, err := c.FormFile("image")
	if err != nil {
		return "", true
	}
	f, err := fh.Open()
	if err != nil {
		errs.Add("image", "The submitted file is empty.")
		return "", false
	}
	defer f.Close()

	rel, err := h.images.SaveImage(f, "products")
	switch {
	case errors.Is(err, media.ErrNotImage), errors.Is(err, media.ErrTooLarge):
		errs.Add("image", err.Error())
		return "", false
	case err != nil:
		errs.Add("image", "The file could not be stored.")
		h.log.WithError(err).Error("store product image")
		return "", false
	}
	return rel, true
}

func (h *Handler) discard(rel string) {
	if err := h.images.Remove(rel); err != nil {
		h.log.WithError(err).WithField("image", rel).Warn("remove product image")
	}
}

func (h *Handler) renderForm(c *gin.Context, status int, title, action string, form productForm, currentImage string, errs models.ValidationErrors) {
	categories, err := h.categories.List(c.Request.Context(), models.CategoryFilters{})
	if err != nil {
		web.ServerError(c, err)
		return
	}
	if errs == nil {
		errs = models.ValidationErrors{}
	}
	web.Render(c, status, "product_form.html", gin.H{
		"title":        title,
		"action":       action,
		"form":         form,
		"categories":   categories,
		"currentImage": currentImage,
		"errors":       errs,
	})
}

func (h *Handler) loadProduct(c *gin.Context) (*models.Product, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		web.NotFound(c)
		return nil, false
	}
	product, err := h.products.Get(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			web.NotFound(c)
		} else {
			web.ServerError(c, err)
		}
		return nil, false
	}
	return product, true
}

func productURL(id uint) string { return fmt.Sprintf("/product/%d/", id) }
func editURL(id uint) string    { return fmt.Sprintf("/product/%d/edit/", id) }
