package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/judyrop/electronics-store/app/forms"
	"github.com/judyrop/electronics-store/media"
	"github.com/judyrop/electronics-store/models"
)

const productNotFound = "Product not found"

type ProductResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	Image       *string   `json:"image"`
	Category    uint      `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsActive    bool      `json:"is_active"`
}

func (h *Handler) newProductResponse(p *models.Product) ProductResponse {
	var image *string
	if p.Image != "" {
		url := h.images.URL(p.Image)
		image = &url
	}
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(models.PriceDecimals),
		Image:       image,
		Category:    p.CategoryID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		IsActive:    p.IsActive,
	}
}

type productInput struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *uint            `json:"category"`
	IsActive    *bool            `json:"is_active"`
}

// apply copies the submitted fields onto product. Without partial, every
// required field must be present.
func (in productInput) apply(product *models.Product, partial bool) error {
	errs := models.ValidationErrors{}
	required := func(field string) {
		if !partial {
			errs.Add(field, "This field is required.")
		}
	}

	if in.Name != nil {
		product.Name = *in.Name
	} else {
		required("name")
	}
	if in.Description != nil {
		product.Description = *in.Description
	}
	if in.Price != nil {
		product.Price = *in.Price
	} else {
		required("price")
	}
	if in.Category != nil {
		product.CategoryID = *in.Category
		product.Category = models.Category{}
	} else {
		required("category")
	}
	if in.IsActive != nil {
		product.IsActive = *in.IsActive
	}
	return errs.Err()
}

// bindProduct reads a JSON or form encoded product body.
func bindProduct(c *gin.Context) (productInput, models.ValidationErrors) {
	var in productInput
	switch c.ContentType() {
	case gin.MIMEMultipartPOSTForm, gin.MIMEPOSTForm:
	default:
		if err := c.ShouldBindJSON(&in); err != nil {
			return in, forms.Errors(err)
		}
		return in, nil
	}

	errs := models.ValidationErrors{}
	if v, ok := c.GetPostForm("name"); ok {
		in.Name = &v
	}
	if v, ok := c.GetPostForm("description"); ok {
		in.Description = &v
	}
	if v, ok := c.GetPostForm("price"); ok {
		price, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			errs.Add("price", "A valid number is required.")
		} else {
			in.Price = &price
		}
	}
	if v, ok := c.GetPostForm("category"); ok {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs.Add("category", "Incorrect type. Expected pk value.")
		} else {
			category := uint(id)
			in.Category = &category
		}
	}
	if v, ok := c.GetPostForm("is_active"); ok {
		active := v == "on"
		if !active {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs.Add("is_active", "Must be a valid boolean.")
			}
			active = b
		}
		in.IsActive = &active
	}
	return in, errs
}

// saveUpload stores the optional multipart "image" file.
func (h *Handler) saveUpload(c *gin.Context) (string, error) {
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return "", nil
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return "", nil
	}
	f, err := fh.Open()
	if err != nil {
		return "", models.ValidationErrors{"image": {"The submitted file is empty."}}
	}
	defer f.Close()

	rel, err := h.images.SaveImage(f, "products")
	if errors.Is(err, media.ErrNotImage) || errors.Is(err, media.ErrTooLarge) {
		return "", models.ValidationErrors{"image": {err.Error()}}
	}
	return rel, err
}

func (h *Handler) discard(rel string) {
	if err := h.images.Remove(rel); err != nil {
		h.log.WithError(err).WithField("image", rel).Warn("remove product image")
	}
}

func (h *Handler) HandleListProducts(c *gin.Context) {
	errs := models.ValidationErrors{}
	filters := models.ProductFilters{
		CategoryID: uintQuery(c, "category", errs),
		IsActive:   boolQuery(c, "is_active", errs),
		Search:     strings.TrimSpace(c.Query("search")),
	}
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, errs)
		return
	}

	products, _, err := h.products.List(c.Request.Context(), filters, 0, 0)
	if err != nil {
		fail(c, err, productNotFound)
		return
	}

	response := make([]ProductResponse, len(products))
	for i := range products {
		response[i] = h.newProductResponse(&products[i])
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handler) HandleGetProduct(c *gin.Context) {
	id, ok := parseID(c, productNotFound)
	if !ok {
		return
	}
	product, err := h.products.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err, productNotFound)
		return
	}
	c.JSON(http.StatusOK, h.newProductResponse(product))
}

func (h *Handler) HandleCreateProduct(c *gin.Context) {
	in, errs := bindProduct(c)
	product := &models.Product{IsActive: true}
	if len(errs) == 0 {
		if err := in.apply(product, false); err != nil {
			errs = forms.Errors(err)
		}
	}
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, errs)
		return
	}

	image, err := h.saveUpload(c)
	if err != nil {
		fail(c, err, productNotFound)
		return
	}
	product.Image = image

	if err := h.products.Create(c.Request.Context(), product); err != nil {
		h.discard(image)
		fail(c, err, productNotFound)
		return
	}

	h.log.WithField("product_id", product.ID).Info("product created")
	c.JSON(http.StatusCreated, h.newProductResponse(product))
}

func (h *Handler) HandleUpdateProduct(c *gin.Context) {
	id, ok := parseID(c, productNotFound)
	if !ok {
		return
	}
	product, err := h.products.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err, productNotFound)
		return
	}

	in, errs := bindProduct(c)
	if len(errs) == 0 {
		if err := in.apply(product, c.Request.Method == http.MethodPatch); err != nil {
			errs = forms.Errors(err)
		}
	}
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, errs)
		return
	}

	oldImage := product.Image
	image, err := h.saveUpload(c)
	if err != nil {
		fail(c, err, productNotFound)
		return
	}
	if image != "" {
		product.Image = image
	}

	if err := h.products.Update(c.Request.Context(), product); err != nil {
		h.discard(image)
		fail(c, err, productNotFound)
		return
	}
	if image != "" {
		h.discard(oldImage)
	}
	c.JSON(http.StatusOK, h.newProductResponse(product))
}

func (h *Handler) HandleDeleteProduct(c *gin.Context) {
	id, ok := parseID(c, productNotFound)
	if !ok {
		return
	}
	product, err := h.products.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err, productNotFound)
		return
	}
	if err := h.products.Delete(c.Request.Context(), id); err != nil {
		fail(c, err, productNotFound)
		return
	}
	h.discard(product.Image)

	h.log.WithField("product_id", id).Info("product deleted")
	c.Status(http.StatusNoContent)
}
