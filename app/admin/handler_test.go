package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/judyrop/electronics-store/auth"
	"github.com/judyrop/electronics-store/models"
	"github.com/judyrop/electronics-store/web"
)

// withTestDB runs fn against a fresh in-memory database seeded with two
// products, one review and one staff user.
func withTestDB(t *testing.T, fn func(db *gorm.DB)) {
	db, err := models.Open("sqlite", "file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared", logger.Discard)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	tx := db.Begin()
	require.NoError(t, tx.Error)
	defer tx.Rollback()

	ctx := context.Background()
	electronics := &models.Category{Name: "Electronics", IsActive: true}
	audio := &models.Category{Name: "Audio", IsActive: true}
	require.NoError(t, models.NewCategoriesRepository(tx).Create(ctx, electronics))
	require.NoError(t, models.NewCategoriesRepository(tx).Create(ctx, audio))

	products := models.NewProductsRepository(tx)
	laptop := &models.Product{Name: "Laptop", Description: "Fast", Price: decimal.RequireFromString("999.99"), CategoryID: electronics.ID, IsActive: true}
	speaker := &models.Product{Name: "Speaker", Description: "Loud laptop companion", Price: decimal.RequireFromString("49.00"), CategoryID: audio.ID}
	require.NoError(t, products.Create(ctx, laptop))
	require.NoError(t, products.Create(ctx, speaker))

	staff := &models.User{Username: "admin", Email: "admin@example.com", PasswordHash: "x", IsStaff: true, IsActive: true}
	require.NoError(t, models.NewUsersRepository(tx).Create(ctx, staff))
	require.NoError(t, models.NewReviewsRepository(tx).Create(ctx, &models.Review{ProductID: laptop.ID, UserID: staff.ID, Rating: 4, Comment: "Solid"}))

	fn(tx)
}

func newRouter(db *gorm.DB, user *models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log, _ := test.NewNullLogger()

	r := gin.New()
	r.SetHTMLTemplate(web.Templates(func(s string) string { return s }))
	if user != nil {
		r.Use(func(c *gin.Context) { auth.SetUser(c, user) })
	}
	NewHandler(
		models.NewCategoriesRepository(db),
		models.NewProductsRepository(db),
		models.NewReviewsRepository(db),
		models.NewUsersRepository(db),
		log,
	).Register(r)
	return r
}

var staffUser = &models.User{ID: 1, Username: "admin", IsStaff: true, IsActive: true}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestAccess(t *testing.T) {
	withTestDB(t, func(db *gorm.DB) {
		rec := get(newRouter(db, nil), "/admin/")
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login/?next=%2Fadmin%2F", rec.Header().Get("Location"))

		rec = get(newRouter(db, &models.User{ID: 2, Username: "bob", IsActive: true}), "/admin/")
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = get(newRouter(db, staffUser), "/admin/")
		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `<a href="/admin/products/">Products</a></th><td>2</td>`)
		assert.Contains(t, body, `<a href="/admin/reviews/">Reviews</a></th><td>1</td>`)
	})
}

func TestProductList(t *testing.T) {
	testCases := []struct {
		name     string
		query    string
		contains []string
		excludes []string
	}{
		{name: "All", query: "", contains: []string{"Laptop", "Speaker", "2 products"}},
		{name: "Search covers description", query: "?q=LAPTOP", contains: []string{"Laptop", "Speaker"}},
		{name: "Inactive only", query: "?is_active=false", contains: []string{"Speaker", "1 products"}, excludes: []string{">Laptop<"}},
		{name: "By category", query: "?category=1", contains: []string{">Laptop<"}, excludes: []string{">Speaker<"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			withTestDB(t, func(db *gorm.DB) {
				rec := get(newRouter(db, staffUser), "/admin/products/"+tc.query)

				require.Equal(t, http.StatusOK, rec.Code)
				for _, s := range tc.contains {
					assert.Contains(t, rec.Body.String(), s)
				}
				for _, s := range tc.excludes {
					assert.NotContains(t, rec.Body.String(), s)
				}
			})
		})
	}
}

func TestReviewList(t *testing.T) {
	withTestDB(t, func(db *gorm.DB) {
		r := newRouter(db, staffUser)

		rec := get(r, "/admin/reviews/?rating=4")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "<td>Laptop</td><td>admin</td><td>4</td>")

		rec = get(r, "/admin/reviews/?rating=2")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "<td>Laptop</td>")
	})
}

func TestToggle(t *testing.T) {
	withTestDB(t, func(db *gorm.DB) {
		r := newRouter(db, staffUser)
		ctx := context.Background()

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/products/1/toggle/", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/admin/products/", rec.Header().Get("Location"))

		product, err := models.NewProductsRepository(db).Get(ctx, 1)
		require.NoError(t, err)
		assert.False(t, product.IsActive)

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/categories/2/toggle/", nil))
		assert.Equal(t, http.StatusFound, rec.Code)

		category, err := models.NewCategoriesRepository(db).Get(ctx, 2)
		require.NoError(t, err)
		assert.False(t, category.IsActive)

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/categories/99/toggle/", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCategoryList(t *testing.T) {
	withTestDB(t, func(db *gorm.DB) {
		rec := get(newRouter(db, staffUser), "/admin/categories/")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Electronics")
		assert.Contains(t, rec.Body.String(), `action="/admin/categories/2/toggle/"`)
	})
}
