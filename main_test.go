package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/judyrop/electronics-store/app/api"
	"github.com/judyrop/electronics-store/auth"
	"github.com/judyrop/electronics-store/config"
	"github.com/judyrop/electronics-store/mailer"
	"github.com/judyrop/electronics-store/media"
	"github.com/judyrop/electronics-store/middleware"
	"github.com/judyrop/electronics-store/models"
)

const testSecret = "test-session-secret"

// Create DB connection for tests
func getTestDB(t *testing.T) *gorm.DB {
	db, err := models.Open("sqlite", "file::memory:?cache=shared", logger.Discard)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatal(err)
	}
	return db
}

// Helper: run a test inside a transaction and roll it back
func withTestTransaction(t *testing.T, testFunc func(tx *gorm.DB)) {
	db := getTestDB(t)

	tx := db.Begin()
	if tx.Error != nil {
		t.Fatal(tx.Error)
	}
	defer tx.Rollback()

	testFunc(tx)
}

func testServices(t *testing.T) (Services, *mailer.Outbox) {
	log, _ := test.NewNullLogger()
	outbox := &mailer.Outbox{}

	cfg := config.Default()
	cfg.SessionSecret = testSecret
	cfg.MediaDir = t.TempDir()

	return Services{
		Config:  cfg,
		Log:     log,
		Mailer:  outbox,
		Storage: media.NewStorage(cfg.MediaDir, cfg.MediaURL),
		Metrics: middleware.NewMetrics(),
		Limiter: middleware.NewRateLimiter(1000, log),
	}, outbox
}

type fakeVerifier map[string]string

func (f fakeVerifier) Verify(_ context.Context, raw string) (string, error) {
	if email, ok := f[raw]; ok {
		return email, nil
	}
	return "", fmt.Errorf("unknown token")
}

// seed creates a user, a category and a product.
func seed(t *testing.T, db *gorm.DB) (*models.User, *models.Category, *models.Product) {
	t.Helper()
	ctx := context.Background()

	hash, err := auth.HashPassword("Blue-Kettle-42")
	require.NoError(t, err)
	user := &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: hash, IsActive: true}
	require.NoError(t, models.NewUsersRepository(db).Create(ctx, user))

	category := &models.Category{Name: "Electronics", IsActive: true}
	require.NoError(t, models.NewCategoriesRepository(db).Create(ctx, category))

	product := &models.Product{
		Name:        "Laptop",
		Description: "A portable computer",
		Price:       decimal.RequireFromString("999.99"),
		CategoryID:  category.ID,
		IsActive:    true,
	}
	require.NoError(t, models.NewProductsRepository(db).Create(ctx, product))
	return user, category, product
}

func sessionFor(t *testing.T, user *models.User) *http.Cookie {
	t.Helper()
	token, err := auth.NewSessions(testSecret, time.Hour, false).Token(user.ID)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.SessionCookie, Value: token}
}

func jsonRequest(method, path string, payload interface{}, cookie *http.Cookie) *http.Request {
	var body bytes.Buffer
	if payload != nil {
		_ = json.NewEncoder(&body).Encode(payload)
	}
	req, _ := http.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func formRequest(path string, values url.Values) *http.Request {
	req, _ := http.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func do(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ----------------------- TESTS ----------------------- //

func TestCreateCategory(t *testing.T) {
	withTestTransaction(t, func(db *gorm.DB) {
		user, _, _ := seed(t, db)
		services, _ := testServices(t)
		router := SetupRouter(db, services)

		w := do(router, jsonRequest(http.MethodPost, "/api/categories/", map[string]interface{}{"name": "Audio"}, sessionFor(t, user)))
		require.Equal(t, http.StatusCreated, w.Code)

		var created api.CategoryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.True(t, created.IsActive)

		w = do(router, jsonRequest(http.MethodGet, fmt.Sprintf("/api/categories/%d/", created.ID), nil, nil))
		assert.Equal(t, http.StatusOK, w.Code)
		var fetched api.CategoryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
		assert.Equal(t, "Audio", fetched.Name)
	})
}

func TestCategoryRoundTrip(t *testing.T) {
	withTestTransaction(t, func(db *gorm.DB) {
		repo := models.NewCategoriesRepository(db)
		category := &models.Category{Name: "Electronics", IsActive: true}
		require.NoError(t, repo.Create(context.Background(), category))

		fetched, err := repo.Get(context.Background(), category.ID)
		require.NoError(t, err)
		assert.Equal(t, "Electronics", fetched.Name)
	})
}

func TestGetProduct(t *testing.T) {
	withTestTransaction(t, func(db *gorm.DB) {
		_, category, product := seed(t, db)
		services, _ := testServices(t)
		router := SetupRouter(db, services)

		w := do(router, jsonRequest(http.MethodGet, fmt.Sprintf("/api/products/%d/", product.ID), nil, nil))
		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Laptop", resp["name"])
		assert.Equal(t, "A portable computer", resp["description"])
		assert.Equal(t, "999.99", resp["price"])
		assert.Equal(t, float64(category.ID), resp["category"])
		assert.Equal(t, true, resp["is_active"])
		assert.Nil(t, resp["image"])
		assert.Contains(t, resp, "created_at")
		assert.Contains(t, resp, "updated_at")
	})
}

func TestListProductsEmpty(t *testing.T) {
	withTestTransaction(t, func(db *gorm.DB) {
		services, _ := testServices(t)
		router := SetupRouter(db, services)

		w := do(router, jsonRequest(http.MethodGet, "/api/products/", nil, nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})
}

func TestDeleteProduct(t *testing.T) {
	withTestTransaction(t, func(db *gorm.DB) {
		user, _, product := seed(t, db)
		services, _ := testServices(t)
		router := SetupRouter(db, services)
		path := fmt.Sprintf("/api/products/%d/", product.ID)

		w := do(router, jsonRequest(http.MethodDelete, path, nil, sessionFor(t, user)))
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = do(router, jsonRequest(http.MethodGet, path, nil, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)

		_, err := models.NewProductsRepository(db).Get(context.Background(), product.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestAPIValidation(t *testing.T) {
	testCases := []struct {
		name           string
		method         string
		path           func(p *models.Product, c *models.Category) string
		payload        func(p *models.Product, c *models.Category) map[string]interface{}
		anonymous      bool
		expectedStatus int
		expectedField  string
	}{
		{
			name:   "Anonymous write",
			method: http.MethodPost,
			path:   func(*models.Product, *models.Category) string { return "/api/categories/" },
			payload: func(*models.Product, *models.Category) map[string]interface{} {
				return map[string]interface{}{"name": "Audio"}
			},
			anonymous:      true,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:   "Negative price",
			method: http.MethodPost,
			path:   func(*models.Product, *models.Category) string { return "/api/products/" },
			payload: func(_ *models.Product, c *models.Category) map[string]interface{} {
				return map[string]interface{}{"name": "Phone", "price": "-5.00", "category": c.ID}
			},
			expectedStatus: http.StatusBadRequest,
			expectedField:  "price",
		},
		{
			name:   "Too many decimals",
			method: http.MethodPost,
			path:   func(*models.Product, *models.Category) string { return "/api/products/" },
			payload: func(_ *models.Product, c *models.Category) map[string]interface{} {
				return map[string]interface{}{"name": "Phone", "price": "1.005", "category": c.ID}
			},
			expectedStatus: http.StatusBadRequest,
			expectedField:  "price",
		},
		{
			name:   "Huge exponent price",
			method: http.MethodPost,
			path:   func(*models.Product, *models.Category) string { return "/api/products/" },
			payload: func(_ *models.Product, c *models.Category) map[string]interface{} {
				return map[string]interface{}{"name": "Phone", "price": "1e2000000000", "category": c.ID}
			},
			expectedStatus: http.StatusBadRequest,
			expectedField:  "price",
		},
		{
			name:   "Unknown category",
			method: http.MethodPost,
			path:   func(*models.Product, *models.Category) string { return "/api/products/" },
			payload: func(*models.Product, *models.Category) map[string]interface{} {
				return map[string]interface{}{"name": "Phone", "price": "5.00", "category": 9999}
			},
			expectedStatus: http.StatusBadRequest,
			expectedField:  "category",
		},
		{
			name:   "Rating out of range",
			method: http.MethodPost,
			path:   func(*models.Product, *models.Category) string { return "/api/reviews/" },
			payload: func(p *models.Product, _ *models.Category) map[string]interface{} {
				return map[string]interface{}{"product": p.ID, "rating": 6, "comment": "!"}
			},
			expectedStatus: http.StatusBadRequest,
			expectedField:  "rating",
		},
		{
			name:   "Duplicate category name",
			method: http.MethodPost,
			path:   func(*models.Product, *models.Category) string { return "/api/categories/" },
			payload: func(*models.Product, *models.Category) map[string]interface{} {
				return map[string]interface{}{"name": "Electronics"}
			},
			expectedStatus: http.StatusBadRequest,
			expectedField:  "name",
		},
		{
			name:   "Category still in use",
			method: http.MethodDelete,
			path: func(_ *models.Product, c *models.Category) string {
				return fmt.Sprintf("/api/categories/%d/", c.ID)
			},
			payload:        func(*models.Product, *models.Category) map[string]interface{} { return nil },
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			withTestTransaction(t, func(db *gorm.DB) {
				user, category, product := seed(t, db)
				services, _ := testServices(t)
				router := SetupRouter(db, services)

				var cookie *http.Cookie
				if !tc.anonymous {
					cookie = sessionFor(t, user)
				}
				var payload interface{}
				if p := tc.payload(product, category); p != nil {
					payload = p
				}

				w := do(router, jsonRequest(tc.method, tc.path(product, category), payload, cookie))
				assert.Equal(t, tc.expectedStatus, w.Code)
				if tc.expectedField != "" {
					var errs map[string][]string
					require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errs))
					assert.NotEmpty(t, errs[tc.expectedField], w.Body.String())
				}
			})
		})
	}
}

func TestCreateReviewUsesCaller(t *testing.T) {
	withTestTransaction(t, func(db *gorm.DB) {
		user, _, product := seed(t, db)
		services, _ := testServices(t)
		router := SetupRouter(db, services)

		w := do(router, jsonRequest(http.MethodPost, "/api/reviews/", map[string]interface{}{
			"product": product.ID,
			"rating":  5,
			"comment": "Excellent",
		}, sessionFor(t, user)))
		require.Equal(t, http.StatusCreated, w.Code)

		var review api.ReviewResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &review))
		assert.Equal(t, user.ID, review.User)
		assert.Equal(t, product.ID, review.Product)

		w = do(router, jsonRequest(http.MethodGet, fmt.Sprintf("/api/reviews/?product=%d", product.ID), nil, nil))
		assert.Equal(t, http.StatusOK, w.Code)
		var reviews []api.ReviewResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reviews))
		assert.Len(t, reviews, 1)
	})
}

func TestBearerToken(t *testing.T) {
	withTestTransaction(t, func(db *gorm.DB) {
		seed(t, db)
		services, _ := testServices(t)
		services.Tokens = fakeVerifier{"good-token": "ALICE@example.com", "stranger": "nobody@example.com"}
		router := SetupRouter(db, services)

		send := func(token string) int {
			req := jsonRequest(http.MethodPost, "/api/categories/", map[string]interface{}{"name": "Cameras-" + token}, nil)
			req.Header.Set("Authorization", "Bearer "+token)
			return do(router, req).Code
		}

		assert.Equal(t, http.StatusCreated, send("good-token"))
		assert.Equal(t, http.StatusUnauthorized, send("forged"))
		assert.Equal(t, http.StatusUnauthorized, send("stranger"))
	})
}

func TestProductPagination(t *testing.T) {
	withTestTransaction(t, func(db *gorm.DB) {
		_, category, _ := seed(t, db)
		products := models.NewProductsRepository(db)
		for i := 2; i <= 11; i++ {
			require.NoError(t, products.Create(context.Background(), &models.Product{
				Name:       fmt.Sprintf("Gadget %d", i),
				Price:      decimal.NewFromInt(int64(i)),
				CategoryID: category.ID,
				IsActive:   true,
			}))
		}
		services, _ := testServices(t)
		router := SetupRouter(db, services)

		w := do(router, httptest.NewRequest(http.MethodGet, "/?page=2", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, strings.Count(w.Body.String(), "<article>"))
		assert.Contains(t, w.Body.String(), "Gadget 11")
	})
}

func TestRegisterPasswordMismatch(t *testing.T) {
	withTestTransaction(t, func(db *gorm.DB) {
		services, _ := testServices(t)
		router := SetupRouter(db, services)

		w := do(router, formRequest("/register/", url.Values{
			"username":  {"bob"},
			"email":     {"bob@example.com"},
			"password1": {"Blue-Kettle-42"},
			"password2": {"Red-Kettle-42"},
		}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "The two password fields didn&#39;t match.")

		count, err := models.NewUsersRepository(db).Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}

func TestRegisterThenWrite(t *testing.T) {
	withTestTransaction(t, func(db *gorm.DB) {
		services, _ := testServices(t)
		router := SetupRouter(db, services)

		w := do(router, formRequest("/register/", url.Values{
			"username":  {"bob"},
			"email":     {"bob@example.com"},
			"password1": {"Blue-Kettle-42"},
			"password2": {"Blue-Kettle-42"},
		}))
		require.Equal(t, http.StatusFound, w.Code)

		var session *http.Cookie
		for _, c := range w.Result().Cookies() {
			if c.Name == auth.SessionCookie {
				session = c
			}
		}
		require.NotNil(t, session)

		w = do(router, jsonRequest(http.MethodPost, "/api/categories/", map[string]interface{}{"name": "Phones"}, session))
		assert.Equal(t, http.StatusCreated, w.Code)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(session)
		w = do(router, req)
		assert.Contains(t, w.Body.String(), "Signed in as bob")
	})
}

func TestContactSendsEmail(t *testing.T) {
	withTestTransaction(t, func(db *gorm.DB) {
		services, outbox := testServices(t)
		router := SetupRouter(db, services)

		w := do(router, formRequest("/contact/", url.Values{
			"name":    {"June Jun"},
			"email":   {"junejun@gmail.com"},
			"message": {"Is the laptop in stock?"},
		}))
		assert.Equal(t, http.StatusFound, w.Code)

		msgs := outbox.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, []string{"admin@electronicsstore.com"}, msgs[0].To)
		assert.Equal(t, "Contact form submission from June Jun", msgs[0].Subject)

		w = do(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Contains(t, w.Body.String(), `storefront_mail_sent_total{result="ok"} 1`)
	})
}

func TestContactRateLimit(t *testing.T) {
	withTestTransaction(t, func(db *gorm.DB) {
		services, outbox := testServices(t)
		services.Limiter = middleware.NewRateLimiter(1, services.Log)
		router := SetupRouter(db, services)

		values := url.Values{"name": {"June"}, "email": {"june@example.com"}, "message": {"Hi"}}
		assert.Equal(t, http.StatusFound, do(router, formRequest("/contact/", values)).Code)
		assert.Equal(t, http.StatusTooManyRequests, do(router, formRequest("/contact/", values)).Code)
		assert.Len(t, outbox.Messages(), 1)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	withTestTransaction(t, func(db *gorm.DB) {
		services, _ := testServices(t)
		router := SetupRouter(db, services)

		w := do(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

		do(router, httptest.NewRequest(http.MethodGet, "/api/", nil))
		w = do(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `storefront_http_requests_total{method="GET",route="/api/",status="200"} 1`)
	})
}

func TestNotFound(t *testing.T) {
	withTestTransaction(t, func(db *gorm.DB) {
		services, _ := testServices(t)
		router := SetupRouter(db, services)

		w := do(router, httptest.NewRequest(http.MethodGet, "/api/nothing/", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Not found"}`, w.Body.String())

		w = do(router, httptest.NewRequest(http.MethodGet, "/nothing/", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "The requested page was not found.")
	})
}

func TestNewSuperuser(t *testing.T) {
	user, err := newSuperuser("root", "root@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, user.IsStaff)
	assert.True(t, user.IsActive)
	assert.True(t, auth.CheckPasswordHash("s3cret-pass", user.PasswordHash))

	_, err = newSuperuser("bad name", "", "x")
	assert.ErrorContains(t, err, "username")

	_, err = newSuperuser("root", "", "")
	assert.ErrorContains(t, err, "password")

	_, err = newSuperuser("root", "", strings.Repeat("x", 73))
	assert.ErrorContains(t, err, "72 bytes")
}

func TestCreateSuperuserCommand(t *testing.T) {
	withTestTransaction(t, func(db *gorm.DB) {
		log, _ := test.NewNullLogger()
		err := createSuperuser(context.Background(), db, []string{"-username", "root", "-email", "root@example.com", "-password", "s3cret-pass"}, log)
		require.NoError(t, err)

		user, err := models.NewUsersRepository(db).GetByUsername(context.Background(), "root")
		require.NoError(t, err)
		assert.True(t, user.IsStaff)

		err = createSuperuser(context.Background(), db, []string{"-username", "root", "-password", "other"}, log)
		assert.ErrorIs(t, err, models.ErrDuplicate)
	})
}
