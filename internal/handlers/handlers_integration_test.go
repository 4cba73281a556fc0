package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"catalog/internal/cache"
	"catalog/internal/currency"
	"catalog/internal/database"
	"catalog/internal/metrics"
	"catalog/internal/middleware"
	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/server"
	"catalog/internal/services"
	"catalog/internal/validation"
	"catalog/internal/views"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupApp builds the full application over a private in-memory SQLite database.
func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open("sqlite", dsn, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	repo := repositories.NewGORMProductRepository(db)
	productService := services.NewProductService(repo, cache.NewMemory(time.Minute), nil, metrics.New(prometheus.NewRegistry()))

	return server.NewApp(server.Deps{
		Service: productService,
		Presenter: views.Presenter{
			Money:      currency.MustFormatter("pt-BR", "BRL"),
			DateLayout: "02/01/2006",
			Locale:     "pt-BR",
		},
		Metrics: metrics.New(prometheus.NewRegistry()),
	})
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func postForm(t *testing.T, app *fiber.App, path string, form url.Values) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// get sends a GET request, forwarding the flash cookie of prev when present.
func get(t *testing.T, app *fiber.App, path string, prev *http.Response) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if prev != nil {
		for _, ck := range prev.Cookies() {
			if ck.Name == middleware.FlashCookie && ck.Value != "" {
				req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
			}
		}
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, string(body)
}

func sendJSON(t *testing.T, app *fiber.App, method, path string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func listProducts(t *testing.T, app *fiber.App) []models.Product {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/products", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var products []models.Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	return products
}

func TestPages_PenLifecycle(t *testing.T) {
	app := setupApp(t)

	// Create
	resp := postForm(t, app, "/products", url.Values{"name": {"Pen"}, "description": {""}, "price": {"1.50"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/products", resp.Header.Get("Location"))

	_, body := get(t, app, "/products", resp)
	assert.Contains(t, body, "Pen")
	assert.Contains(t, body, "1,50")
	assert.Contains(t, body, "R$")
	assert.Contains(t, body, views.NoDescription)
	assert.Contains(t, body, views.MsgCreated)

	// Notification is consumed by the first render.
	_, body = get(t, app, "/products", nil)
	assert.NotContains(t, body, views.MsgCreated)

	products := listProducts(t, app)
	require.Len(t, products, 1)
	id := products[0].ID

	// Edit form is prefilled.
	_, body = get(t, app, "/products/"+id+"/edit", nil)
	assert.Contains(t, body, "Edit Product")
	assert.Contains(t, body, `value="1.50"`)
	assert.Contains(t, body, "Update Product")

	// Update
	resp = postForm(t, app, "/products/"+id, url.Values{"name": {"Pen"}, "description": {""}, "price": {"2.00"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, body = get(t, app, "/products", resp)
	assert.Contains(t, body, views.MsgUpdated)
	assert.Contains(t, body, "2,00")

	// Detail
	resp, body = get(t, app, "/products/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Product Details")
	assert.Contains(t, body, "2,00")
	assert.Contains(t, body, views.NoDescriptionProvided)
	assert.Contains(t, body, "Last Updated")

	// Delete
	resp = postForm(t, app, "/products/"+id+"/delete", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, body = get(t, app, "/products", resp)
	assert.Contains(t, body, views.MsgDeleted)
	assert.Contains(t, body, "No products found")

	resp, body = get(t, app, "/products/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Product not found")
}

func TestPages_NewestFirst(t *testing.T) {
	app := setupApp(t)

	for i, name := range []string{"Alpha", "Bravo", "Charlie"} {
		resp := postForm(t, app, "/products", url.Values{"name": {name}, "price": {fmt.Sprintf("%d.00", i+1)}})
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		time.Sleep(10 * time.Millisecond)
	}

	_, body := get(t, app, "/products", nil)
	c, b, a := strings.Index(body, "Charlie"), strings.Index(body, "Bravo"), strings.Index(body, "Alpha")
	require.True(t, c >= 0 && b >= 0 && a >= 0)
	assert.True(t, c < b && b < a, "expected Charlie, Bravo, Alpha")
}

func TestPages_CreateValidationErrors(t *testing.T) {
	app := setupApp(t)

	resp := postForm(t, app, "/products", url.Values{"name": {""}, "price": {"0"}})
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "Name is required")
	assert.Contains(t, string(body), "Price must be greater than 0")
	assert.Contains(t, string(body), "Add New Product")
	assert.Empty(t, listProducts(t, app))
}

func TestPages_OversizedPriceRejected(t *testing.T) {
	app := setupApp(t)

	for _, price := range []string{"1e400", "123456789012.34"} {
		resp := postForm(t, app, "/products", url.Values{"name": {"Pen"}, "price": {price}})
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, price)
		assert.Contains(t, string(body), validation.MsgPriceTooLarge)
	}

	resp, out := sendJSON(t, app, http.MethodPost, "/api/v1/products", map[string]any{"name": "Pen", "price": "1e400"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": map[string]any{"price": []any{validation.MsgPriceTooLarge}}}, out)

	listing, _ := get(t, app, "/products", nil)
	assert.Equal(t, http.StatusOK, listing.StatusCode)
	assert.Empty(t, listProducts(t, app))
}

func TestPages_UpdateMissingProduct(t *testing.T) {
	app := setupApp(t)

	resp := postForm(t, app, "/products/"+uuid.NewString(), url.Values{"name": {"Ghost"}, "price": {"1"}})
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), services.MsgUpdateFailed)
}

func TestPages_DeleteTwice(t *testing.T) {
	app := setupApp(t)

	for _, name := range []string{"Keep", "Drop"} {
		resp := postForm(t, app, "/products", url.Values{"name": {name}, "price": {"5"}})
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	}
	var dropID string
	for _, p := range listProducts(t, app) {
		if p.Name == "Drop" {
			dropID = p.ID
		}
	}
	require.NotEmpty(t, dropID)

	resp := postForm(t, app, "/products/"+dropID+"/delete", nil)
	_, body := get(t, app, "/products", resp)
	assert.Contains(t, body, views.MsgDeleted)

	resp = postForm(t, app, "/products/"+dropID+"/delete", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, body = get(t, app, "/products", resp)
	assert.Contains(t, body, views.MsgDeleteFailed)

	remaining := listProducts(t, app)
	require.Len(t, remaining, 1)
	assert.Equal(t, "Keep", remaining[0].Name)
}

func TestPages_DeleteDialog(t *testing.T) {
	app := setupApp(t)

	_, body := get(t, app, "/products", nil)
	assert.NotContains(t, body, views.DialogTitle)

	_, body = get(t, app, "/products?delete=abc", nil)
	assert.Contains(t, body, views.DialogTitle)
	assert.Contains(t, body, `action="/products/abc/delete"`)
}

func TestPages_NotFound(t *testing.T) {
	app := setupApp(t)

	resp, body := get(t, app, "/products/"+uuid.NewString()+"/edit", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Product not found")

	resp, body = get(t, app, "/no/such/page", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Page not found")
}

func TestPages_FormDisablesSubmitWhileSaving(t *testing.T) {
	app := setupApp(t)

	resp := postForm(t, app, "/products", url.Values{"name": {"Pen"}, "price": {"1.50"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	products := listProducts(t, app)
	require.Len(t, products, 1)

	for _, path := range []string{"/products/new", "/products/" + products[0].ID + "/edit"} {
		resp, body := get(t, app, path, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `onsubmit="`, path)
		assert.Contains(t, body, "b.disabled = true", path)
		assert.Contains(t, body, "b.textContent = 'Saving...'", path)
	}
}

func TestPages_RootRedirects(t *testing.T) {
	app := setupApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/products", resp.Header.Get("Location"))
}

func TestAPI_ProductEndpoints(t *testing.T) {
	app := setupApp(t)

	resp, out := sendJSON(t, app, http.MethodPost, "/api/v1/products",
		map[string]any{"name": "Smartphone", "description": "Latest model", "price": 799.99})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, map[string]any{"success": true}, out)

	products := listProducts(t, app)
	require.Len(t, products, 1)
	created := products[0]
	assert.Equal(t, "Smartphone", created.Name)
	assert.Equal(t, "799.99", created.Price.StringFixed(2))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/products/"+created.ID, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched models.Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fetched))
	resp.Body.Close()
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "Latest model", fetched.DescriptionText())

	resp, out = sendJSON(t, app, http.MethodPut, "/api/v1/products/"+created.ID,
		map[string]any{"name": "Smartphone Pro", "price": "899.99"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"success": true}, out)
	updated := listProducts(t, app)[0]
	assert.Equal(t, "Smartphone Pro", updated.Name)
	assert.Nil(t, updated.Description)

	resp, out = sendJSON(t, app, http.MethodDelete, "/api/v1/products/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"success": true}, out)

	resp, out = sendJSON(t, app, http.MethodDelete, "/api/v1/products/"+created.ID, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": "Failed to delete product"}, out)

	resp, out = sendJSON(t, app, http.MethodGet, "/api/v1/products/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, out["message"], "not found")
}

func TestAPI_ValidationErrors(t *testing.T) {
	app := setupApp(t)

	resp, out := sendJSON(t, app, http.MethodPost, "/api/v1/products", map[string]any{"name": "", "price": "3"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": map[string]any{"name": []any{"Name is required"}}}, out)

	resp, out = sendJSON(t, app, http.MethodPost, "/api/v1/products", map[string]any{"name": "Pen", "price": -1})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, out["error"], "price")

	resp, out = sendJSON(t, app, http.MethodPost, "/api/v1/products", map[string]any{"name": "Pen"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, out["error"], "price")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	r, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)

	assert.Empty(t, listProducts(t, app))
}

func TestInfra_HealthAndMetrics(t *testing.T) {
	app := setupApp(t)

	resp, out := sendJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", out["status"])

	_, _ = get(t, app, "/products", nil)
	resp, body := get(t, app, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "catalog_http_requests_total")
}
