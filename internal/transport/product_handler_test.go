package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streetbasket/internal/domain"
	"streetbasket/internal/filter"
	"streetbasket/internal/service"
)

func TestCreateProduct_JSON(t *testing.T) {
	tr := newTestRouter()
	price := decimal.RequireFromString("42.50")
	stock := 10
	name := "Tomatoes"

	w := tr.do(jsonBody(t, http.MethodPost, "/api/products", ProductRequest{
		Name:  &name,
		Price: &price,
		Stock: &stock,
	}), "2:supplier")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NotNil(t, tr.products.created)
	assert.Equal(t, "Tomatoes", tr.products.created.Name)
	assert.True(t, price.Equal(*tr.products.created.Price))
	assert.Nil(t, tr.products.image)

	var view ProductView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, int64(2), view.OwnerID)
	assert.True(t, view.InStock)
	assert.Empty(t, view.ImageURL)
}

func TestCreateProduct_MultipartWithImage(t *testing.T) {
	tr := newTestRouter()
	req := multipartBody(t, http.MethodPost, "/api/products",
		map[string]string{"name": "Onions", "price": "30", "stock": "0", "unit": "kg"},
		filePart{field: "image", name: "onions.png", content: []byte("png-bytes")})

	w := tr.do(req, "2:vendor")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NotNil(t, tr.products.image)
	assert.Equal(t, "onions.png", tr.products.image.Filename)
	assert.Equal(t, []byte("png-bytes"), tr.products.imageBytes)
	assert.Equal(t, "kg", tr.products.created.Unit)

	var view ProductView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "/uploads/images/1-onions.png", view.ImageURL)
	assert.False(t, view.InStock)
}

func TestCreateProduct_BadImageIsUnsupported(t *testing.T) {
	tr := newTestRouter()
	tr.products.err = fmt.Errorf("%w: .exe", service.ErrInvalidImageFormat)
	req := multipartBody(t, http.MethodPost, "/api/products",
		map[string]string{"name": "Onions", "price": "30", "stock": "1"},
		filePart{field: "image", name: "onions.exe", content: []byte("MZ")})

	w := tr.do(req, "2:vendor")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestCreateProduct_MissingFields(t *testing.T) {
	tr := newTestRouter()
	w := tr.do(jsonBody(t, http.MethodPost, "/api/products", map[string]string{"description": "fresh"}), "2:vendor")
	require.Equal(t, http.StatusBadRequest, w.Code)

	raw, err := json.Marshal(decodeError(t, w).Error.Details["validation_errors"])
	require.NoError(t, err)
	var errs []struct{ Field string }
	require.NoError(t, json.Unmarshal(raw, &errs))

	var fields []string
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"name", "price", "stock"}, fields)
	assert.Nil(t, tr.products.created)
}

func TestCreateProduct_MalformedFormNumbers(t *testing.T) {
	tr := newTestRouter()
	req := multipartBody(t, http.MethodPost, "/api/products",
		map[string]string{"name": "Onions", "price": "cheap", "stock": "lots"})

	w := tr.do(req, "2:vendor")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, tr.products.created)
}

func TestCreateProduct_NegativePrice(t *testing.T) {
	tr := newTestRouter()
	price := decimal.RequireFromString("-1")
	stock := 1
	name := "Garlic"

	w := tr.do(jsonBody(t, http.MethodPost, "/api/products", ProductRequest{Name: &name, Price: &price, Stock: &stock}), "2:vendor")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateProduct_TextPastColumnWidth(t *testing.T) {
	price := decimal.RequireFromString("1")
	stock := 1
	long := strings.Repeat("a", domain.MaxProductNameLen+1)
	unit := strings.Repeat("u", domain.MaxProductUnitLen+1)
	short := "Garlic"

	for name, body := range map[string]ProductRequest{
		"name": {Name: &long, Price: &price, Stock: &stock},
		"unit": {Name: &short, Unit: &unit, Price: &price, Stock: &stock},
	} {
		t.Run(name, func(t *testing.T) {
			tr := newTestRouter()
			w := tr.do(jsonBody(t, http.MethodPost, "/api/products", body), "2:vendor")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Nil(t, tr.products.created)
		})
	}
}

func TestCreateProduct_StockPastInt32(t *testing.T) {
	tr := newTestRouter()
	price := decimal.RequireFromString("1")
	stock := 3_000_000_000
	name := "Garlic"

	w := tr.do(jsonBody(t, http.MethodPost, "/api/products", ProductRequest{Name: &name, Price: &price, Stock: &stock}), "2:vendor")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, tr.products.created)
}

func TestCreateProduct_RequiresAuthentication(t *testing.T) {
	tr := newTestRouter()
	w := tr.do(jsonBody(t, http.MethodPost, "/api/products", map[string]string{}), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateProduct(t *testing.T) {
	t.Run("partial patch", func(t *testing.T) {
		tr := newTestRouter()
		stock := 0
		w := tr.do(jsonBody(t, http.MethodPut, "/api/products/5", ProductRequest{Stock: &stock}), "2:supplier")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		require.NotNil(t, tr.products.patched)
		assert.Nil(t, tr.products.patched.Name)
		assert.Nil(t, tr.products.patched.Price)
		require.NotNil(t, tr.products.patched.Stock)
		assert.Equal(t, 0, *tr.products.patched.Stock)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		tr := newTestRouter()
		tr.products.err = service.ErrForbidden
		w := tr.do(jsonBody(t, http.MethodPut, "/api/products/5", ProductRequest{}), "3:vendor")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		tr := newTestRouter()
		w := tr.do(jsonBody(t, http.MethodPut, "/api/products/abc", ProductRequest{}), "3:vendor")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, tr.products.patched)
	})
}

func TestDeleteProduct(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"owner", nil, http.StatusNoContent},
		{"not found", service.ErrNotFound, http.StatusNotFound},
		{"non-owner", service.ErrForbidden, http.StatusForbidden},
		{"has orders", fmt.Errorf("%w: product has orders", service.ErrConflict), http.StatusConflict},
		{"storage failure", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRouter()
			tr.products.err = tt.err
			w := tr.do(httptest.NewRequest(http.MethodDelete, "/api/products/5", nil), "2:supplier")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestGetProduct_IsPublic(t *testing.T) {
	tr := newTestRouter()
	w := tr.do(httptest.NewRequest(http.MethodGet, "/api/products/8", nil), "")
	require.Equal(t, http.StatusOK, w.Code)

	var view ProductView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, int64(8), view.ID)
	assert.Equal(t, "Rice", view.Name)
}

func TestListProducts_QueryBecomesFilter(t *testing.T) {
	tr := newTestRouter()
	w := tr.do(httptest.NewRequest(http.MethodGet,
		"/api/products?search=rice&price_min=10&price_max=60&stock_filter=in_stock&page=2&per_page=500", nil), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	f := tr.products.listed
	require.NotNil(t, f)
	assert.Nil(t, f.OwnerID)
	require.NotNil(t, f.NameContains)
	assert.Equal(t, "rice", *f.NameContains)
	assert.True(t, decimal.NewFromInt(10).Equal(*f.PriceMin))
	assert.True(t, decimal.NewFromInt(60).Equal(*f.PriceMax))
	assert.Equal(t, domain.StockIn, f.StockState)
	assert.Equal(t, 2, f.Page)
	assert.Equal(t, 50, f.PageSize)

	var page ProductPageView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.NotNil(t, page.Items)
	assert.Equal(t, 2, page.Page)
}

func TestListMine_ScopesToCaller(t *testing.T) {
	tr := newTestRouter()
	w := tr.do(httptest.NewRequest(http.MethodGet, "/api/accounts/me/products?owner_id=99", nil), "12:supplier")
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, tr.products.listed.OwnerID)
	assert.Equal(t, int64(12), *tr.products.listed.OwnerID)
}

func TestProperty_ListNeverFailsOnArbitraryQuery(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("any query string yields a page with bounded size", prop.ForAll(
		func(search, minPrice, page, size string) bool {
			tr := newTestRouter()
			req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
			q := req.URL.Query()
			q.Set(filter.KeySearch, search)
			q.Set(filter.KeyPriceMin, minPrice)
			q.Set(filter.KeyPage, page)
			q.Set(filter.KeyPerPage, size)
			req.URL.RawQuery = q.Encode()

			w := tr.do(req, "")
			if w.Code != http.StatusOK {
				t.Logf("FAIL: expected 200, got %d for %q", w.Code, req.URL.RawQuery)
				return false
			}
			f := tr.products.listed
			if f.Page < 1 || f.PageSize < 1 || f.PageSize > 50 {
				t.Logf("FAIL: paging out of range page=%d size=%d", f.Page, f.PageSize)
				return false
			}
			return true
		},
		gen.AnyString(),
		gen.AnyString(),
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
