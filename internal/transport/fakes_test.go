package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"streetbasket/internal/domain"
	"streetbasket/internal/filter"
	"streetbasket/internal/middleware"
	"streetbasket/internal/service"
)

const (
	testMaxUpload = 1 << 10
	testCallerHdr = "X-Test-Account"
)

type fakeAccountService struct {
	service.AccountService

	register      func(in service.RegisterInput) (*domain.Account, error)
	login         func(identifier, password string) (string, string, *domain.Account, error)
	getByID       func(id int64) (*domain.Account, error)
	uploadedName  string
	uploadedBytes []byte
}

func (f *fakeAccountService) Register(ctx context.Context, in service.RegisterInput) (*domain.Account, error) {
	return f.register(in)
}

func (f *fakeAccountService) Login(ctx context.Context, identifier, password string) (string, string, *domain.Account, error) {
	return f.login(identifier, password)
}

func (f *fakeAccountService) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	return f.getByID(id)
}

func (f *fakeAccountService) UploadDocument(ctx context.Context, callerID int64, filename string, r io.Reader) (*domain.Account, error) {
	f.uploadedName = filename
	f.uploadedBytes, _ = io.ReadAll(r)
	path := "documents/1-" + filename
	return &domain.Account{ID: callerID, Role: domain.RoleSupplier, DocumentPath: &path}, nil
}

type fakeProductService struct {
	created    *service.ProductInput
	patched    *service.ProductPatch
	image      *service.Upload
	imageBytes []byte
	listed     *domain.ProductFilter
	err        error
}

func (f *fakeProductService) capture(image *service.Upload) {
	f.image = image
	if image != nil {
		f.imageBytes, _ = io.ReadAll(image.Content)
	}
}

func (f *fakeProductService) Create(ctx context.Context, ownerID int64, in service.ProductInput, image *service.Upload) (*domain.Product, error) {
	f.created = &in
	f.capture(image)
	if f.err != nil {
		return nil, f.err
	}
	p := &domain.Product{ID: 1, OwnerID: ownerID, Name: in.Name, Price: *in.Price, Stock: *in.Stock}
	if image != nil {
		path := "images/1-" + image.Filename
		p.ImagePath = &path
	}
	return p, nil
}

func (f *fakeProductService) Update(ctx context.Context, productID, callerID int64, patch service.ProductPatch, image *service.Upload) (*domain.Product, error) {
	f.patched = &patch
	f.capture(image)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Product{ID: productID, OwnerID: callerID}, nil
}

func (f *fakeProductService) Delete(ctx context.Context, productID, callerID int64) error {
	return f.err
}

func (f *fakeProductService) Get(ctx context.Context, productID int64) (*domain.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Product{ID: productID, Name: "Rice", Price: decimal.RequireFromString("50.00"), Stock: 3}, nil
}

func (f *fakeProductService) List(ctx context.Context, fl domain.ProductFilter) (*domain.ProductPage, error) {
	f.listed = &fl
	return domain.NewProductPage(nil, 0, fl.Page, fl.PageSize), f.err
}

type fakeOrderService struct {
	placedBy  int64
	placedQty decimal.Decimal
	err       error
}

func (f *fakeOrderService) Place(ctx context.Context, vendorID, productID int64, quantity decimal.Decimal) (*domain.Order, error) {
	f.placedBy = vendorID
	f.placedQty = quantity
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Order{
		ID: 1, VendorID: vendorID, ProductID: productID, Quantity: quantity,
		UnitPrice: decimal.RequireFromString("50"), TotalPrice: domain.OrderTotal(quantity, decimal.RequireFromString("50")),
		Status: domain.OrderStatusPending,
	}, nil
}

func (f *fakeOrderService) AdvanceStatus(ctx context.Context, orderID int64, caller domain.Caller, newStatus string) (*domain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	status, _ := domain.ParseOrderStatus(newStatus)
	return &domain.Order{ID: orderID, Status: status}, nil
}

func (f *fakeOrderService) Get(ctx context.Context, orderID int64, caller domain.Caller) (*domain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Order{ID: orderID, VendorID: caller.AccountID}, nil
}

func (f *fakeOrderService) ListForVendor(ctx context.Context, vendorID int64) ([]*domain.Order, error) {
	return nil, f.err
}

func (f *fakeOrderService) ListForSupplier(ctx context.Context, supplierID int64) ([]*domain.Order, error) {
	return []*domain.Order{{ID: 2}, {ID: 1}}, f.err
}

// headerAuth trusts a test header carrying "<id>:<role>"
func headerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawID, role, found := strings.Cut(r.Header.Get(testCallerHdr), ":")
		if !found {
			middleware.RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		id, _ := filter.ParseID(rawID)
		parsed, _ := domain.ParseRole(role)
		ctx := middleware.WithCaller(r.Context(), domain.Caller{AccountID: id, Role: parsed})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func passThrough(next http.Handler) http.Handler { return next }

type testRouter struct {
	chi.Router
	accounts *fakeAccountService
	products *fakeProductService
	orders   *fakeOrderService
}

func newTestRouter() *testRouter {
	tr := &testRouter{
		Router:   chi.NewRouter(),
		accounts: &fakeAccountService{},
		products: &fakeProductService{},
		orders:   &fakeOrderService{},
	}
	logger := zap.NewNop()
	NewAccountHandler(tr.accounts, testMaxUpload, logger).RegisterRoutes(tr, headerAuth, passThrough)
	NewProductHandler(tr.products, filter.DefaultDefaults, testMaxUpload, logger).RegisterRoutes(tr, headerAuth)
	NewOrderHandler(tr.orders, logger).RegisterRoutes(tr, headerAuth)
	return tr
}

func (tr *testRouter) do(req *http.Request, caller string) *httptest.ResponseRecorder {
	if caller != "" {
		req.Header.Set(testCallerHdr, caller)
	}
	w := httptest.NewRecorder()
	tr.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type filePart struct {
	field, name string
	content     []byte
}

func multipartBody(t *testing.T, method, path string, fields map[string]string, files ...filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("Failed to write field: %v", err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("Failed to create file part: %v", err)
		}
		if _, err := part.Write(f.content); err != nil {
			t.Fatalf("Failed to write file part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var resp middleware.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Response is not an error envelope: %v: %s", err, w.Body.String())
	}
	return resp
}
