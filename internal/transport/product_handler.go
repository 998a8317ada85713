package transport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"streetbasket/internal/domain"
	"streetbasket/internal/filter"
	"streetbasket/internal/middleware"
	"streetbasket/internal/service"
)

// ProductRequest carries product fields from JSON or multipart bodies.
// Absent fields are nil; creation requires name, price and stock.
type ProductRequest struct {
	Name        *string          `json:"name" validate:"omitempty,max=100"`
	Description *string          `json:"description" validate:"omitempty,max=255"`
	Unit        *string          `json:"unit" validate:"omitempty,max=20"`
	Price       *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
	Stock       *int             `json:"stock" validate:"omitempty,min=-2147483648,max=2147483647"`
}

// ProductView is the public representation of a product
type ProductView struct {
	ID          int64           `json:"id"`
	OwnerID     int64           `json:"owner_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	InStock     bool            `json:"in_stock"`
	ImageURL    string          `json:"image_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProductPageView is one page of a catalog listing
type ProductPageView struct {
	Items      []ProductView `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
}

// ImageURLPrefix is where stored images are served from
const ImageURLPrefix = "/uploads/"

func newProductView(p *domain.Product) ProductView {
	view := ProductView{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		Unit:        p.Unit,
		Price:       p.Price,
		Stock:       p.Stock,
		InStock:     p.InStock(),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.ImagePath != nil {
		view.ImageURL = ImageURLPrefix + *p.ImagePath
	}
	return view
}

func newProductPageView(page *domain.ProductPage) ProductPageView {
	items := make([]ProductView, 0, len(page.Items))
	for _, p := range page.Items {
		items = append(items, newProductView(p))
	}
	return ProductPageView{
		Items:      items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}
}

// ProductHandler handles HTTP requests for catalog operations
type ProductHandler struct {
	productService service.ProductService
	paging         filter.Defaults
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, paging filter.Defaults, maxUploadBytes int64, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		paging:         paging,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	// Public browsing
	r.Get("/api/products", h.List)
	r.Get("/api/products/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/api/accounts/me/products", h.ListMine)
		r.Post("/api/products", h.Create)
		r.Put("/api/products/{id}", h.Update)
		r.Delete("/api/products/{id}", h.Delete)
	})
}

// List returns a filtered page of the catalog
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, filter.FromQuery(r.URL.Query(), h.paging))
}

// ListMine returns the caller's own products, with the same filters as List
func (h *ProductHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	f := filter.FromQuery(r.URL.Query(), h.paging)
	f.OwnerID = &caller.AccountID
	h.list(w, r, f)
}

func (h *ProductHandler) list(w http.ResponseWriter, r *http.Request, f domain.ProductFilter) {
	page, err := h.productService.List(r.Context(), f)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newProductPageView(page))
}

// Get returns one product
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "id"), "product id")
	if !ok {
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newProductView(product))
}

// Create lists a new product owned by the caller
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	req, image, ok := h.readProduct(w, r)
	if !ok {
		return
	}
	if image != nil {
		defer image.close()
	}

	var missing []middleware.ValidationError
	if req.Name == nil {
		missing = append(missing, middleware.ValidationError{Field: "name", Message: "This field is required"})
	}
	if req.Price == nil {
		missing = append(missing, middleware.ValidationError{Field: "price", Message: "This field is required"})
	}
	if req.Stock == nil {
		missing = append(missing, middleware.ValidationError{Field: "stock", Message: "This field is required"})
	}
	if len(missing) > 0 {
		middleware.RespondWithValidationErrors(w, missing)
		return
	}

	in := service.ProductInput{
		Name:  *req.Name,
		Price: req.Price,
		Stock: req.Stock,
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.Unit != nil {
		in.Unit = *req.Unit
	}

	product, err := h.productService.Create(r.Context(), caller.AccountID, in, image.upload())
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to create product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, newProductView(product))
}

// Update edits a product the caller owns
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	id, ok := pathID(w, chi.URLParam(r, "id"), "product id")
	if !ok {
		return
	}

	req, image, ok := h.readProduct(w, r)
	if !ok {
		return
	}
	if image != nil {
		defer image.close()
	}

	product, err := h.productService.Update(r.Context(), id, caller.AccountID, service.ProductPatch{
		Name:        req.Name,
		Description: req.Description,
		Unit:        req.Unit,
		Price:       req.Price,
		Stock:       req.Stock,
	}, image.upload())
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newProductView(product))
}

// Delete removes a product the caller owns
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	id, ok := pathID(w, chi.URLParam(r, "id"), "product id")
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), id, caller.AccountID); err != nil {
		respondServiceError(w, h.logger, err, "Failed to delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// readProduct decodes a JSON body, or a multipart form with an optional "image" file
func (h *ProductHandler) readProduct(w http.ResponseWriter, r *http.Request) (ProductRequest, *formFile, bool) {
	var req ProductRequest

	if !isMultipart(r) {
		if err := middleware.DecodeAndValidate(r, &req); err != nil {
			respondDecodeError(w, err)
			return req, nil, false
		}
		return req, nil, true
	}

	if err := parseMultipart(w, r, h.maxUploadBytes); err != nil {
		respondMultipartError(w, h.logger, err)
		return req, nil, false
	}

	if errs := productRequestFromForm(r, &req); len(errs) > 0 {
		middleware.RespondWithValidationErrors(w, errs)
		return req, nil, false
	}
	if err := middleware.ValidateRequest(&req); err != nil {
		respondDecodeError(w, err)
		return req, nil, false
	}

	image, err := formUpload(r, "image")
	if err != nil {
		respondMultipartError(w, h.logger, err)
		return req, nil, false
	}
	return req, image, true
}

// productRequestFromForm copies the text fields present in a parsed multipart form
func productRequestFromForm(r *http.Request, req *ProductRequest) []middleware.ValidationError {
	var errs []middleware.ValidationError
	values := r.MultipartForm.Value

	text := func(key string) *string {
		if v, ok := values[key]; ok && len(v) > 0 {
			s := v[0]
			return &s
		}
		return nil
	}

	req.Name = text("name")
	req.Description = text("description")
	req.Unit = text("unit")

	if raw := text("price"); raw != nil {
		price, err := decimal.NewFromString(*raw)
		if err != nil {
			errs = append(errs, middleware.ValidationError{Field: "price", Message: "Invalid value"})
		} else {
			req.Price = &price
		}
	}
	if raw := text("stock"); raw != nil {
		stock, err := strconv.Atoi(*raw)
		if err != nil {
			errs = append(errs, middleware.ValidationError{Field: "stock", Message: "Invalid value"})
		} else {
			req.Stock = &stock
		}
	}

	return errs
}
