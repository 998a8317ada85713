package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"streetbasket/internal/domain"
	"streetbasket/internal/filter"
	"streetbasket/internal/repository"
	"streetbasket/internal/storage"
)

// ProductService defines the interface for catalog business logic
type ProductService interface {
	Create(ctx context.Context, ownerID int64, in ProductInput, image *Upload) (*domain.Product, error)
	Update(ctx context.Context, productID, callerID int64, patch ProductPatch, image *Upload) (*domain.Product, error)
	Delete(ctx context.Context, productID, callerID int64) error
	Get(ctx context.Context, productID int64) (*domain.Product, error)
	List(ctx context.Context, f domain.ProductFilter) (*domain.ProductPage, error)
}

// Upload is a client-supplied file
type Upload struct {
	Filename string
	Content  io.Reader
}

// ProductInput carries the fields of a new product. Price and Stock are required.
type ProductInput struct {
	Name        string
	Description string
	Unit        string
	Price       *decimal.Decimal
	Stock       *int
}

// ProductPatch is a partial product update; nil fields are left unchanged
type ProductPatch struct {
	Name        *string
	Description *string
	Unit        *string
	Price       *decimal.Decimal
	Stock       *int
}

type productService struct {
	products repository.ProductRepository
	tx       repository.Transactor
	files    storage.FileStore
	paging   filter.Defaults
	logger   *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	products repository.ProductRepository,
	tx repository.Transactor,
	files storage.FileStore,
	paging filter.Defaults,
	logger *zap.Logger,
) ProductService {
	return &productService{
		products: products,
		tx:       tx,
		files:    files,
		paging:   paging,
		logger:   logger,
	}
}

// Create lists a new product owned by ownerID
func (s *productService) Create(ctx context.Context, ownerID int64, in ProductInput, image *Upload) (*domain.Product, error) {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	case in.Price == nil:
		return nil, fmt.Errorf("%w: price is required", ErrValidation)
	case in.Stock == nil:
		return nil, fmt.Errorf("%w: stock is required", ErrValidation)
	}
	price, err := checkPrice(*in.Price)
	if err != nil {
		return nil, err
	}
	if err := checkStock(*in.Stock); err != nil {
		return nil, err
	}
	if err := checkImage(image); err != nil {
		return nil, err
	}

	product := &domain.Product{
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Unit:        strings.TrimSpace(in.Unit),
		Price:       price,
		Stock:       *in.Stock,
	}
	if err := checkText(product); err != nil {
		return nil, err
	}

	if image != nil {
		stored, err := s.files.Save(ctx, storage.ImagesDir, image.Filename, image.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to store image: %w", err)
		}
		product.ImagePath = &stored
	}

	if err := s.products.Create(ctx, product); err != nil {
		if product.ImagePath != nil {
			s.removeImage(ctx, *product.ImagePath)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.Int64("owner_id", ownerID),
	)

	return product, nil
}

// Update applies patch to a product the caller owns, optionally replacing its image
func (s *productService) Update(ctx context.Context, productID, callerID int64, patch ProductPatch, image *Upload) (*domain.Product, error) {
	if err := checkImage(image); err != nil {
		return nil, err
	}

	var newImage string
	if image != nil {
		stored, err := s.files.Save(ctx, storage.ImagesDir, image.Filename, image.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to store image: %w", err)
		}
		newImage = stored
	}

	var product *domain.Product
	var oldImage *string

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		found, err := s.products.FindByIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if found.OwnerID != callerID {
			return ErrForbidden
		}
		if err := applyPatch(found, patch); err != nil {
			return err
		}

		oldImage = found.ImagePath
		if newImage != "" {
			found.ImagePath = &newImage
		}

		if err := s.products.Update(ctx, found); err != nil {
			return err
		}
		product = found
		return nil
	})
	if err != nil {
		if newImage != "" {
			s.removeImage(ctx, newImage)
		}
		return nil, productError("failed to update product", err)
	}

	if newImage != "" && oldImage != nil {
		s.removeImage(ctx, *oldImage)
	}

	return product, nil
}

// Delete removes a product the caller owns along with its image
func (s *productService) Delete(ctx context.Context, productID, callerID int64) error {
	var image *string

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		found, err := s.products.FindByIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if found.OwnerID != callerID {
			return ErrForbidden
		}
		image = found.ImagePath
		return s.products.Delete(ctx, productID)
	})
	if err != nil {
		return productError("failed to delete product", err)
	}

	if image != nil {
		s.removeImage(ctx, *image)
	}

	s.logger.Info("Product deleted",
		zap.Int64("product_id", productID),
		zap.Int64("owner_id", callerID),
	)

	return nil
}

// Get retrieves a product by ID
func (s *productService) Get(ctx context.Context, productID int64) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, productError("failed to get product", err)
	}
	return product, nil
}

// List returns one page of products matching f
func (s *productService) List(ctx context.Context, f domain.ProductFilter) (*domain.ProductPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = s.paging.PageSize
	}
	if s.paging.MaxPageSize > 0 && f.PageSize > s.paging.MaxPageSize {
		f.PageSize = s.paging.MaxPageSize
	}
	if f.StockState == "" {
		f.StockState = domain.StockAny
	}

	items, total, err := s.products.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return domain.NewProductPage(items, total, f.Page, f.PageSize), nil
}

func (s *productService) removeImage(ctx context.Context, path string) {
	if err := s.files.Delete(context.WithoutCancel(ctx), path); err != nil {
		s.logger.Warn("Failed to remove product image",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

func checkImage(image *Upload) error {
	if image == nil {
		return nil
	}
	if !storage.ImageExtensions.Allows(image.Filename) {
		return fmt.Errorf("%w: %q", ErrInvalidImageFormat, image.Filename)
	}
	return nil
}

func applyPatch(p *domain.Product, patch ProductPatch) error {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return fmt.Errorf("%w: name must not be blank", ErrValidation)
		}
		p.Name = name
	}
	if patch.Price != nil {
		price, err := checkPrice(*patch.Price)
		if err != nil {
			return err
		}
		p.Price = price
	}
	if patch.Description != nil {
		p.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Unit != nil {
		p.Unit = strings.TrimSpace(*patch.Unit)
	}
	if patch.Stock != nil {
		if err := checkStock(*patch.Stock); err != nil {
			return err
		}
		p.Stock = *patch.Stock
	}
	return checkText(p)
}

// checkPrice accepts non-negative prices that fit NUMERIC(12,2) exactly
func checkPrice(price decimal.Decimal) (decimal.Decimal, error) {
	if price.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	fitted, ok := domain.ValidPrice(price)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: price must have at most %d decimal places and not exceed %s",
			ErrValidation, domain.PriceScale, domain.MaxPrice.StringFixed(domain.PriceScale))
	}
	return fitted, nil
}

func checkStock(stock int) error {
	if !domain.ValidStock(stock) {
		return fmt.Errorf("%w: stock must be between %d and %d", ErrValidation, domain.MinStock, domain.MaxStock)
	}
	return nil
}

func checkText(p *domain.Product) error {
	switch {
	case utf8.RuneCountInString(p.Name) > domain.MaxProductNameLen:
		return fmt.Errorf("%w: name exceeds %d characters", ErrValidation, domain.MaxProductNameLen)
	case utf8.RuneCountInString(p.Description) > domain.MaxProductDescriptionLen:
		return fmt.Errorf("%w: description exceeds %d characters", ErrValidation, domain.MaxProductDescriptionLen)
	case utf8.RuneCountInString(p.Unit) > domain.MaxProductUnitLen:
		return fmt.Errorf("%w: unit exceeds %d characters", ErrValidation, domain.MaxProductUnitLen)
	}
	return nil
}

// productError maps repository failures onto service errors
func productError(msg string, err error) error {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrProductHasOrders):
		return fmt.Errorf("%w: product has orders", ErrConflict)
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrValidation):
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
