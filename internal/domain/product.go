package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID          int64           `json:"id" db:"id"`
	OwnerID     int64           `json:"owner_id" db:"owner_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Unit        string          `json:"unit" db:"unit"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Stock       int             `json:"stock" db:"stock"`
	ImagePath   *string         `json:"image_path,omitempty" db:"image_path"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Column bounds of the products table
const (
	MaxProductNameLen        = 100
	MaxProductDescriptionLen = 255
	MaxProductUnitLen        = 20
	PriceScale               = 2
	MaxStock                 = math.MaxInt32
	MinStock                 = math.MinInt32
	// MaxOffset keeps page offsets inside a 32-bit OFFSET
	MaxOffset = math.MaxInt32
)

// MaxPrice is the largest value a NUMERIC(12,2) price holds
var MaxPrice = decimal.New(999999999999, -PriceScale)

// maxExponent is above the exponent of any value a money or quantity column holds
const maxExponent = 18

// FitDecimal reports whether d has at most scale significant fractional digits and
// |d| <= max. Exponents are checked before any arithmetic, since comparing or printing
// a value such as 1e2000000000 expands it digit by digit. The result is rescaled to
// at most scale fractional digits, so 1.500 comes back as 1.50.
func FitDecimal(d decimal.Decimal, scale int32, max decimal.Decimal) (decimal.Decimal, bool) {
	if d.IsZero() {
		return decimal.Zero, true
	}
	if d.Exponent() < -scale-maxExponent || d.Exponent() > maxExponent {
		return decimal.Decimal{}, false
	}
	if d.Exponent() < -scale {
		rounded := d.Truncate(scale)
		if !rounded.Equal(d) {
			return decimal.Decimal{}, false
		}
		d = rounded
	}
	if d.Abs().Cmp(max) > 0 {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ValidPrice reports whether p fits the price column
func ValidPrice(p decimal.Decimal) (decimal.Decimal, bool) {
	return FitDecimal(p, PriceScale, MaxPrice)
}

// ValidStock reports whether n fits the stock column
func ValidStock(n int) bool {
	return n >= MinStock && n <= MaxStock
}

// InStock reports whether the product counts as available in catalog filters
func (p *Product) InStock() bool {
	return p.Stock > 0
}

// StockState selects products by stock presence
type StockState string

const (
	StockAny StockState = "any"
	StockIn  StockState = "in_stock"
	StockOut StockState = "out_of_stock"
)

// ProductFilter narrows a catalog listing. Nil fields are not applied.
type ProductFilter struct {
	OwnerID      *int64
	NameContains *string
	PriceMin     *decimal.Decimal
	PriceMax     *decimal.Decimal
	StockState   StockState
	Page         int
	PageSize     int
}

// Offset returns the row offset of the filter's page
func (f ProductFilter) Offset() int {
	if f.Page < 1 || f.PageSize < 1 {
		return 0
	}
	if f.Page-1 > MaxOffset/f.PageSize {
		return MaxOffset
	}
	return (f.Page - 1) * f.PageSize
}

// ProductPage is one page of a filtered listing plus pagination metadata
type ProductPage struct {
	Items      []*Product `json:"items"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// NewProductPage computes pagination metadata for a listing
func NewProductPage(items []*Product, total, page, pageSize int) *ProductPage {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return &ProductPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
