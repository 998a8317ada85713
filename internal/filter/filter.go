// Package filter turns catalog query strings into product filters.
// Every parser is total: a malformed value reads as absent, never as an error.
package filter

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"streetbasket/internal/domain"
)

const (
	KeySearch   = "search"
	KeyPriceMin = "price_min"
	KeyPriceMax = "price_max"
	KeyStock    = "stock_filter"
	KeyPage     = "page"
	KeyPerPage  = "per_page"
	KeyOwnerID  = "owner_id"
)

// Defaults bounds pagination
type Defaults struct {
	PageSize    int
	MaxPageSize int
}

// DefaultDefaults mirrors the catalog configuration defaults
var DefaultDefaults = Defaults{PageSize: 6, MaxPageSize: 50}

func (d Defaults) normalized() Defaults {
	if d.PageSize < 1 {
		d.PageSize = DefaultDefaults.PageSize
	}
	if d.MaxPageSize < 1 {
		d.MaxPageSize = DefaultDefaults.MaxPageSize
	}
	if d.PageSize > d.MaxPageSize {
		d.PageSize = d.MaxPageSize
	}
	return d
}

// FromQuery builds a product filter from request query parameters
func FromQuery(q url.Values, d Defaults) domain.ProductFilter {
	d = d.normalized()

	f := domain.ProductFilter{
		StockState: domain.StockAny,
		Page:       1,
		PageSize:   d.PageSize,
	}

	if s, ok := ParseSearch(q.Get(KeySearch)); ok {
		f.NameContains = &s
	}
	if p, ok := ParsePrice(q.Get(KeyPriceMin)); ok {
		f.PriceMin = &p
	}
	if p, ok := ParsePrice(q.Get(KeyPriceMax)); ok {
		f.PriceMax = &p
	}
	if s, ok := ParseStockState(q.Get(KeyStock)); ok {
		f.StockState = s
	}
	if n, ok := ParsePageSize(q.Get(KeyPerPage), d.MaxPageSize); ok {
		f.PageSize = n
	}
	// pages past the largest OFFSET read as absent
	if p, ok := ParsePage(q.Get(KeyPage)); ok && p-1 <= domain.MaxOffset/f.PageSize {
		f.Page = p
	}
	if id, ok := ParseID(q.Get(KeyOwnerID)); ok {
		f.OwnerID = &id
	}

	return f
}

// ParseSearch trims the search term; blank terms are absent
func ParseSearch(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	return s, s != ""
}

// ParsePrice accepts a decimal number that fits the price column:
// at most two fractional digits and no larger than domain.MaxPrice
func ParsePrice(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return domain.ValidPrice(d)
}

// ParseStockState accepts in_stock and out_of_stock, case-insensitively
func ParseStockState(raw string) (domain.StockState, bool) {
	switch domain.StockState(strings.ToLower(strings.TrimSpace(raw))) {
	case domain.StockIn:
		return domain.StockIn, true
	case domain.StockOut:
		return domain.StockOut, true
	case domain.StockAny:
		return domain.StockAny, true
	default:
		return domain.StockAny, false
	}
}

// ParsePage accepts a positive integer
func ParsePage(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// ParsePageSize accepts a positive integer and clamps it to max
func ParsePageSize(raw string, max int) (int, bool) {
	n, ok := ParsePage(raw)
	if !ok {
		return 0, false
	}
	if max > 0 && n > max {
		n = max
	}
	return n, true
}

// ParseID accepts a positive 64-bit identifier
func ParseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
