package domain

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidPrice(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"0", true},
		{"12.5", true},
		{"12.34", true},
		{"9999999999.99", true},
		{"12.340", true},
		{"12.345", false},
		{"1.0000000000000000000001", false},
		{"10000000000", false},
		{"99999999999", false},
		{"1e200000", false},
		{"1e2000000000", false},
		{"1e-2000000000", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, ok := ValidPrice(decimal.RequireFromString(tt.raw))
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestFitDecimal_NormalizesZero(t *testing.T) {
	got, ok := ValidPrice(decimal.RequireFromString("0e2000000000"))
	assert.True(t, ok)
	assert.Equal(t, "0", got.String())
}

func TestFitDecimal_DropsTrailingZeros(t *testing.T) {
	got, ok := ValidPrice(decimal.RequireFromString("12.3400"))
	assert.True(t, ok)
	assert.Equal(t, int32(-PriceScale), got.Exponent())
	assert.Equal(t, "12.34", got.String())
}

func TestValidQuantity(t *testing.T) {
	for raw, want := range map[string]bool{
		"1":             true,
		"0.001":         true,
		"999999999.999": true,
		"0":             false,
		"-1":            false,
		"0.0001":        false,
		"1.0004":        false,
		"1000000000":    false,
	} {
		_, ok := ValidQuantity(decimal.RequireFromString(raw))
		assert.Equal(t, want, ok, raw)
	}
}

func TestValidStock(t *testing.T) {
	assert.True(t, ValidStock(0))
	assert.True(t, ValidStock(-5))
	assert.True(t, ValidStock(math.MaxInt32))
	assert.False(t, ValidStock(3_000_000_000))
	assert.False(t, ValidStock(math.MinInt32-1))
}

func TestOffset_Saturates(t *testing.T) {
	assert.Equal(t, 0, ProductFilter{Page: 1, PageSize: 6}.Offset())
	assert.Equal(t, 12, ProductFilter{Page: 3, PageSize: 6}.Offset())
	assert.Equal(t, MaxOffset, ProductFilter{Page: math.MaxInt, PageSize: 6}.Offset())
}

// Offsets are never negative and never exceed MaxOffset
func TestProperty_OffsetInRange(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("offset stays within the OFFSET range", prop.ForAll(
		func(page int64, size int) bool {
			off := ProductFilter{Page: int(page), PageSize: size}.Offset()
			if off < 0 || off > MaxOffset {
				t.Logf("FAIL: page=%d size=%d offset=%d", page, size, off)
				return false
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}
