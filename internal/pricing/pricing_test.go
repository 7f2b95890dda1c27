package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSequentialDiscountApplication(t *testing.T) {
	// 1000 with 10% multi-year then 5% promotional must run 1000 -> 900 -> 855,
	// not 1000 * 0.85 = 850.
	summary, err := ComputePriceSummary(Input{
		Items: []LineItem{
			{Quantity: 1, UnitPrice: dec("1000"), Selected: true},
		},
		Discounts: []DiscountSelection{
			// Delivered out of canonical order on purpose.
			{Kind: DiscountPromotional, ValuePct: dec("5")},
			{Kind: DiscountMultiYear, ValuePct: dec("10")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "1000", summary.ListPrice.String())
	require.Len(t, summary.Applied, 2)
	assert.Equal(t, DiscountMultiYear, summary.Applied[0].Kind)
	assert.Equal(t, "900", summary.Applied[0].PriceAfter.String())
	assert.Equal(t, DiscountPromotional, summary.Applied[1].Kind)
	assert.Equal(t, "855", summary.Applied[1].PriceAfter.String())
	assert.Equal(t, "855", summary.BuyPrice.String())
	assert.Equal(t, "145", summary.TotalDiscount.String())
}

func TestDeterminism(t *testing.T) {
	in := Input{
		Items: []LineItem{
			{Quantity: 3, UnitPrice: dec("19.99"), Selected: true},
			{Quantity: 2, UnitPrice: dec("7.35"), Selected: true},
		},
		Discounts: []DiscountSelection{
			{Kind: DiscountPrePay, ValuePct: dec("2.5")},
		},
		MarginPct: dec("12"),
		TaxPct:    dec("19"),
	}

	first, err := ComputePriceSummary(in)
	require.NoError(t, err)
	second, err := ComputePriceSummary(in)
	require.NoError(t, err)

	assert.Equal(t, first.View(), second.View())
}

func TestMarginThenTax(t *testing.T) {
	summary, err := ComputePriceSummary(Input{
		Items:     []LineItem{{Quantity: 1, UnitPrice: dec("855"), Selected: true}},
		MarginPct: dec("10"),
		TaxPct:    dec("20"),
	})
	require.NoError(t, err)

	// margin on buy price, tax on the margin-adjusted total
	assert.Equal(t, "85.50", summary.MarginAmount.StringFixed(2))
	assert.Equal(t, "940.50", summary.TotalBeforeTax.StringFixed(2))
	assert.Equal(t, "188.10", summary.TaxAmount.StringFixed(2))
	assert.Equal(t, "1128.60", summary.FinalTotalPrice.StringFixed(2))
}

func TestMarginAgainstListPriceForPackQuotes(t *testing.T) {
	summary, err := ComputePriceSummary(Input{
		Items: []LineItem{{Quantity: 1, UnitPrice: dec("1000"), Selected: true}},
		Discounts: []DiscountSelection{
			{Kind: DiscountMultiYear, ValuePct: dec("10")},
		},
		MarginPct:             dec("10"),
		UseListPriceForMargin: true,
	})
	require.NoError(t, err)

	// 10% of the 1000 list price, not of the 900 buy price.
	assert.Equal(t, "100", summary.MarginAmount.String())
	assert.Equal(t, "1000", summary.TotalBeforeTax.String())
}

func TestZeroItems(t *testing.T) {
	summary, err := ComputePriceSummary(Input{
		Discounts: []DiscountSelection{{Kind: DiscountMultiYear, ValuePct: dec("10")}},
		MarginPct: dec("15"),
		TaxPct:    dec("19"),
	})
	require.NoError(t, err)

	assert.True(t, summary.ListPrice.IsZero())
	assert.True(t, summary.FinalTotalPrice.IsZero())
	assert.False(t, summary.Clamped)
}

func TestUnselectedAndDuplicateItemsExcluded(t *testing.T) {
	summary, err := ComputePriceSummary(Input{
		Items: []LineItem{
			{Quantity: 1, UnitPrice: dec("100"), Selected: true},
			{Quantity: 1, UnitPrice: dec("40"), Selected: false},
			{Quantity: 1, UnitPrice: dec("60"), Selected: true, Duplicate: true},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "100", summary.ListPrice.String())
}

func TestNegativeRunningPriceClamps(t *testing.T) {
	summary, err := ComputePriceSummary(Input{
		Items: []LineItem{{Quantity: 1, UnitPrice: dec("100"), Selected: true}},
		Discounts: []DiscountSelection{
			{Kind: DiscountMultiYear, ValuePct: dec("120")},
		},
	})
	require.NoError(t, err)

	assert.True(t, summary.Clamped)
	assert.True(t, summary.BuyPrice.IsZero())
	assert.False(t, summary.FinalTotalPrice.IsNegative())
}

func TestNegativeQuantityRejected(t *testing.T) {
	_, err := ComputePriceSummary(Input{
		Items: []LineItem{{Quantity: -1, UnitPrice: dec("10"), Selected: true}},
	})
	assert.Error(t, err)
}
