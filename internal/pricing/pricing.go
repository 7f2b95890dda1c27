// Package pricing implements the quote price pipeline: list price over the
// selected line items, sequentially applied discounts in canonical order,
// then country margin and tax. Every function here is pure; callers persist
// nothing and may re-run the pipeline with hypothetical inputs for previews.
package pricing

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/quotedesk/pkg/money"
)

// DiscountKind identifies one discount family. Application order across kinds
// is fixed regardless of the order selections arrive in.
type DiscountKind string

const (
	DiscountMultiYear          DiscountKind = "multi_year"
	DiscountPrePay             DiscountKind = "pre_pay"
	DiscountPromotional        DiscountKind = "promotional"
	DiscountSpecialNegotiation DiscountKind = "special_negotiation"
	DiscountCustom             DiscountKind = "custom"
)

// CanonicalOrder is the fixed application order of discount kinds.
var CanonicalOrder = []DiscountKind{
	DiscountMultiYear,
	DiscountPrePay,
	DiscountPromotional,
	DiscountSpecialNegotiation,
	DiscountCustom,
}

// LineItem is the pipeline's view of one row or asset.
type LineItem struct {
	ID        snowflake.ID
	Quantity  int64
	UnitPrice decimal.Decimal
	Selected  bool
	Duplicate bool
}

// DiscountSelection is one chosen discount with its percentage value.
type DiscountSelection struct {
	Kind     DiscountKind
	ValuePct decimal.Decimal
}

// Input carries everything the pipeline needs. UseListPriceForMargin is true
// for pack quotes, where margin is taken against the list price instead of the
// discounted buy price.
type Input struct {
	Items                 []LineItem
	Discounts             []DiscountSelection
	MarginPct             decimal.Decimal
	TaxPct                decimal.Decimal
	UseListPriceForMargin bool
}

// AppliedDiscount records one discount's contribution for display.
type AppliedDiscount struct {
	Kind       DiscountKind    `json:"kind"`
	ValuePct   decimal.Decimal `json:"value_pct"`
	Amount     decimal.Decimal `json:"amount"`
	PriceAfter decimal.Decimal `json:"price_after"`
}

// PriceSummary is the derived pipeline output. Amounts stay unrounded; use
// View for 2dp display values.
type PriceSummary struct {
	ListPrice       decimal.Decimal
	Applied         []AppliedDiscount
	TotalDiscount   decimal.Decimal
	BuyPrice        decimal.Decimal
	MarginAmount    decimal.Decimal
	TotalBeforeTax  decimal.Decimal
	TaxAmount       decimal.Decimal
	FinalTotalPrice decimal.Decimal
	Clamped         bool
}

// ComputePriceSummary runs the full pipeline. It is deterministic: identical
// inputs produce identical outputs.
func ComputePriceSummary(in Input) (PriceSummary, error) {
	listPrice := decimal.Zero
	for _, item := range in.Items {
		if !item.Selected || item.Duplicate {
			continue
		}
		lineTotal, err := money.LineTotal(item.UnitPrice, item.Quantity)
		if err != nil {
			return PriceSummary{}, err
		}
		listPrice = listPrice.Add(lineTotal)
	}

	summary := PriceSummary{ListPrice: listPrice}

	running := listPrice
	for _, kind := range CanonicalOrder {
		for _, sel := range in.Discounts {
			if sel.Kind != kind || sel.ValuePct.IsZero() {
				continue
			}
			amount := money.Percent(running, sel.ValuePct)
			running = running.Sub(amount)
			if clamped, was := money.ClampNonNegative(running); was {
				running = clamped
				summary.Clamped = true
			}
			summary.Applied = append(summary.Applied, AppliedDiscount{
				Kind:       kind,
				ValuePct:   sel.ValuePct,
				Amount:     amount,
				PriceAfter: running,
			})
		}
	}

	summary.BuyPrice = running
	summary.TotalDiscount = listPrice.Sub(running)

	marginBase := running
	if in.UseListPriceForMargin {
		marginBase = listPrice
	}
	summary.MarginAmount = money.Percent(marginBase, in.MarginPct)
	summary.TotalBeforeTax = running.Add(summary.MarginAmount)
	summary.TaxAmount = money.Percent(summary.TotalBeforeTax, in.TaxPct)
	summary.FinalTotalPrice = summary.TotalBeforeTax.Add(summary.TaxAmount)

	return summary, nil
}
