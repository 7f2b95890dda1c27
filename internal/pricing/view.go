package pricing

import "github.com/smallbiznis/quotedesk/pkg/money"

// AppliedDiscountView is one discount line rendered for display.
type AppliedDiscountView struct {
	Kind       DiscountKind `json:"kind"`
	ValuePct   string       `json:"value_pct"`
	Amount     string       `json:"amount"`
	PriceAfter string       `json:"price_after"`
}

// SummaryView is the 2dp display form of a PriceSummary. Rounding happens
// here and nowhere earlier.
type SummaryView struct {
	ListPrice       string                `json:"list_price"`
	Applied         []AppliedDiscountView `json:"applied_discounts"`
	TotalDiscount   string                `json:"total_discount"`
	BuyPrice        string                `json:"buy_price"`
	MarginAmount    string                `json:"margin_amount"`
	TotalBeforeTax  string                `json:"total_before_tax"`
	TaxAmount       string                `json:"tax_amount"`
	FinalTotalPrice string                `json:"final_total_price"`
	Clamped         bool                  `json:"clamped,omitempty"`

	ConvertedCurrency string `json:"converted_currency,omitempty"`
	ConvertedTotal    string `json:"converted_total,omitempty"`
}

// View renders the summary for output.
func (s PriceSummary) View() SummaryView {
	view := SummaryView{
		ListPrice:       money.Display(s.ListPrice),
		TotalDiscount:   money.Display(s.TotalDiscount),
		BuyPrice:        money.Display(s.BuyPrice),
		MarginAmount:    money.Display(s.MarginAmount),
		TotalBeforeTax:  money.Display(s.TotalBeforeTax),
		TaxAmount:       money.Display(s.TaxAmount),
		FinalTotalPrice: money.Display(s.FinalTotalPrice),
		Clamped:         s.Clamped,
	}
	for _, applied := range s.Applied {
		view.Applied = append(view.Applied, AppliedDiscountView{
			Kind:       applied.Kind,
			ValuePct:   applied.ValuePct.String(),
			Amount:     money.Display(applied.Amount),
			PriceAfter: money.Display(applied.PriceAfter),
		})
	}
	return view
}
