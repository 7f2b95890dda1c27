package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/quotedesk/internal/catalog/domain"
	"github.com/smallbiznis/quotedesk/internal/pricing"
	"github.com/smallbiznis/quotedesk/pkg/money"
)

type previewItem struct {
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price" binding:"required"`
	Selected  *bool  `json:"is_selected"`
	Duplicate bool   `json:"is_duplicate"`
}

type previewDiscount struct {
	Kind     string `json:"kind" binding:"required"`
	ValuePct string `json:"value_pct" binding:"required"`
}

type previewRequest struct {
	Items                 []previewItem     `json:"items"`
	Discounts             []previewDiscount `json:"discounts"`
	MarginPct             string            `json:"margin_pct"`
	TaxPct                string            `json:"tax_pct"`
	UseListPriceForMargin bool              `json:"use_list_price_for_margin"`
	Currency              string            `json:"currency"`
	TargetCurrency        string            `json:"target_currency"`
}

// PreviewPricing runs the pipeline against hypothetical inputs. Nothing is
// persisted; sales reps use this to compare discount scenarios.
func (s *Server) PreviewPricing(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	input, err := previewInput(req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	view, err := s.previewer.Preview(c.Request.Context(), input, req.Currency, req.TargetCurrency)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func previewInput(req previewRequest) (pricing.Input, error) {
	input := pricing.Input{UseListPriceForMargin: req.UseListPriceForMargin}

	for _, item := range req.Items {
		price, err := money.Parse(item.UnitPrice)
		if err != nil {
			return pricing.Input{}, newValidationError("unit_price", "invalid_unit_price", "invalid unit price")
		}
		selected := true
		if item.Selected != nil {
			selected = *item.Selected
		}
		input.Items = append(input.Items, pricing.LineItem{
			Quantity:  item.Quantity,
			UnitPrice: price,
			Selected:  selected,
			Duplicate: item.Duplicate,
		})
	}

	for _, discount := range req.Discounts {
		pct, err := money.Parse(discount.ValuePct)
		if err != nil {
			return pricing.Input{}, newValidationError("value_pct", "invalid_value_pct", "invalid discount percentage")
		}
		input.Discounts = append(input.Discounts, pricing.DiscountSelection{
			Kind:     pricing.DiscountKind(discount.Kind),
			ValuePct: pct,
		})
	}

	var err error
	if input.MarginPct, err = money.Parse(req.MarginPct); err != nil {
		return pricing.Input{}, newValidationError("margin_pct", "invalid_margin_pct", "invalid margin percentage")
	}
	if input.TaxPct, err = money.Parse(req.TaxPct); err != nil {
		return pricing.Input{}, newValidationError("tax_pct", "invalid_tax_pct", "invalid tax percentage")
	}
	return input, nil
}

func (s *Server) ListCatalogDiscounts(c *gin.Context) {
	definitions, err := s.catalogSvc.ListDiscounts(c.Request.Context(), catalogdomain.ListDiscountsRequest{
		Country:    c.Query("country"),
		VendorName: c.Query("vendor"),
		At:         time.Now().UTC(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"discounts": definitions})
}
