// Package domain defines the staged workflow a quote version walks through
// before submission. Each stage carries a typed payload; the service enforces
// ordering and persists the payloads on the version.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/quotedesk/internal/importer"
	"github.com/smallbiznis/quotedesk/internal/pricing"
	quotedomain "github.com/smallbiznis/quotedesk/internal/quote/domain"
)

type Stage string

const (
	StageSetup        Stage = "setup"
	StageImport       Stage = "import"
	StageAssets       Stage = "assets"
	StageMargin       Stage = "margin"
	StageDiscount     Stage = "discount"
	StageDetails      Stage = "details"
	StageAssetsReview Stage = "assets_review"
	StageSubmission   Stage = "submission"
)

// Order returns the stage sequence for a contract type. Contract quotes
// import vendor schedules and may require an asset review pass before
// submission; pack quotes list their assets directly.
func Order(contractType quotedomain.ContractType, withAssetsReview bool) []Stage {
	if contractType == quotedomain.ContractTypePack {
		return []Stage{StageSetup, StageAssets, StageMargin, StageDiscount, StageDetails, StageSubmission}
	}
	order := []Stage{StageSetup, StageImport, StageMargin, StageDiscount, StageDetails}
	if withAssetsReview {
		order = append(order, StageAssetsReview)
	}
	return append(order, StageSubmission)
}

// Index returns the position of stage within order, or -1 when the stage is
// not part of the workflow.
func Index(order []Stage, stage Stage) int {
	for i, s := range order {
		if s == stage {
			return i
		}
	}
	return -1
}

// SetupPayload opens the workflow: who the quote is for and which vendor's
// terms apply. RequiresAssetsReview switches the review stage on for
// contract quotes.
type SetupPayload struct {
	VendorName           string `json:"vendor_name"`
	Country              string `json:"country"`
	CustomerReference    string `json:"customer_reference,omitempty"`
	RequiresAssetsReview bool   `json:"requires_assets_review,omitempty"`
}

// ImportPayload replaces the line items of one vendor distribution with the
// parsed rows of an uploaded schedule.
type ImportPayload struct {
	VendorName string                 `json:"vendor_name"`
	FileName   string                 `json:"file_name,omitempty"`
	Rows       []importer.ImportedRow `json:"rows"`
}

// AssetInput is one asset of a pack quote.
type AssetInput struct {
	SKU          string     `json:"sku"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Description  string     `json:"description,omitempty"`
	Quantity     int64      `json:"quantity"`
	UnitPrice    string     `json:"unit_price"`
	CoverageFrom *time.Time `json:"coverage_from,omitempty"`
	CoverageTo   *time.Time `json:"coverage_to,omitempty"`
	Selected     bool       `json:"is_selected"`
}

// AssetsPayload replaces the asset list of a pack quote version.
type AssetsPayload struct {
	Assets []AssetInput `json:"assets"`
}

// MarginPayload sets margin and tax on the version. With UseCountryDefault
// the values come from the country margin catalog instead.
type MarginPayload struct {
	UseCountryDefault bool            `json:"use_country_default,omitempty"`
	MarginPct         decimal.Decimal `json:"margin_pct"`
	TaxPct            decimal.Decimal `json:"tax_pct"`
}

// DiscountChoice references a catalog discount definition by id.
type DiscountChoice struct {
	DefinitionID snowflake.ID `json:"definition_id"`
}

type DiscountPayload struct {
	Choices []DiscountChoice `json:"choices"`
}

type DetailsPayload struct {
	PaymentTerms   string `json:"payment_terms,omitempty"`
	DeliveryTerms  string `json:"delivery_terms,omitempty"`
	OutputCurrency string `json:"output_currency,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

type AssetsReviewPayload struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes,omitempty"`
}

// Result is returned by every stage processor. Summary is populated by the
// margin and discount stages, which reprice the version.
type Result struct {
	Stage          Stage                 `json:"stage"`
	CompletedStage Stage                 `json:"completed_stage"`
	Summary        *pricing.PriceSummary `json:"summary,omitempty"`
}

type Service interface {
	ProcessSetup(ctx context.Context, quoteID, versionID snowflake.ID, payload SetupPayload) (Result, error)
	ProcessImport(ctx context.Context, quoteID, versionID snowflake.ID, payload ImportPayload) (Result, error)
	ProcessAssets(ctx context.Context, quoteID, versionID snowflake.ID, payload AssetsPayload) (Result, error)
	ProcessMargin(ctx context.Context, quoteID, versionID snowflake.ID, payload MarginPayload) (Result, error)
	ProcessDiscount(ctx context.Context, quoteID, versionID snowflake.ID, payload DiscountPayload) (Result, error)
	ProcessDetails(ctx context.Context, quoteID, versionID snowflake.ID, payload DetailsPayload) (Result, error)
	ProcessAssetsReview(ctx context.Context, quoteID, versionID snowflake.ID, payload AssetsReviewPayload) (Result, error)
}

var (
	ErrStageOrder       = errors.New("stage_order_violation")
	ErrStageNotInFlow   = errors.New("stage_not_in_workflow")
	ErrVersionSubmitted = errors.New("version_submitted")
	ErrUnknownDiscount  = errors.New("unknown_discount")
	ErrInvalidPayload   = errors.New("invalid_stage_payload")
)
