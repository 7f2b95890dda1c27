package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/quotedesk/internal/pricing"
	"gorm.io/datatypes"
)

// DiscountDefinition is one discount a sales rep may select for a quote
// version, scoped to country and vendor.
type DiscountDefinition struct {
	ID         snowflake.ID         `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID         `gorm:"not null;index" json:"organization_id"`
	Kind       pricing.DiscountKind `gorm:"not null" json:"kind"`
	Country    string               `gorm:"not null;index" json:"country"`
	VendorName string               `gorm:"not null" json:"vendor_name"`
	// Years applies to multi_year definitions only (duration of the term).
	Years     int               `json:"years,omitempty"`
	ValuePct  decimal.Decimal   `gorm:"type:numeric;not null" json:"value_pct"`
	ValidFrom *time.Time        `json:"valid_from,omitempty"`
	ValidTo   *time.Time        `json:"valid_to,omitempty"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// CountryMargin carries the margin and tax percentages applied after
// discounts for a country/vendor/quote-type combination.
type CountryMargin struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID    `gorm:"not null;index" json:"organization_id"`
	Country    string          `gorm:"not null;index" json:"country"`
	VendorName string          `gorm:"not null" json:"vendor_name"`
	QuoteType  string          `gorm:"not null" json:"quote_type"`
	MarginPct  decimal.Decimal `gorm:"type:numeric;not null" json:"margin_pct"`
	TaxPct     decimal.Decimal `gorm:"type:numeric;not null" json:"tax_pct"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

type ListDiscountsRequest struct {
	Country    string
	VendorName string
	At         time.Time
}

type Service interface {
	ListDiscounts(ctx context.Context, req ListDiscountsRequest) ([]DiscountDefinition, error)
	FindDiscount(ctx context.Context, id snowflake.ID) (*DiscountDefinition, error)
	FindMargin(ctx context.Context, country, vendor, quoteType string) (*CountryMargin, error)
}

var (
	ErrInvalidCountry = errors.New("invalid_country")
	ErrNotFound       = errors.New("not_found")
)
