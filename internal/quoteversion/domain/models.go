package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuoteVersion is one editable snapshot of a quote's configurable data.
// Exactly one version per quote is active; a version is mutable only by its
// author while it is active and the quote is not submitted. Superseded
// versions are retained, immutable and addressable by id.
type QuoteVersion struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	QuoteID        snowflake.ID    `gorm:"not null;index" json:"quote_id"`
	AuthorID       snowflake.ID    `gorm:"not null" json:"author_id"`
	Revision       int             `gorm:"not null" json:"revision"`
	Name           string          `gorm:"not null" json:"name"`
	Currency       string          `gorm:"not null" json:"currency"`
	OutputCurrency string          `json:"output_currency,omitempty"`
	MarginPct      decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"margin_pct"`
	TaxPct         decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"tax_pct"`
	// Payloads keeps the raw stage payloads keyed by stage name. The stage
	// service validates typed payload structs before anything lands here.
	Payloads       datatypes.JSONMap `gorm:"type:jsonb" json:"payloads,omitempty"`
	CompletedStage string            `json:"completed_stage,omitempty"`
	IsActive       bool              `gorm:"not null;default:false" json:"is_active"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt      gorm.DeletedAt    `gorm:"index" json:"-"`
}

// CloneEditable copies the version's editable state into a fresh version
// attributed to author. Line items, distributions and groups are copied by
// the repository; this covers the scalar state and stage payloads.
func (v *QuoteVersion) CloneEditable(id, author snowflake.ID, revision int, name string, now time.Time) *QuoteVersion {
	payloads := datatypes.JSONMap{}
	for key, value := range v.Payloads {
		payloads[key] = value
	}
	return &QuoteVersion{
		ID:             id,
		QuoteID:        v.QuoteID,
		AuthorID:       author,
		Revision:       revision,
		Name:           name,
		Currency:       v.Currency,
		OutputCurrency: v.OutputCurrency,
		MarginPct:      v.MarginPct,
		TaxPct:         v.TaxPct,
		Payloads:       payloads,
		CompletedStage: v.CompletedStage,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// VersionSelection is the read model for the version picker.
type VersionSelection struct {
	ID       snowflake.ID `json:"id"`
	Name     string       `json:"name"`
	Revision int          `json:"revision"`
	IsUsing  bool         `json:"is_using"`
	AuthorID snowflake.ID `json:"author_id"`
}

// Service is the version guard: the copy-on-divergent-author concurrency
// strategy that keeps concurrent editors from losing each other's work.
type Service interface {
	ResolveModelForActingUser(ctx context.Context, quoteID snowflake.ID) (QuoteVersion, error)
	PerformQuoteVersioning(ctx context.Context, quoteID snowflake.ID) (QuoteVersion, error)
	PerformQuoteVersioningFromVersion(ctx context.Context, quoteID, versionID snowflake.ID) (QuoteVersion, error)
	SwitchActiveVersion(ctx context.Context, quoteID, versionID snowflake.ID) error
	DeleteVersion(ctx context.Context, quoteID, versionID snowflake.ID) error
	ListVersions(ctx context.Context, quoteID snowflake.ID) ([]VersionSelection, error)
}

var (
	ErrVersionNotFound     = errors.New("version_not_found")
	ErrActiveVersionDelete = errors.New("active_version_delete")
	ErrVersionImmutable    = errors.New("version_immutable")
)
