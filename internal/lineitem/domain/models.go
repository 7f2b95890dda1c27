package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemKind distinguishes distributor rows (contract quotes) from flat assets
// (pack quotes).
type ItemKind string

const (
	KindRow   ItemKind = "row"
	KindAsset ItemKind = "asset"
)

// Distribution is a per-vendor sub-quote inside a contract-type quote
// version. Rows always belong to exactly one distribution.
type Distribution struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	VersionID  snowflake.ID   `gorm:"not null;index" json:"version_id"`
	VendorName string         `gorm:"not null" json:"vendor_name"`
	Currency   string         `gorm:"not null" json:"currency"`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// Row is one imported line item of a distribution. GroupID is nil while the
// row is ungrouped. IsDuplicate is a computed annotation, never authoritative.
type Row struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	VersionID      snowflake.ID    `gorm:"not null;index" json:"version_id"`
	DistributionID snowflake.ID    `gorm:"not null;index" json:"distribution_id"`
	GroupID        *snowflake.ID   `gorm:"index" json:"group_id,omitempty"`
	SKU            string          `gorm:"column:sku;not null" json:"sku"`
	SerialNumber   string          `json:"serial_number,omitempty"`
	Description    string          `json:"description,omitempty"`
	Quantity       int64           `gorm:"not null" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:numeric;not null" json:"unit_price"`
	CoverageFrom   *time.Time      `json:"coverage_from,omitempty"`
	CoverageTo     *time.Time      `json:"coverage_to,omitempty"`
	IsSelected     bool            `gorm:"not null;default:true" json:"is_selected"`
	IsDuplicate    bool            `gorm:"not null;default:false" json:"is_duplicate"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName avoids the reserved word "rows".
func (Row) TableName() string {
	return "distribution_rows"
}

// Asset is one line item of a flat pack quote, attached directly to the
// version.
type Asset struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	VersionID    snowflake.ID    `gorm:"not null;index" json:"version_id"`
	GroupID      *snowflake.ID   `gorm:"index" json:"group_id,omitempty"`
	SKU          string          `gorm:"column:sku;not null" json:"sku"`
	SerialNumber string          `json:"serial_number,omitempty"`
	Description  string          `json:"description,omitempty"`
	Quantity     int64           `gorm:"not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric;not null" json:"unit_price"`
	CoverageFrom *time.Time      `json:"coverage_from,omitempty"`
	CoverageTo   *time.Time      `json:"coverage_to,omitempty"`
	IsSelected   bool            `gorm:"not null;default:true" json:"is_selected"`
	IsDuplicate  bool            `gorm:"not null;default:false" json:"is_duplicate"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

// Repository covers the line-item queries shared by the stage, group and
// versioning services.
type Repository interface {
	ListDistributions(ctx context.Context, db *gorm.DB, versionID snowflake.ID) ([]*Distribution, error)
	ListRowsByVersion(ctx context.Context, db *gorm.DB, versionID snowflake.ID) ([]*Row, error)
	ListAssetsByVersion(ctx context.Context, db *gorm.DB, versionID snowflake.ID) ([]*Asset, error)
}

var ErrItemNotFound = errors.New("item_not_found")
