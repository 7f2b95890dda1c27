// Package seed bootstraps the discount and margin catalog so a fresh install
// can price quotes without manual data entry.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/quotedesk/internal/catalog/domain"
	"github.com/smallbiznis/quotedesk/internal/pricing"
	"gorm.io/gorm"
)

const defaultVendor = "default"

// EnsureCatalogDefaults inserts baseline discount definitions and country
// margins when the catalog is empty. Existing records are left alone.
func EnsureCatalogDefaults(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureDiscounts(ctx, tx, node); err != nil {
			return err
		}
		return ensureMargins(ctx, tx, node)
	})
}

func ensureDiscounts(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&catalogdomain.DiscountDefinition{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []catalogdomain.DiscountDefinition{
		{Kind: pricing.DiscountMultiYear, Country: "US", Years: 3, ValuePct: decimal.NewFromInt(10)},
		{Kind: pricing.DiscountMultiYear, Country: "US", Years: 5, ValuePct: decimal.NewFromInt(15)},
		{Kind: pricing.DiscountPrePay, Country: "US", ValuePct: decimal.NewFromInt(5)},
		{Kind: pricing.DiscountMultiYear, Country: "DE", Years: 3, ValuePct: decimal.NewFromInt(8)},
		{Kind: pricing.DiscountPrePay, Country: "DE", ValuePct: decimal.NewFromInt(4)},
	}
	for i := range defaults {
		defaults[i].ID = node.Generate()
		defaults[i].VendorName = defaultVendor
		if err := tx.WithContext(ctx).Create(&defaults[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func ensureMargins(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&catalogdomain.CountryMargin{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []catalogdomain.CountryMargin{
		{Country: "US", QuoteType: "contract", MarginPct: decimal.NewFromInt(12), TaxPct: decimal.Zero},
		{Country: "US", QuoteType: "pack", MarginPct: decimal.NewFromInt(15), TaxPct: decimal.Zero},
		{Country: "DE", QuoteType: "contract", MarginPct: decimal.NewFromInt(10), TaxPct: decimal.NewFromInt(19)},
		{Country: "DE", QuoteType: "pack", MarginPct: decimal.NewFromInt(12), TaxPct: decimal.NewFromInt(19)},
	}
	for i := range defaults {
		defaults[i].ID = node.Generate()
		defaults[i].VendorName = defaultVendor
		if err := tx.WithContext(ctx).Create(&defaults[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
