package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	groupdomain "github.com/smallbiznis/quotedesk/internal/group/domain"
	lineitemdomain "github.com/smallbiznis/quotedesk/internal/lineitem/domain"
	"github.com/smallbiznis/quotedesk/internal/pricing"
	quotedomain "github.com/smallbiznis/quotedesk/internal/quote/domain"
	versionrepository "github.com/smallbiznis/quotedesk/internal/quoteversion/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// validationGate is the default submission gate: the quote must have line
// items, a priced selection, at least one group or distribution, and a margin
// configured on its active version.
type validationGate struct {
	db           *gorm.DB
	log          *zap.Logger
	versionRepo  versionrepository.Repository
	lineItemRepo lineitemdomain.Repository
}

type GateParams struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	VersionRepo  versionrepository.Repository
	LineItemRepo lineitemdomain.Repository
}

func NewValidationGate(p GateParams) quotedomain.ValidationGate {
	return &validationGate{
		db:           p.DB,
		log:          p.Log.Named("quote.gate"),
		versionRepo:  p.VersionRepo,
		lineItemRepo: p.LineItemRepo,
	}
}

func (g *validationGate) Validate(ctx context.Context, quote *quotedomain.Quote) (quotedomain.ValidationResult, error) {
	version, err := g.versionRepo.FindActive(ctx, g.db, quote.ID)
	if err != nil {
		return quotedomain.ValidationResult{}, err
	}
	if version == nil {
		return quotedomain.ValidationResult{Messages: []string{"quote has no active version"}}, nil
	}

	var messages []string

	items, err := g.collectItems(ctx, quote, version.ID)
	if err != nil {
		return quotedomain.ValidationResult{}, err
	}
	if len(items) == 0 {
		messages = append(messages, "quote has no line items")
	}

	summary, err := pricing.ComputePriceSummary(pricing.Input{Items: items})
	if err != nil {
		return quotedomain.ValidationResult{}, err
	}
	if summary.ListPrice.IsZero() && len(items) > 0 {
		messages = append(messages, "no line items are selected for pricing")
	}

	hasContainer, err := g.hasGroupOrDistribution(ctx, quote, version.ID)
	if err != nil {
		return quotedomain.ValidationResult{}, err
	}
	if !hasContainer {
		messages = append(messages, "quote needs at least one group or distribution")
	}

	if version.MarginPct.IsZero() {
		messages = append(messages, "country margin is not set")
	}

	return quotedomain.ValidationResult{
		IsPassed: len(messages) == 0,
		Messages: messages,
	}, nil
}

func (g *validationGate) collectItems(ctx context.Context, quote *quotedomain.Quote, versionID snowflake.ID) ([]pricing.LineItem, error) {
	var items []pricing.LineItem
	if quote.ContractType == quotedomain.ContractTypeContract {
		rows, err := g.lineItemRepo.ListRowsByVersion(ctx, g.db, versionID)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			items = append(items, pricing.LineItem{
				ID:        row.ID,
				Quantity:  row.Quantity,
				UnitPrice: row.UnitPrice,
				Selected:  row.IsSelected,
				Duplicate: row.IsDuplicate,
			})
		}
		return items, nil
	}

	assets, err := g.lineItemRepo.ListAssetsByVersion(ctx, g.db, versionID)
	if err != nil {
		return nil, err
	}
	for _, asset := range assets {
		items = append(items, pricing.LineItem{
			ID:        asset.ID,
			Quantity:  asset.Quantity,
			UnitPrice: asset.UnitPrice,
			Selected:  asset.IsSelected,
			Duplicate: asset.IsDuplicate,
		})
	}
	return items, nil
}

func (g *validationGate) hasGroupOrDistribution(ctx context.Context, quote *quotedomain.Quote, versionID snowflake.ID) (bool, error) {
	if quote.ContractType == quotedomain.ContractTypeContract {
		distributions, err := g.lineItemRepo.ListDistributions(ctx, g.db, versionID)
		if err != nil {
			return false, err
		}
		return len(distributions) > 0, nil
	}

	var count int64
	err := g.db.WithContext(ctx).
		Model(&groupdomain.Group{}).
		Where("version_id = ?", versionID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
