package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotedesk/internal/actorcontext"
	catalogdomain "github.com/smallbiznis/quotedesk/internal/catalog/domain"
	lineitemdomain "github.com/smallbiznis/quotedesk/internal/lineitem/domain"
	"github.com/smallbiznis/quotedesk/internal/pricing"
	quotedomain "github.com/smallbiznis/quotedesk/internal/quote/domain"
	versiondomain "github.com/smallbiznis/quotedesk/internal/quoteversion/domain"
	versionrepository "github.com/smallbiznis/quotedesk/internal/quoteversion/repository"
	"github.com/smallbiznis/quotedesk/internal/stage/domain"
	"github.com/smallbiznis/quotedesk/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	VersionRepo  versionrepository.Repository
	LineItemRepo lineitemdomain.Repository
	Catalog      catalogdomain.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	versionRepo  versionrepository.Repository
	lineItemRepo lineitemdomain.Repository
	catalog      catalogdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("stage.service"),
		genID:        p.GenID,
		versionRepo:  p.VersionRepo,
		lineItemRepo: p.LineItemRepo,
		catalog:      p.Catalog,
	}
}

func (s *Service) ProcessSetup(ctx context.Context, quoteID, versionID snowflake.ID, payload domain.SetupPayload) (domain.Result, error) {
	if strings.TrimSpace(payload.VendorName) == "" || strings.TrimSpace(payload.Country) == "" {
		return domain.Result{}, domain.ErrInvalidPayload
	}
	return s.process(ctx, quoteID, versionID, domain.StageSetup, payload, nil)
}

func (s *Service) ProcessImport(ctx context.Context, quoteID, versionID snowflake.ID, payload domain.ImportPayload) (domain.Result, error) {
	if strings.TrimSpace(payload.VendorName) == "" {
		return domain.Result{}, domain.ErrInvalidPayload
	}
	return s.process(ctx, quoteID, versionID, domain.StageImport, payload,
		func(ctx context.Context, tx *gorm.DB, quote *quotedomain.Quote, version *versiondomain.QuoteVersion) error {
			return s.replaceRows(ctx, tx, version, payload)
		})
}

func (s *Service) ProcessAssets(ctx context.Context, quoteID, versionID snowflake.ID, payload domain.AssetsPayload) (domain.Result, error) {
	return s.process(ctx, quoteID, versionID, domain.StageAssets, payload,
		func(ctx context.Context, tx *gorm.DB, quote *quotedomain.Quote, version *versiondomain.QuoteVersion) error {
			return s.replaceAssets(ctx, tx, version, payload)
		})
}

func (s *Service) ProcessMargin(ctx context.Context, quoteID, versionID snowflake.ID, payload domain.MarginPayload) (domain.Result, error) {
	result, err := s.process(ctx, quoteID, versionID, domain.StageMargin, payload,
		func(ctx context.Context, tx *gorm.DB, quote *quotedomain.Quote, version *versiondomain.QuoteVersion) error {
			margin := payload.MarginPct
			tax := payload.TaxPct
			if payload.UseCountryDefault {
				setup, err := setupOf(version)
				if err != nil {
					return err
				}
				record, err := s.catalog.FindMargin(ctx, setup.Country, setup.VendorName, string(quote.ContractType))
				if err != nil {
					return err
				}
				margin = record.MarginPct
				tax = record.TaxPct
			}
			version.MarginPct = margin
			version.TaxPct = tax
			return nil
		})
	if err != nil {
		return domain.Result{}, err
	}
	return s.withSummary(ctx, quoteID, versionID, result)
}

func (s *Service) ProcessDiscount(ctx context.Context, quoteID, versionID snowflake.ID, payload domain.DiscountPayload) (domain.Result, error) {
	result, err := s.process(ctx, quoteID, versionID, domain.StageDiscount, payload,
		func(ctx context.Context, tx *gorm.DB, quote *quotedomain.Quote, version *versiondomain.QuoteVersion) error {
			setup, err := setupOf(version)
			if err != nil {
				return err
			}
			for _, choice := range payload.Choices {
				definition, err := s.catalog.FindDiscount(ctx, choice.DefinitionID)
				if err != nil {
					if errors.Is(err, catalogdomain.ErrNotFound) {
						return domain.ErrUnknownDiscount
					}
					return err
				}
				if definition.Country != setup.Country || definition.VendorName != setup.VendorName {
					return domain.ErrUnknownDiscount
				}
			}
			return nil
		})
	if err != nil {
		return domain.Result{}, err
	}
	return s.withSummary(ctx, quoteID, versionID, result)
}

func (s *Service) ProcessDetails(ctx context.Context, quoteID, versionID snowflake.ID, payload domain.DetailsPayload) (domain.Result, error) {
	return s.process(ctx, quoteID, versionID, domain.StageDetails, payload,
		func(ctx context.Context, tx *gorm.DB, quote *quotedomain.Quote, version *versiondomain.QuoteVersion) error {
			if payload.OutputCurrency != "" {
				version.OutputCurrency = strings.ToUpper(strings.TrimSpace(payload.OutputCurrency))
			}
			return nil
		})
}

func (s *Service) ProcessAssetsReview(ctx context.Context, quoteID, versionID snowflake.ID, payload domain.AssetsReviewPayload) (domain.Result, error) {
	return s.process(ctx, quoteID, versionID, domain.StageAssetsReview, payload, nil)
}

type stageHook func(ctx context.Context, tx *gorm.DB, quote *quotedomain.Quote, version *versiondomain.QuoteVersion) error

// process is the shared stage walk: immutability and ordering checks, the
// stage-specific hook, then payload persistence. completed_stage only moves
// forward, so redoing an earlier stage never regresses the workflow.
func (s *Service) process(ctx context.Context, quoteID, versionID snowflake.ID, stage domain.Stage, payload any, hook stageHook) (domain.Result, error) {
	userID, ok := actorcontext.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.Result{}, quotedomain.ErrInvalidActor
	}

	quote, version, err := s.loadPair(ctx, quoteID, versionID)
	if err != nil {
		return domain.Result{}, err
	}
	if quote.Submitted() {
		return domain.Result{}, domain.ErrVersionSubmitted
	}
	// Superseded versions stay retained and addressable but read-only; only
	// the active version may advance, and only through its author.
	if !version.IsActive || version.AuthorID != userID {
		return domain.Result{}, versiondomain.ErrVersionImmutable
	}

	order := domain.Order(quote.ContractType, requiresAssetsReview(version))
	idx := domain.Index(order, stage)
	if idx < 0 {
		return domain.Result{}, domain.ErrStageNotInFlow
	}
	completed := domain.Index(order, domain.Stage(version.CompletedStage))
	if idx > completed+1 {
		return domain.Result{}, domain.ErrStageOrder
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if hook != nil {
			if err := hook(ctx, tx, quote, version); err != nil {
				return err
			}
		}
		if err := storePayload(version, stage, payload); err != nil {
			return err
		}
		if idx > completed {
			version.CompletedStage = string(stage)
		}
		return s.versionRepo.Update(ctx, tx, version)
	})
	if err != nil {
		return domain.Result{}, err
	}

	s.log.Info("stage processed",
		zap.String("quote_id", quote.ID.String()),
		zap.String("version_id", version.ID.String()),
		zap.String("stage", string(stage)),
	)

	return domain.Result{
		Stage:          stage,
		CompletedStage: domain.Stage(version.CompletedStage),
	}, nil
}

// withSummary reprices the version after a margin or discount change.
func (s *Service) withSummary(ctx context.Context, quoteID, versionID snowflake.ID, result domain.Result) (domain.Result, error) {
	quote, version, err := s.loadPair(ctx, quoteID, versionID)
	if err != nil {
		return domain.Result{}, err
	}
	summary, err := s.price(ctx, quote, version)
	if err != nil {
		return domain.Result{}, err
	}
	result.Summary = summary
	return result, nil
}

func (s *Service) price(ctx context.Context, quote *quotedomain.Quote, version *versiondomain.QuoteVersion) (*pricing.PriceSummary, error) {
	items, err := s.collectItems(ctx, quote, version.ID)
	if err != nil {
		return nil, err
	}
	discounts, err := s.selectedDiscounts(ctx, version)
	if err != nil {
		return nil, err
	}

	summary, err := pricing.ComputePriceSummary(pricing.Input{
		Items:                 items,
		Discounts:             discounts,
		MarginPct:             version.MarginPct,
		TaxPct:                version.TaxPct,
		UseListPriceForMargin: quote.ContractType == quotedomain.ContractTypePack,
	})
	if err != nil {
		return nil, err
	}
	if summary.Clamped {
		s.log.Warn("discounted price clamped to zero",
			zap.String("version_id", version.ID.String()))
	}
	return &summary, nil
}

// selectedDiscounts resolves the stored discount choices against the catalog.
func (s *Service) selectedDiscounts(ctx context.Context, version *versiondomain.QuoteVersion) ([]pricing.DiscountSelection, error) {
	var payload domain.DiscountPayload
	found, err := loadPayload(version, domain.StageDiscount, &payload)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	selections := make([]pricing.DiscountSelection, 0, len(payload.Choices))
	for _, choice := range payload.Choices {
		definition, err := s.catalog.FindDiscount(ctx, choice.DefinitionID)
		if err != nil {
			if errors.Is(err, catalogdomain.ErrNotFound) {
				return nil, domain.ErrUnknownDiscount
			}
			return nil, err
		}
		selections = append(selections, pricing.DiscountSelection{
			Kind:     definition.Kind,
			ValuePct: definition.ValuePct,
		})
	}
	return selections, nil
}

func (s *Service) collectItems(ctx context.Context, quote *quotedomain.Quote, versionID snowflake.ID) ([]pricing.LineItem, error) {
	var items []pricing.LineItem
	if quote.ContractType == quotedomain.ContractTypeContract {
		rows, err := s.lineItemRepo.ListRowsByVersion(ctx, s.db, versionID)
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

	assets, err := s.lineItemRepo.ListAssetsByVersion(ctx, s.db, versionID)
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

// replaceRows swaps one vendor distribution's rows for the freshly imported
// schedule. Re-importing the same file lands the version in the same state.
func (s *Service) replaceRows(ctx context.Context, tx *gorm.DB, version *versiondomain.QuoteVersion, payload domain.ImportPayload) error {
	var distribution lineitemdomain.Distribution
	err := tx.WithContext(ctx).
		Where("version_id = ? AND vendor_name = ?", version.ID, payload.VendorName).
		First(&distribution).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		distribution = lineitemdomain.Distribution{
			ID:         s.genID.Generate(),
			VersionID:  version.ID,
			VendorName: payload.VendorName,
			Currency:   version.Currency,
		}
		if err := tx.WithContext(ctx).Create(&distribution).Error; err != nil {
			return err
		}
	case err != nil:
		return err
	}

	if err := tx.WithContext(ctx).
		Where("distribution_id = ?", distribution.ID).
		Delete(&lineitemdomain.Row{}).Error; err != nil {
		return err
	}

	for _, imported := range payload.Rows {
		price, err := money.Parse(imported.UnitPrice)
		if err != nil {
			return fmt.Errorf("%w: unit price %q", domain.ErrInvalidPayload, imported.UnitPrice)
		}
		row := lineitemdomain.Row{
			ID:             s.genID.Generate(),
			VersionID:      version.ID,
			DistributionID: distribution.ID,
			SKU:            imported.SKU,
			SerialNumber:   imported.SerialNumber,
			Description:    imported.Description,
			Quantity:       imported.Quantity,
			UnitPrice:      price,
			CoverageFrom:   imported.CoverageFrom,
			CoverageTo:     imported.CoverageTo,
			IsSelected:     imported.Selected,
		}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) replaceAssets(ctx context.Context, tx *gorm.DB, version *versiondomain.QuoteVersion, payload domain.AssetsPayload) error {
	if err := tx.WithContext(ctx).
		Where("version_id = ?", version.ID).
		Delete(&lineitemdomain.Asset{}).Error; err != nil {
		return err
	}

	for _, input := range payload.Assets {
		price, err := money.Parse(input.UnitPrice)
		if err != nil {
			return fmt.Errorf("%w: unit price %q", domain.ErrInvalidPayload, input.UnitPrice)
		}
		asset := lineitemdomain.Asset{
			ID:           s.genID.Generate(),
			VersionID:    version.ID,
			SKU:          input.SKU,
			SerialNumber: input.SerialNumber,
			Description:  input.Description,
			Quantity:     input.Quantity,
			UnitPrice:    price,
			CoverageFrom: input.CoverageFrom,
			CoverageTo:   input.CoverageTo,
			IsSelected:   input.Selected,
		}
		if err := tx.WithContext(ctx).Create(&asset).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) loadPair(ctx context.Context, quoteID, versionID snowflake.ID) (*quotedomain.Quote, *versiondomain.QuoteVersion, error) {
	orgID, ok := actorcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, nil, quotedomain.ErrInvalidOrganization
	}

	var quote quotedomain.Quote
	err := s.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, quoteID).First(&quote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, quotedomain.ErrQuoteNotFound
		}
		return nil, nil, err
	}

	version, err := s.versionRepo.FindByID(ctx, s.db, quoteID, versionID)
	if err != nil {
		return nil, nil, err
	}
	if version == nil {
		return nil, nil, versiondomain.ErrVersionNotFound
	}
	return &quote, version, nil
}

func requiresAssetsReview(version *versiondomain.QuoteVersion) bool {
	var setup domain.SetupPayload
	found, err := loadPayload(version, domain.StageSetup, &setup)
	if err != nil || !found {
		return false
	}
	return setup.RequiresAssetsReview
}

func setupOf(version *versiondomain.QuoteVersion) (domain.SetupPayload, error) {
	var setup domain.SetupPayload
	found, err := loadPayload(version, domain.StageSetup, &setup)
	if err != nil {
		return domain.SetupPayload{}, err
	}
	if !found {
		return domain.SetupPayload{}, domain.ErrStageOrder
	}
	return setup, nil
}

// storePayload writes the typed payload into the version's payload map via a
// json round trip, keeping storage schemaless while the API stays typed.
func storePayload(version *versiondomain.QuoteVersion, stage domain.Stage, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	if version.Payloads == nil {
		version.Payloads = map[string]any{}
	}
	version.Payloads[string(stage)] = generic
	return nil
}

func loadPayload(version *versiondomain.QuoteVersion, stage domain.Stage, out any) (bool, error) {
	stored, ok := version.Payloads[string(stage)]
	if !ok {
		return false, nil
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, out)
}
