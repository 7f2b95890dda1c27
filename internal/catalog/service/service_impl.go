package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotedesk/internal/catalog/domain"
	"github.com/smallbiznis/quotedesk/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	discounts repository.Repository[domain.DiscountDefinition]
	margins   repository.Repository[domain.CountryMargin]
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("catalog.service"),
		discounts: repository.ProvideStore[domain.DiscountDefinition](p.DB),
		margins:   repository.ProvideStore[domain.CountryMargin](p.DB),
	}
}

func (s *Service) ListDiscounts(ctx context.Context, req domain.ListDiscountsRequest) ([]domain.DiscountDefinition, error) {
	country := strings.ToUpper(strings.TrimSpace(req.Country))
	if country == "" {
		return nil, domain.ErrInvalidCountry
	}

	var definitions []domain.DiscountDefinition
	stmt := s.db.WithContext(ctx).
		Model(&domain.DiscountDefinition{}).
		Where("country = ?", country)
	if vendor := strings.TrimSpace(req.VendorName); vendor != "" {
		stmt = stmt.Where("vendor_name = ?", vendor)
	}
	if !req.At.IsZero() {
		stmt = stmt.
			Where("valid_from IS NULL OR valid_from <= ?", req.At).
			Where("valid_to IS NULL OR valid_to >= ?", req.At)
	}
	if err := stmt.Order("kind, value_pct").Find(&definitions).Error; err != nil {
		return nil, err
	}
	return definitions, nil
}

func (s *Service) FindDiscount(ctx context.Context, id snowflake.ID) (*domain.DiscountDefinition, error) {
	definition, err := s.discounts.FindOne(ctx, &domain.DiscountDefinition{ID: id})
	if err != nil {
		return nil, err
	}
	if definition == nil {
		return nil, domain.ErrNotFound
	}
	return definition, nil
}

func (s *Service) FindMargin(ctx context.Context, country, vendor, quoteType string) (*domain.CountryMargin, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return nil, domain.ErrInvalidCountry
	}

	margin, err := s.margins.FindOne(ctx, &domain.CountryMargin{
		Country:    country,
		VendorName: strings.TrimSpace(vendor),
		QuoteType:  quoteType,
	})
	if err != nil {
		return nil, err
	}
	if margin == nil {
		// Vendor-specific record wins; fall back to the country default.
		margin, err = s.margins.FindOne(ctx, &domain.CountryMargin{Country: country, QuoteType: quoteType})
		if err != nil {
			return nil, err
		}
	}
	if margin == nil {
		return nil, domain.ErrNotFound
	}
	return margin, nil
}
