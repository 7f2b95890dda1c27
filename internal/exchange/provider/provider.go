package provider

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/quotedesk/internal/cache"
	"github.com/smallbiznis/quotedesk/internal/exchange/domain"
	"github.com/smallbiznis/quotedesk/pkg/repository"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const rateTTL = 10 * time.Minute

type Params struct {
	fx.In

	DB *gorm.DB
}

type dbProvider struct {
	repo  repository.Repository[domain.ExchangeRate]
	rates cache.Cache[string, decimal.Decimal]
}

// New returns a database-backed rate provider with a short-lived cache in
// front of it.
func New(p Params) domain.RateProvider {
	return &dbProvider{
		repo:  repository.ProvideStore[domain.ExchangeRate](p.DB),
		rates: cache.NewTTLCache[string, decimal.Decimal](),
	}
}

func (p *dbProvider) TargetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	key := from + "/" + to
	if rate, ok := p.rates.Get(key); ok {
		return rate, nil
	}

	record, err := p.repo.FindOne(ctx, &domain.ExchangeRate{FromCurrency: from, ToCurrency: to})
	if err != nil {
		return decimal.Zero, err
	}
	if record == nil {
		return decimal.Zero, domain.ErrRateNotFound
	}

	p.rates.Set(key, record.Rate, rateTTL)
	return record.Rate, nil
}
