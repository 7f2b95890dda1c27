package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ExchangeRate is a stored conversion rate. Rates are maintained by an
// external sourcing process; this service only reads them.
type ExchangeRate struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	FromCurrency string          `gorm:"not null;uniqueIndex:ux_exchange_rates_pair" json:"from_currency"`
	ToCurrency   string          `gorm:"not null;uniqueIndex:ux_exchange_rates_pair" json:"to_currency"`
	Rate         decimal.Decimal `gorm:"type:numeric;not null" json:"rate"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// RateProvider annotates price summaries with converted totals. It never
// mutates pricing inputs.
type RateProvider interface {
	TargetRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

var ErrRateNotFound = errors.New("rate_not_found")
