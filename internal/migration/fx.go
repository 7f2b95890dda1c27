package migration

import (
	catalogdomain "github.com/smallbiznis/quotedesk/internal/catalog/domain"
	"github.com/smallbiznis/quotedesk/internal/config"
	exchangedomain "github.com/smallbiznis/quotedesk/internal/exchange/domain"
	groupdomain "github.com/smallbiznis/quotedesk/internal/group/domain"
	lineitemdomain "github.com/smallbiznis/quotedesk/internal/lineitem/domain"
	quotedomain "github.com/smallbiznis/quotedesk/internal/quote/domain"
	versiondomain "github.com/smallbiznis/quotedesk/internal/quoteversion/domain"
	"github.com/smallbiznis/quotedesk/internal/seed"
	"github.com/smallbiznis/quotedesk/internal/sequence"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else if err := AutoMigrate(conn); err != nil {
			return err
		}

		return seed.EnsureCatalogDefaults(conn)
	}),
)

// AutoMigrate builds the schema from the models for sqlite and mysql, where
// the embedded postgres migrations do not apply.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&quotedomain.Quote{},
		&versiondomain.QuoteVersion{},
		&lineitemdomain.Distribution{},
		&lineitemdomain.Row{},
		&lineitemdomain.Asset{},
		&groupdomain.Group{},
		&sequence.QuoteCounter{},
		&catalogdomain.DiscountDefinition{},
		&catalogdomain.CountryMargin{},
		&exchangedomain.ExchangeRate{},
	)
}
