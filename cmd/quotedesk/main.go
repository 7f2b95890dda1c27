package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotedesk/internal/catalog"
	"github.com/smallbiznis/quotedesk/internal/clock"
	"github.com/smallbiznis/quotedesk/internal/config"
	"github.com/smallbiznis/quotedesk/internal/exchange"
	"github.com/smallbiznis/quotedesk/internal/group"
	"github.com/smallbiznis/quotedesk/internal/lineitem"
	"github.com/smallbiznis/quotedesk/internal/migration"
	"github.com/smallbiznis/quotedesk/internal/notification"
	"github.com/smallbiznis/quotedesk/internal/observability"
	"github.com/smallbiznis/quotedesk/internal/pricing"
	"github.com/smallbiznis/quotedesk/internal/quote"
	"github.com/smallbiznis/quotedesk/internal/quoteversion"
	"github.com/smallbiznis/quotedesk/internal/sequence"
	"github.com/smallbiznis/quotedesk/internal/server"
	"github.com/smallbiznis/quotedesk/internal/stage"
	"github.com/smallbiznis/quotedesk/pkg/db"
	"github.com/smallbiznis/quotedesk/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		catalog.Module,
		exchange.Module,
		lineitem.Module,
		notification.Module,
		pricing.Module,
		sequence.Module,
		quoteversion.Module,
		group.Module,
		stage.Module,
		quote.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
