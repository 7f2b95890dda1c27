package exchange

import (
	"github.com/smallbiznis/quotedesk/internal/exchange/provider"
	"go.uber.org/fx"
)

var Module = fx.Module("exchange",
	fx.Provide(provider.New),
)
