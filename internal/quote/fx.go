package quote

import (
	"github.com/smallbiznis/quotedesk/internal/quote/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quote",
	fx.Provide(service.NewValidationGate),
	fx.Provide(service.New),
)
