package stage

import (
	"github.com/smallbiznis/quotedesk/internal/stage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("stage",
	fx.Provide(service.New),
)
