package group

import (
	"github.com/smallbiznis/quotedesk/internal/group/service"
	"go.uber.org/fx"
)

var Module = fx.Module("group",
	fx.Provide(service.New),
)
