package quoteversion

import (
	"github.com/smallbiznis/quotedesk/internal/quoteversion/repository"
	"github.com/smallbiznis/quotedesk/internal/quoteversion/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quoteversion.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
