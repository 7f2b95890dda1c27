package lineitem

import (
	"github.com/smallbiznis/quotedesk/internal/lineitem/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("lineitem",
	fx.Provide(repository.Provide),
)
