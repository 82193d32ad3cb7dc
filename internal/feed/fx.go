package feed

import (
	"go.uber.org/fx"

	"github.com/lmcintyre/gather/internal/gather"
)

var Module = fx.Module("feed",
	fx.Provide(
		fx.Annotate(New, fx.As(new(gather.Feed))),
	),
)
