package clock

import (
	"go.uber.org/fx"
)

// Module 提供系统时钟
func Module() fx.Option {
	return fx.Module("clock",
		fx.Provide(NewSystemClock),
	)
}
