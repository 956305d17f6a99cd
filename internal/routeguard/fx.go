package routeguard

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("routeguard",
	fx.Provide(NewHolder),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, h *Holder) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return h.Close()
		},
	})
}
