package session

import (
	"github.com/smallbiznis/talentbay/internal/auth/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.session",
	fx.Provide(NewManager),
	fx.Provide(NewStore),
	fx.Provide(func(s *Store) domain.SessionStore { return s }),
	fx.Invoke(registerStoreLifecycle),
)

func registerStoreLifecycle(lc fx.Lifecycle, s *Store) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.Stop,
	})
}
