package authsession

import (
	authdomain "github.com/smallbiznis/talentbay/internal/auth/domain"
	"github.com/smallbiznis/talentbay/internal/auth/session"
	"github.com/smallbiznis/talentbay/internal/clock"
	"github.com/smallbiznis/talentbay/internal/config"
	"github.com/smallbiznis/talentbay/internal/observability/errorsink"
	profiledomain "github.com/smallbiznis/talentbay/internal/profile/domain"
	"github.com/smallbiznis/talentbay/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("authsession",
	fx.Provide(provideProviderFactory),
	fx.Provide(provideRegistry),
	fx.Invoke(registerLifecycle),
)

type registryParams struct {
	fx.In

	Providers ProviderFactory
	Profiles  profiledomain.Repository
	Clock     clock.Clock
	Log       *zap.Logger
	Sink      errorsink.Sink
	Metrics   *telemetry.Metrics
	Cfg       config.Config
}

func provideProviderFactory(store *session.Store) ProviderFactory {
	return func(deviceID string) authdomain.SessionProvider {
		return store.Provider(deviceID)
	}
}

func provideRegistry(p registryParams) *Registry {
	return NewRegistry(p.Providers, p.Profiles, p.Clock, p.Log, p.Sink, p.Metrics, RegistryConfig{
		IdleTTL:       p.Cfg.Guard.ControllerIdle,
		SweepInterval: p.Cfg.Guard.SweepInterval,
	})
}

func registerLifecycle(lc fx.Lifecycle, r *Registry) {
	lc.Append(fx.Hook{
		OnStart: r.Start,
		OnStop:  r.Stop,
	})
}
