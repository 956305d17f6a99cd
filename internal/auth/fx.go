package auth

import (
	"github.com/smallbiznis/talentbay/internal/auth/repository"
	"github.com/smallbiznis/talentbay/internal/auth/service"
	"github.com/smallbiznis/talentbay/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	session.Module,
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
