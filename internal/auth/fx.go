package auth

import (
	"github.com/smallbiznis/pitchdeck/internal/auth/repository"
	"github.com/smallbiznis/pitchdeck/internal/auth/service"
	"github.com/smallbiznis/pitchdeck/internal/auth/session"
	"github.com/smallbiznis/pitchdeck/internal/auth/token"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(token.NewIssuer),
	fx.Provide(service.New),
	session.Module,
)
