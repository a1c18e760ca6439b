package invitation

import (
	"github.com/smallbiznis/pitchdeck/internal/invitation/domain"
	"github.com/smallbiznis/pitchdeck/internal/invitation/repository"
	"github.com/smallbiznis/pitchdeck/internal/invitation/service"
	"github.com/smallbiznis/pitchdeck/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("invitation.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(func(l *ratelimit.Limiter) domain.InviteLocker { return l }),
	fx.Provide(service.NewService),
)
