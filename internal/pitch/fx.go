package pitch

import (
	"github.com/smallbiznis/pitchdeck/internal/pitch/repository"
	"github.com/smallbiznis/pitchdeck/internal/pitch/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pitch.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
