package media

import (
	"github.com/smallbiznis/pitchdeck/internal/media/repository"
	"github.com/smallbiznis/pitchdeck/internal/media/service"
	"go.uber.org/fx"
)

var Module = fx.Module("media.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
