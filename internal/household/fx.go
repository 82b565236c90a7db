package household

import (
	"github.com/hearthhq/hearth/internal/household/repository"
	"github.com/hearthhq/hearth/internal/household/service"
	"go.uber.org/fx"
)

var Module = fx.Module("household.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
