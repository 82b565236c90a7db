package user

import (
	"github.com/hearthhq/hearth/internal/user/repository"
	"github.com/hearthhq/hearth/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
