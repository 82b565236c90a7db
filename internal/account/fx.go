package account

import (
	"github.com/hearthhq/hearth/internal/account/repository"
	"github.com/hearthhq/hearth/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
