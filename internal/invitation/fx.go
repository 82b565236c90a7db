package invitation

import (
	"github.com/hearthhq/hearth/internal/invitation/repository"
	"github.com/hearthhq/hearth/internal/invitation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invitation.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
