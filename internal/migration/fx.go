package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/hearthhq/hearth/internal/config"
	householddomain "github.com/hearthhq/hearth/internal/household/domain"
	invitationdomain "github.com/hearthhq/hearth/internal/invitation/domain"
	"github.com/hearthhq/hearth/internal/seed"
	userdomain "github.com/hearthhq/hearth/internal/user/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql are development conveniences; schema drift
			// is handled by gorm there.
			if err := conn.AutoMigrate(
				&userdomain.User{},
				&householddomain.Household{},
				&householddomain.Membership{},
				&invitationdomain.Invitation{},
			); err != nil {
				return err
			}
			if err := EnsureActiveInviteeIndex(conn); err != nil {
				return err
			}
		}

		if cfg.Bootstrap.EnsureDefaultHousehold {
			return seed.EnsureDefaultHouseholdAndAdmin(conn, node, cfg.Bootstrap.DefaultAdminEmail)
		}
		return nil
	}),
)
