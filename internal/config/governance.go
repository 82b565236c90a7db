package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// GovernanceConfig holds tunable membership and invitation policy.
// It is hot-reloadable so operators can adjust invite lifetimes without a restart.
type GovernanceConfig struct {
	InviteTTL        time.Duration `mapstructure:"inviteTTL"`
	InviteTokenBytes int           `mapstructure:"inviteTokenBytes"`
	DefaultRole      string        `mapstructure:"defaultRole"`
}

func DefaultGovernanceConfig() GovernanceConfig {
	return GovernanceConfig{
		InviteTTL:        7 * 24 * time.Hour,
		InviteTokenBytes: 32,
		DefaultRole:      "MEMBER",
	}
}

// GovernanceConfigHolder exposes the current governance policy with atomic swaps on reload.
type GovernanceConfigHolder struct {
	current atomic.Value // holds GovernanceConfig
}

func NewGovernanceConfigHolder(log *zap.Logger) (*GovernanceConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("governance")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/hearth/config") // Volume-mounted config
	v.AddConfigPath("/etc/hearth")            // System config
	v.AddConfigPath(".")                      // Current directory (dev mode)

	v.SetEnvPrefix("HEARTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultGovernanceConfig()
	v.SetDefault("governance.inviteTTL", defaults.InviteTTL)
	v.SetDefault("governance.inviteTokenBytes", defaults.InviteTokenBytes)
	v.SetDefault("governance.defaultRole", defaults.DefaultRole)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg GovernanceConfig
	if err := v.UnmarshalKey("governance", &cfg); err != nil {
		return nil, err
	}
	if err := validateGovernanceConfig(&cfg); err != nil {
		return nil, err
	}

	holder := &GovernanceConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated GovernanceConfig
		if err := v.UnmarshalKey("governance", &updated); err != nil {
			log.Warn("governance config reload failed", zap.Error(err))
			return
		}
		if err := validateGovernanceConfig(&updated); err != nil {
			log.Warn("invalid governance config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("governance config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *GovernanceConfigHolder) Get() GovernanceConfig {
	return h.current.Load().(GovernanceConfig)
}

// NewStaticGovernanceConfigHolder returns a holder that never reloads. Test seam.
func NewStaticGovernanceConfigHolder(cfg GovernanceConfig) *GovernanceConfigHolder {
	holder := &GovernanceConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// validateGovernanceConfig also canonicalizes DefaultRole so services can
// compare it against role constants directly.
func validateGovernanceConfig(cfg *GovernanceConfig) error {
	if cfg.InviteTTL <= 0 {
		return errors.New("governance.inviteTTL must be positive")
	}
	if cfg.InviteTokenBytes < 16 {
		return errors.New("governance.inviteTokenBytes must be at least 16")
	}
	role := strings.ToUpper(strings.TrimSpace(cfg.DefaultRole))
	switch role {
	case "ADMIN", "MEMBER":
		cfg.DefaultRole = role
	default:
		return errors.New("governance.defaultRole must be ADMIN or MEMBER")
	}
	return nil
}
