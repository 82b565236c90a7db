package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/hearthhq/hearth/internal/account"
	accountdomain "github.com/hearthhq/hearth/internal/account/domain"
	"github.com/hearthhq/hearth/internal/config"
	"github.com/hearthhq/hearth/internal/household"
	householddomain "github.com/hearthhq/hearth/internal/household/domain"
	"github.com/hearthhq/hearth/internal/invitation"
	invitationdomain "github.com/hearthhq/hearth/internal/invitation/domain"
	"github.com/hearthhq/hearth/internal/observability"
	obslogger "github.com/hearthhq/hearth/internal/observability/logger"
	obsmetrics "github.com/hearthhq/hearth/internal/observability/metrics"
	obstracing "github.com/hearthhq/hearth/internal/observability/tracing"
	"github.com/hearthhq/hearth/internal/providers/email"
	"github.com/hearthhq/hearth/internal/user"
	userdomain "github.com/hearthhq/hearth/internal/user/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	email.Module,
	user.Module,
	household.Module,
	invitation.Module,
	account.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	genID         *snowflake.Node
	userSvc       userdomain.Service
	householdSvc  householddomain.Service
	invitationSvc invitationdomain.Service
	accountSvc    accountdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	UserSvc       userdomain.Service
	HouseholdSvc  householddomain.Service
	InvitationSvc invitationdomain.Service
	AccountSvc    accountdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		userSvc:       p.UserSvc,
		householdSvc:  p.HouseholdSvc,
		invitationSvc: p.InvitationSvc,
		accountSvc:    p.AccountSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// Registration is the only unauthenticated write.
	v1.POST("/users", s.CreateUser)

	v1.GET("/me", s.AuthRequired(), s.Me)
	v1.DELETE("/account", s.AuthRequired(), s.DeleteAccount)
	v1.GET("/account/memberships", s.AuthRequired(), s.ListAccountMemberships)

	households := v1.Group("/households", s.AuthRequired())
	{
		households.POST("", s.CreateHousehold)
		households.GET("", s.ListHouseholds)

		households.GET("/:householdId/members", s.ListMembers)
		households.POST("/:householdId/members", s.AddMember)
		households.DELETE("/:householdId/members/:userId", s.RemoveMember)

		households.GET("/:householdId/invitations", s.ListInvitations)
		households.POST("/:householdId/invitations", s.CreateInvitation)
		households.DELETE("/:householdId/invitations/:invitationId", s.RevokeInvitation)
	}

	v1.POST("/invitations/accept", s.AuthRequired(), s.AcceptInvitation)

	// Maintenance sweep, meant for a cron caller.
	v1.POST("/admin/invitations/expire", s.AuthRequired(), s.ExpireInvitations)
}
