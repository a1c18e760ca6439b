package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/pitchdeck/internal/audit"
	auditdomain "github.com/smallbiznis/pitchdeck/internal/audit/domain"
	"github.com/smallbiznis/pitchdeck/internal/auth"
	authdomain "github.com/smallbiznis/pitchdeck/internal/auth/domain"
	"github.com/smallbiznis/pitchdeck/internal/auth/session"
	"github.com/smallbiznis/pitchdeck/internal/authorization"
	"github.com/smallbiznis/pitchdeck/internal/config"
	"github.com/smallbiznis/pitchdeck/internal/events"
	"github.com/smallbiznis/pitchdeck/internal/invitation"
	invitationdomain "github.com/smallbiznis/pitchdeck/internal/invitation/domain"
	"github.com/smallbiznis/pitchdeck/internal/media"
	mediadomain "github.com/smallbiznis/pitchdeck/internal/media/domain"
	"github.com/smallbiznis/pitchdeck/internal/observability"
	obsmiddleware "github.com/smallbiznis/pitchdeck/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/pitchdeck/internal/observability/metrics"
	obstracing "github.com/smallbiznis/pitchdeck/internal/observability/tracing"
	"github.com/smallbiznis/pitchdeck/internal/organization"
	organizationdomain "github.com/smallbiznis/pitchdeck/internal/organization/domain"
	"github.com/smallbiznis/pitchdeck/internal/pitch"
	pitchdomain "github.com/smallbiznis/pitchdeck/internal/pitch/domain"
	"github.com/smallbiznis/pitchdeck/internal/ratelimit"
	"github.com/smallbiznis/pitchdeck/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	authorization.Module,
	audit.Module,
	events.Module,
	ratelimit.Module,
	organization.Module,
	auth.Module,
	invitation.Module,
	storage.Module,
	media.Module,
	pitch.Module,
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
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

// requestLimiter is satisfied by *ratelimit.Limiter.
type requestLimiter interface {
	Allow(ctx context.Context, endpoint string, userID snowflake.ID) (*ratelimit.RateLimitResult, error)
}

type Server struct {
	engine *gin.Engine
	log    *zap.Logger

	authsvc         authdomain.Service
	sessions        *session.Manager
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	organizationSvc organizationdomain.Service
	invitationSvc   invitationdomain.Service
	mediaSvc        mediadomain.Service
	pitchSvc        pitchdomain.Service
	store           storage.Store
	limiter         requestLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Log             *zap.Logger
	AuthService     authdomain.Service
	Sessions        *session.Manager
	AuthzService    authorization.Service
	AuditService    auditdomain.Service
	OrganizationSvc organizationdomain.Service
	InvitationSvc   invitationdomain.Service
	MediaSvc        mediadomain.Service
	PitchSvc        pitchdomain.Service
	Store           storage.Store
	Limiter         *ratelimit.Limiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:          p.Gin,
		log:             p.Log.Named("http.server"),
		authsvc:         p.AuthService,
		sessions:        p.Sessions,
		authzSvc:        p.AuthzService,
		auditSvc:        p.AuditService,
		organizationSvc: p.OrganizationSvc,
		invitationSvc:   p.InvitationSvc,
		mediaSvc:        p.MediaSvc,
		pitchSvc:        p.PitchSvc,
		store:           p.Store,
		limiter:         p.Limiter,
	}
}

func (s *Server) RegisterRoutes() {
	authGroup := s.engine.Group("/auth")
	{
		authGroup.POST("/register", s.Register)
		authGroup.POST("/login", s.Login)
		authGroup.POST("/logout", s.Logout)
	}

	api := s.engine.Group("/api")
	api.Use(s.AuthRequired())

	api.GET("/users/me", s.Me)

	orgs := api.Group("/organisations")
	{
		orgs.GET("", s.ListOrganizations)
		orgs.POST("", s.authorize(authorization.ObjectOrganization, authorization.ActionOrganizationCreate), s.CreateOrganization)
		orgs.GET("/:orgId", s.requireMember(), s.GetOrganization)
		orgs.POST("/:orgId/managers", s.authorize(authorization.ObjectOrganization, authorization.ActionManagerAdd), s.AddManager)
		orgs.POST("/:orgId/invites",
			s.authorize(authorization.ObjectInvitation, authorization.ActionInvitationCreate),
			s.rateLimit(ratelimit.EndpointInvite),
			s.CreateInvite,
		)
		orgs.GET("/:orgId/audit-logs", s.requireMember(), s.ListAuditLogs)
	}

	invites := api.Group("/invites")
	{
		invites.GET("", s.ListInvites)
		invites.POST("/:inviteId/respond", s.RespondInvite)
	}

	mediaGroup := api.Group("/media")
	{
		mediaGroup.POST("",
			s.authorize(authorization.ObjectMedia, authorization.ActionMediaUpload),
			s.rateLimit(ratelimit.EndpointUpload),
			s.UploadMedia,
		)
		mediaGroup.GET("", s.ListMedia)
		mediaGroup.POST("/:mediaId/pitches", s.authorize(authorization.ObjectPitch, authorization.ActionPitchCreate), s.CreatePitch)
	}

	pitches := api.Group("/pitches")
	{
		pitches.GET("", s.ListPitches)
		pitches.PATCH("/:pitchId", s.authorize(authorization.ObjectPitch, authorization.ActionPitchUpdate), s.UpdatePitch)
		pitches.DELETE("/:pitchId", s.authorize(authorization.ObjectPitch, authorization.ActionPitchDelete), s.DeletePitch)
	}
}
