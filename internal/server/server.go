package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/talentbay/internal/auth"
	authdomain "github.com/smallbiznis/talentbay/internal/auth/domain"
	"github.com/smallbiznis/talentbay/internal/auth/session"
	"github.com/smallbiznis/talentbay/internal/authorization"
	"github.com/smallbiznis/talentbay/internal/authsession"
	"github.com/smallbiznis/talentbay/internal/config"
	"github.com/smallbiznis/talentbay/internal/observability"
	obsmiddleware "github.com/smallbiznis/talentbay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/talentbay/internal/observability/metrics"
	obstracing "github.com/smallbiznis/talentbay/internal/observability/tracing"
	"github.com/smallbiznis/talentbay/internal/profile"
	profiledomain "github.com/smallbiznis/talentbay/internal/profile/domain"
	"github.com/smallbiznis/talentbay/internal/ratelimit"
	"github.com/smallbiznis/talentbay/internal/routeguard"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultPublicDir = "./public"

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	auth.Module,
	profile.Module,
	authsession.Module,
	routeguard.Module,
	authorization.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
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

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
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
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	authsvc      authdomain.Service
	sessions     *session.Manager
	registry     *authsession.Registry
	policy       *routeguard.Holder
	profileSvc   profiledomain.Service
	authzSvc     authorization.Service
	loginLimiter *ratelimit.LoginLimiter
	obsMetrics   *obsmetrics.Metrics
	publicDir    string
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Authsvc      authdomain.Service
	Sessions     *session.Manager
	Registry     *authsession.Registry
	Policy       *routeguard.Holder
	ProfileSvc   profiledomain.Service
	AuthzSvc     authorization.Service
	LoginLimiter *ratelimit.LoginLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		authsvc:      p.Authsvc,
		sessions:     p.Sessions,
		registry:     p.Registry,
		policy:       p.Policy,
		profileSvc:   p.ProfileSvc,
		authzSvc:     p.AuthzSvc,
		loginLimiter: p.LoginLimiter,
		obsMetrics:   p.ObsMetrics,
		publicDir:    defaultPublicDir,
	}

	// Routes registered above this point (health, metrics) stay outside
	// device tracking and the guard.
	svc.engine.Use(svc.DeviceSession(), svc.RouteGuard())

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.POST("/session/extend", s.ExtendSession)
	auth.GET("/me", s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Session --------
	api.GET("/session", s.GetSession)
	api.POST("/session/refresh", s.RefreshSession)
	api.GET("/session/stream", s.StreamSession)

	// -------- Profiles --------
	api.GET("/profiles/:handle", s.authorizeAction(authorization.ObjectProfile, authorization.ActionProfileView), s.GetProfile)

	admin := api.Group("/admin")
	admin.GET("/profiles", s.authorizeAction(authorization.ObjectProfile, authorization.ActionProfileList), s.ListProfiles)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			AbortWithError(c, ErrNotFound)
			return
		}
		if isAPIRequest(c) {
			AbortWithError(c, ErrNotFound)
			return
		}

		// static assets (vite)
		if fileExists(s.publicDir, c.Request.URL.Path) {
			c.File(filepath.Join(s.publicDir, filepath.Clean(c.Request.URL.Path)))
			return
		}

		// SPA fallback
		c.File(filepath.Join(s.publicDir, "index.html"))
	})
}

func fileExists(publicDir, reqPath string) bool {
	clean := filepath.Clean(reqPath)

	// prevent path traversal
	if clean == "." || clean == "/" || clean == ".." {
		return false
	}

	fullPath := filepath.Join(publicDir, clean)

	info, err := os.Stat(fullPath)
	if err != nil {
		return false
	}

	return !info.IsDir()
}
