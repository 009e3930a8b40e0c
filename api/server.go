package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/OldStager01/cloudpulse/api/handlers"
	"github.com/OldStager01/cloudpulse/api/middleware"
	"github.com/OldStager01/cloudpulse/api/websocket"
	"github.com/OldStager01/cloudpulse/docs"
	"github.com/OldStager01/cloudpulse/internal/auth"
	"github.com/OldStager01/cloudpulse/internal/metrics"
	"github.com/OldStager01/cloudpulse/internal/orchestrator"
	"github.com/OldStager01/cloudpulse/pkg/config"
	"github.com/OldStager01/cloudpulse/pkg/database"
	"github.com/OldStager01/cloudpulse/pkg/database/queries"
)

const (
	maxRequestBytes = 1 << 20
	liveUpdateLimit = 30
)

type Server struct {
	router       *gin.Engine
	httpServer   *http.Server
	config       *config.Config
	db           *database.DB
	authService  *auth.Service
	metrics      *metrics.Metrics
	wsHub        *websocket.Hub
	wsBridge     *websocket.EventBridge
	orchestrator *orchestrator.Orchestrator
}

func NewServer(cfg *config.Config, db *database.DB, orch *orchestrator.Orchestrator) *Server {
	if cfg.App.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.DebugMode)
	}

	m := metrics.Get()
	router := gin.New()
	authService := auth.NewService(cfg.API.JWTSecret, cfg.API.JWTDuration)
	wsHub := websocket.NewHub(&cfg.WebSocket, m)

	s := &Server{
		router:       router,
		config:       cfg,
		db:           db,
		authService:  authService,
		metrics:      m,
		wsHub:        wsHub,
		orchestrator: orch,
	}

	s.setupMiddleware()
	s.setupRoutes()

	go wsHub.Run()

	// Forward orchestrator events to WebSocket clients
	if orch != nil {
		s.wsBridge = websocket.NewEventBridge(wsHub, orch.SubscribeAllEvents())
		s.wsBridge.Start()
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.SecurityHeaders(middleware.SecurityConfig{
		HSTS:           s.config.API.CookieSecure,
		AllowSwaggerUI: s.config.API.Swagger,
	}))
	s.router.Use(middleware.CORS(middleware.CORSFromConfig(s.config.API.CORS)))
	s.router.Use(middleware.TraceID())
	s.router.Use(middleware.RequestLogger())
	if s.config.Metrics.Enabled {
		s.router.Use(middleware.Metrics(s.metrics))
	}
	s.router.Use(middleware.RequestSizeLimit(maxRequestBytes))

	rateLimiter := middleware.NewRateLimiterWithBurst(s.config.API.RateLimit, time.Minute, s.config.API.RateBurst)
	s.router.Use(middleware.RateLimit(rateLimiter))
}

func (s *Server) setupRoutes() {
	apiCfg := s.config.API
	userRepo := queries.NewUserRepository(s.db)

	healthHandler := handlers.NewHealthHandler(s.db)
	if s.orchestrator != nil {
		healthHandler.AddCheck("cost_tables", s.orchestrator.Store())
	}
	authHandler := handlers.NewAuthHandler(userRepo, s.authService, apiCfg)
	profileHandler := handlers.NewProfileHandler(userRepo, apiCfg)

	// Public routes
	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/health/ready", healthHandler.Ready)
	s.router.GET("/health/live", healthHandler.Live)

	if s.config.Metrics.Enabled {
		s.router.GET(s.metricsPath(), gin.WrapH(s.metrics.Handler()))
	}

	if apiCfg.Swagger {
		docs.SwaggerInfo.Title = s.config.App.Name + " API"
		s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authGroup := s.router.Group("/auth")
	authGroup.Use(middleware.AuthRateLimiter())
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	s.router.GET("/ws", websocket.ServeWebSocket(s.wsHub))

	endpointLimits := middleware.NewEndpointRateLimiter()
	endpointLimits.AddEndpoint("/live/update", liveUpdateLimit, time.Minute)

	protected := s.router.Group("/")
	protected.Use(middleware.JWTAuth(s.authService, apiCfg.CookieName))
	protected.Use(endpointLimits.Middleware())
	{
		protected.POST("/auth/logout", authHandler.Logout)

		protected.GET("/profile", profileHandler.Get)
		protected.PUT("/profile/emails", profileHandler.UpdateEmails)

		if s.orchestrator != nil {
			dashboardHandler := handlers.NewDashboardHandler(s.orchestrator.Dashboard(), apiCfg)

			protected.GET("/dashboard", dashboardHandler.Overview)
			protected.GET("/anomalies", dashboardHandler.Anomalies)
			protected.GET("/forecast", dashboardHandler.Forecast)
			protected.GET("/recommendations", dashboardHandler.Recommendations)
			protected.POST("/live/update", dashboardHandler.LiveUpdate)
			protected.POST("/anomaly/force", dashboardHandler.ForceAnomaly)
			protected.POST("/anomaly/solve", dashboardHandler.SolveAnomaly)
		}
	}
}

func (s *Server) metricsPath() string {
	if s.config.Metrics.Path != "" {
		return s.config.Metrics.Path
	}
	return "/metrics"
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.API.Port)

	idle := s.config.API.IdleTimeout
	if idle <= 0 {
		idle = 60 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.API.ReadTimeout,
		WriteTimeout: s.config.API.WriteTimeout,
		IdleTimeout:  idle,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop the event bridge first
	if s.wsBridge != nil {
		s.wsBridge.Stop()
	}
	s.wsHub.Stop()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) WebSocketHub() *websocket.Hub {
	return s.wsHub
}
