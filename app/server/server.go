package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ugc-forge/app/auth"
	"ugc-forge/app/config"
	"ugc-forge/app/database"
	"ugc-forge/app/handler"
	"ugc-forge/app/logger"
	"ugc-forge/app/middleware"
	"ugc-forge/app/notify"
	"ugc-forge/app/ratelimit"
	"ugc-forge/app/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Server is the HTTP server and the services behind it.
type Server struct {
	Config    *config.Config
	Logger    *logger.Logger
	db        *gorm.DB
	gin       *gin.Engine
	http      *http.Server
	keys      *auth.KeySet
	origins   *middleware.OriginList
	limiter   *ratelimit.Limiter
	publisher notify.Publisher
	sweeper   *service.StaleSweeper

	files     *service.FileStatusService
	pipelines *service.PipelineStatusService
	credits   *service.CreditService
}

// New wires the services on top of db and sets up the routes.
func New(cfg *config.Config, log *logger.Logger, db *gorm.DB) (*Server, error) {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLog(log))

	s := &Server{
		Config:  cfg,
		Logger:  log,
		db:      db,
		gin:     router,
		keys:    auth.NewKeySet(cfg.Webhook.APIKeys),
		origins: middleware.NewOriginList(cfg.Webhook.AllowedOrigins),
		http: &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	limiter, err := newLimiter(cfg, log)
	if err != nil {
		return nil, err
	}
	s.limiter = limiter
	s.publisher = newPublisher(cfg, log)

	s.credits = service.NewCreditService(db, log)
	s.pipelines = service.NewPipelineStatusService(db, log, s.credits, s.publisher)
	s.files = service.NewFileStatusService(db, log, cfg.Reconcile, s.pipelines, s.credits, s.publisher)
	if cfg.Sweeper.Enabled {
		s.sweeper = service.NewStaleSweeper(db, log, s.files, cfg.Sweeper)
	}

	s.setupRoutes()
	return s, nil
}

func newLimiter(cfg *config.Config, log *logger.Logger) (*ratelimit.Limiter, error) {
	if !cfg.RateLimit.Enabled {
		log.Warnf("rate limiting is disabled")
		return nil, nil
	}

	var store ratelimit.Store
	switch cfg.RateLimit.Store {
	case "redis":
		rs := ratelimit.NewRedisStore(cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("connect rate limit redis %s: %w", cfg.Redis.Addr, err)
		}
		store = rs
	default:
		store = ratelimit.NewMemoryStore(cfg.RateLimit.Window)
	}

	log.Infof("rate limit: %d requests per %s (%s store)", cfg.RateLimit.Limit, cfg.RateLimit.Window, cfg.RateLimit.Store)
	return ratelimit.New(store, cfg.RateLimit.Limit, cfg.RateLimit.Window), nil
}

// newPublisher fans out to every configured destination. A broker that cannot be
// reached is logged and skipped.
func newPublisher(cfg *config.Config, log *logger.Logger) notify.Publisher {
	var pubs notify.Multi
	if cfg.Notify.WebhookURL != "" {
		pubs = append(pubs, notify.NewHTTPPublisher(cfg.Notify.WebhookURL, cfg.Notify.WebhookAPIKey, cfg.Notify.Timeout))
	}
	if cfg.Notify.AMQP.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		p, err := notify.NewAMQPPublisher(ctx, cfg.Notify.AMQP, log)
		if err != nil {
			log.Errorf("status events will not be sent to amqp: %v", err)
		} else {
			pubs = append(pubs, p)
		}
	}
	if len(pubs) == 0 {
		return notify.Nop{}
	}
	return pubs
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// ApplyConfig picks up settings that may change while the server runs.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.keys.Replace(cfg.Webhook.APIKeys)
	s.origins.Replace(cfg.Webhook.AllowedOrigins)
	s.Logger.Infof("config reloaded: %d api keys, %d allowed origins", s.keys.Len(), len(cfg.Webhook.AllowedOrigins))
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	if s.sweeper != nil {
		if err := s.sweeper.Start(); err != nil {
			return err
		}
	}

	s.Logger.Infof("starting server on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)

	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.limiter != nil {
		if cerr := s.limiter.Close(); cerr != nil {
			s.Logger.Errorf("close rate limit store: %v", cerr)
		}
	}
	if cerr := s.publisher.Close(); cerr != nil {
		s.Logger.Errorf("close event publisher: %v", cerr)
	}
	if cerr := database.Close(); cerr != nil {
		s.Logger.Errorf("close database: %v", cerr)
	}
	return err
}

func (s *Server) setupRoutes() {
	webhookHandler := handler.NewStatusWebhookHandler(s.Logger, s.files, s.pipelines)
	queryHandler := handler.NewQueryHandler(s.db, s.Logger, s.credits)

	s.gin.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.gin.Group("/api")

	webhooks := api.Group("/webhooks")
	webhooks.Use(middleware.CORS(s.origins))
	{
		webhooks.POST("/update-file-status",
			middleware.RateLimit(s.limiter, s.Logger),
			middleware.APIKeyAuth(s.keys, s.Logger),
			webhookHandler.UpdateFileStatus)
		webhooks.POST("/update-pipeline-status",
			middleware.APIKeyAuth(s.keys, s.Logger),
			webhookHandler.UpdatePipelineStatus)

		// preflight never reaches a handler, CORS answers it
		webhooks.OPTIONS("/update-file-status")
		webhooks.OPTIONS("/update-pipeline-status")
	}

	protected := api.Group("/")
	protected.Use(middleware.JWTAuth(s.Config.JWT))
	{
		protected.GET("/files/:id", queryHandler.GetFile)
		protected.GET("/pipelines/:id", queryHandler.GetPipeline)
		protected.GET("/credits/charges", queryHandler.ListCharges)
	}
}
