package server

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/config"
	"github.com/emilythestrangee/stackit/backend/internal/forum"
	"github.com/emilythestrangee/stackit/backend/internal/handlers"
	"github.com/emilythestrangee/stackit/backend/internal/live"
	"github.com/emilythestrangee/stackit/backend/internal/metrics"
	"github.com/emilythestrangee/stackit/backend/internal/middleware"
)

type Options struct {
	Config   config.Config
	Service  *forum.Service
	Gate     auth.Gate
	Hub      *live.Hub
	Limiter  middleware.Limiter
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Log      *logrus.Logger
}

type Server struct {
	opts    Options
	handler *handlers.Handler
}

func New(opts Options) *Server {
	return &Server{
		opts:    opts,
		handler: handlers.NewHandler(opts.Service, opts.Hub, opts.Config.CORSOrigins, opts.Log),
	}
}

// NewServer creates and configures the HTTP server
func (s *Server) NewServer() *http.Server {
	return &http.Server{
		Addr:         "0.0.0.0:" + s.opts.Config.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	// gin trusts every proxy by default, which would let X-Forwarded-For
	// pick the rate limit key.
	if err := r.SetTrustedProxies(s.opts.Config.TrustedProxies); err != nil {
		s.opts.Log.WithError(err).Warn("invalid TRUSTED_PROXIES, ignoring forwarded headers")
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(s.opts.Log, s.opts.Metrics))
	r.Use(middleware.SecureHeaders())
	r.Use(cors.New(s.corsConfig()))

	r.GET("/", s.handler.Meta.Root)
	if s.opts.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	if s.opts.Limiter != nil {
		api.Use(middleware.RateLimit(s.opts.Limiter, middleware.ExemptReadsAndVotes, s.opts.Log))
	}
	{
		api.GET("/health", s.handler.Meta.Health)

		// Auth routes (public)
		api.POST("/auth/register", s.handler.Auth.Register)
		api.POST("/auth/login", s.handler.Auth.Login)

		// Question routes (public reads)
		api.GET("/questions", s.handler.Question.GetQuestions)
		api.GET("/questions/:id", s.handler.Question.GetQuestion)
		api.GET("/questions/:id/live", s.handler.Question.Live)
		api.GET("/search", s.handler.Question.Search)

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(s.opts.Gate))
		{
			protected.GET("/users/profile", s.handler.User.GetProfile)

			protected.POST("/questions", s.handler.Question.CreateQuestion)
			protected.POST("/questions/:id/vote", s.handler.Question.VoteQuestion)
			protected.POST("/questions/:id/answers", s.handler.Answer.CreateAnswer)

			protected.POST("/answers/:id/vote", s.handler.Answer.VoteAnswer)
		}
	}

	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	origins := s.opts.Config.CORSOrigins
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
