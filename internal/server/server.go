package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/middleware"
)

// Routes groups handed to each service's handlers. Authed requires a
// principal; Public does not.
type Routes struct {
	Public *gin.RouterGroup
	Authed *gin.RouterGroup
}

type Server struct {
	config     *config.Config
	router     *gin.Engine
	httpServer *http.Server
	logger     *logrus.Entry
}

// New builds the engine with the shared middleware stack, mounts the probes
// and lets register add the service routes.
func New(cfg *config.Config, health *handlers.HealthHandlers, register func(Routes)) *Server {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders: []string{
				"Origin", "Content-Type", "Accept", "Authorization",
				middleware.HeaderUserID, middleware.HeaderUsername, middleware.HeaderRequestID, "X-API-Key",
			},
			ExposeHeaders: []string{"Content-Length", middleware.HeaderRequestID},
		}),
		middleware.Metrics(cfg.ServiceName),
		middleware.RequestLogger(),
		middleware.NewAuthenticator(cfg.Auth.JWTSecret).Authenticate(),
	)

	health.Register(router)

	register(Routes{
		Public: router.Group(""),
		Authed: router.Group("", middleware.RequireUser()),
	})

	s := &Server{
		config: cfg,
		router: router,
		logger: logging.New("server"),
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.logger.WithFields(logging.Fields{
		"service": s.config.ServiceName,
		"addr":    s.httpServer.Addr,
	}).Info("Server starting")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
