package main

import (
	"context"
	"os"

	"github.com/tm-acme-shop/acme-shop-marketplace/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/repository"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/server"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/service"
)

func main() {
	cfg := config.Load("user-service", 8082)
	logging.Setup(cfg.ServiceName, cfg.Logging.Level, cfg.Logging.Format)
	logger := logging.New("main")

	db, err := repository.OpenPostgres(cfg.Database)
	if err != nil {
		logger.WithField("error", err.Error()).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := repository.RunMigrations(db, repository.MigrationsUsers); err != nil {
			logger.WithField("error", err.Error()).Fatal("Failed to run migrations")
		}
	}

	gormDB, err := repository.OpenGorm(db)
	if err != nil {
		logger.WithField("error", err.Error()).Fatal("Failed to initialise gorm")
	}

	profileService := service.NewProfileService(repository.NewGormProfileRepository(gormDB))

	h := handlers.NewProfileHandlers(profileService)
	srv := server.New(cfg, handlers.NewHealthHandlers(cfg.ServiceName, db), func(r server.Routes) {
		h.Register(r.Public, r.Authed)
	})

	logger.WithField("port", cfg.Server.Port).Info("Starting user-service")

	if err := srv.Run(context.Background()); err != nil {
		logger.WithField("error", err.Error()).Error("Server stopped with error")
		db.Close()
		os.Exit(1)
	}

	logger.Info("Server exited")
}
