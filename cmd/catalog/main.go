package main

import (
	"context"
	"os"

	"github.com/tm-acme-shop/acme-shop-marketplace/internal/clients"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/events"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/repository"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/server"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/service"
)

func main() {
	cfg := config.Load("catalog-service", 8085)
	logging.Setup(cfg.ServiceName, cfg.Logging.Level, cfg.Logging.Format)
	logger := logging.New("main")

	db, err := repository.OpenPostgres(cfg.Database)
	if err != nil {
		logger.WithField("error", err.Error()).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := repository.RunMigrations(db, repository.MigrationsCatalog); err != nil {
			logger.WithField("error", err.Error()).Fatal("Failed to run migrations")
		}
	}

	catalogService := service.NewCatalogService(
		repository.NewPostgresCatalogRepository(db),
		clients.NewHTTPExternalClient(cfg.External),
		cfg.External.Timeout,
	)

	h := handlers.NewCatalogHandlers(catalogService)
	srv := server.New(cfg, handlers.NewHealthHandlers(cfg.ServiceName, db), func(r server.Routes) {
		h.Register(r.Public, r.Authed, middleware.APIKey(clients.HeaderAPIKey, cfg.CatalogService.APIKey))
	})

	var workers []server.Worker
	if cfg.Features.RatingTransport == config.RatingTransportKafka {
		consumer := events.NewRatingConsumer(cfg.Kafka, catalogService)
		defer consumer.Stop()
		workers = append(workers, consumer.Start)
	}

	logger.WithFields(logging.Fields{
		"port":             cfg.Server.Port,
		"rating_transport": cfg.Features.RatingTransport,
	}).Info("Starting catalog-service")

	if err := srv.Run(context.Background(), workers...); err != nil {
		logger.WithField("error", err.Error()).Error("Server stopped with error")
		db.Close()
		os.Exit(1)
	}

	logger.Info("Server exited")
}
