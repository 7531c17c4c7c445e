package main

import (
	"context"
	"os"

	"github.com/tm-acme-shop/acme-shop-marketplace/internal/clients"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/events"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/repository"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/server"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/service"
)

func main() {
	cfg := config.Load("review-service", 8084)
	logging.Setup(cfg.ServiceName, cfg.Logging.Level, cfg.Logging.Format)
	logger := logging.New("main")

	db, err := repository.OpenPostgres(cfg.Database)
	if err != nil {
		logger.WithField("error", err.Error()).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := repository.RunMigrations(db, repository.MigrationsReview); err != nil {
			logger.WithField("error", err.Error()).Fatal("Failed to run migrations")
		}
	}

	var publisher *events.KafkaPublisher
	if cfg.Features.EnableEvents || cfg.Features.RatingTransport == config.RatingTransportKafka {
		publisher = events.NewKafkaPublisher(cfg.Kafka)
		defer publisher.Close()
	}

	// The catalog must consume the same transport.
	var notifier clients.RatingNotifier = clients.NewHTTPCatalogClient(cfg.CatalogService)
	if cfg.Features.RatingTransport == config.RatingTransportKafka {
		notifier = publisher
	}

	var reviewEvents service.ReviewEventPublisher
	if publisher != nil {
		reviewEvents = publisher
	}

	reviewService := service.NewReviewService(
		repository.NewPostgresReviewRepository(db),
		notifier,
		reviewEvents,
		cfg,
	)

	h := handlers.NewReviewHandlers(reviewService)
	srv := server.New(cfg, handlers.NewHealthHandlers(cfg.ServiceName, db), func(r server.Routes) {
		h.Register(r.Public, r.Authed)
	})

	logger.WithFields(logging.Fields{
		"port":             cfg.Server.Port,
		"rating_transport": cfg.Features.RatingTransport,
		"enable_events":    cfg.Features.EnableEvents,
	}).Info("Starting review-service")

	err = srv.Run(context.Background())

	// Let in-flight rating notifications finish before the publisher closes.
	reviewService.Wait()

	if err != nil {
		logger.WithField("error", err.Error()).Error("Server stopped with error")
		os.Exit(1)
	}

	logger.Info("Server exited")
}
