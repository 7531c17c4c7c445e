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
	cfg := config.Load("cart-service", 8083)
	logging.Setup(cfg.ServiceName, cfg.Logging.Level, cfg.Logging.Format)
	logger := logging.New("main")

	db, err := repository.OpenPostgres(cfg.Database)
	if err != nil {
		logger.WithField("error", err.Error()).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := repository.RunMigrations(db, repository.MigrationsCart); err != nil {
			logger.WithField("error", err.Error()).Fatal("Failed to run migrations")
		}
	}

	var cartCache repository.CartCache
	if cfg.Features.EnableCartCaching {
		redisClient := repository.NewRedisClient(cfg.Redis)
		defer redisClient.Close()
		cartCache = repository.NewRedisCartCache(redisClient, cfg.Redis.TTL)
	}

	var orderEvents service.OrderEventPublisher
	if cfg.Features.EnableEvents {
		publisher := events.NewKafkaPublisher(cfg.Kafka)
		defer publisher.Close()
		orderEvents = publisher
	}

	cartService := service.NewCartService(
		repository.NewPostgresCartRepository(db),
		repository.NewPostgresOrderRepository(db),
		cartCache,
		clients.NewHTTPCatalogClient(cfg.CatalogService),
		orderEvents,
		cfg,
	)

	h := handlers.NewCartHandlers(cartService)
	srv := server.New(cfg, handlers.NewHealthHandlers(cfg.ServiceName, db), func(r server.Routes) {
		h.Register(r.Authed)
	})

	logger.WithFields(logging.Fields{
		"port":                cfg.Server.Port,
		"enable_cart_caching": cfg.Features.EnableCartCaching,
		"enable_events":       cfg.Features.EnableEvents,
	}).Info("Starting cart-service")

	if err := srv.Run(context.Background()); err != nil {
		logger.WithField("error", err.Error()).Error("Server stopped with error")
		db.Close()
		os.Exit(1)
	}

	logger.Info("Server exited")
}
