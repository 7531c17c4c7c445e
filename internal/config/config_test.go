package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load("cart-service", 8086)

	assert.Equal(t, "cart-service", cfg.ServiceName)
	assert.Equal(t, 8086, cfg.Server.Port)
	assert.Equal(t, "cart-service", cfg.Kafka.ConsumerGroup)
	assert.Equal(t, RatingTransportHTTP, cfg.Features.RatingTransport)
	assert.True(t, cfg.Features.EnableCartCaching)
	assert.Equal(t, 3*time.Second, cfg.CatalogService.Timeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9001")
	t.Setenv("CATALOG_SERVICE_TIMEOUT", "750ms")
	t.Setenv("REDIS_TTL", "120")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RATING_TRANSPORT", "KAFKA")
	t.Setenv("ENABLE_CART_CACHING", "false")

	cfg := Load("review-service", 8087)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.CatalogService.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, RatingTransportKafka, cfg.Features.RatingTransport)
	assert.False(t, cfg.Features.EnableCartCaching)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("DB_RUN_MIGRATIONS", "maybe")
	t.Setenv("SERVER_READ_TIMEOUT", "soon")

	cfg := Load("catalog-service", 8085)

	assert.Equal(t, 8085, cfg.Server.Port)
	assert.True(t, cfg.Database.RunMigrations)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=disable", d.ConnectionString())
}
