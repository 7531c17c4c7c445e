package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Rating notification transports.
const (
	RatingTransportHTTP  = "http"
	RatingTransportKafka = "kafka"
)

type Config struct {
	ServiceName    string
	Server         ServerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	CatalogService ServiceConfig
	External       ExternalConfig
	Auth           AuthConfig
	Logging        LoggingConfig
	Features       FeatureFlags
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
	RunMigrations bool
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	OrdersTopic   string
	ReviewsTopic  string
	ConsumerGroup string
}

type ServiceConfig struct {
	BaseURL string
	Timeout time.Duration
	APIKey  string
}

// ExternalConfig points at the public APIs used to enrich catalog items.
type ExternalConfig struct {
	CountriesURL  string
	WeatherURL    string
	WeatherAPIKey string
	Timeout       time.Duration
}

type AuthConfig struct {
	// JWTSecret enables HS256 verification of bearer tokens and disables the
	// gateway identity headers. When empty both are trusted as validated by
	// the gateway.
	JWTSecret string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type FeatureFlags struct {
	EnableCartCaching bool
	EnableEvents      bool
	RatingTransport   string
}

// Load reads configuration for the named service from the environment.
// A .env file in the working directory is honoured when present.
func Load(serviceName string, defaultPort int) *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName: serviceName,
		Server: ServerConfig{
			Port:            getEnvInt("SERVER_PORT", defaultPort),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:          getEnvString("DB_HOST", "localhost"),
			Port:          getEnvInt("DB_PORT", 5432),
			User:          getEnvString("DB_USER", "acme"),
			Password:      getEnvString("DB_PASSWORD", "acme"),
			Name:          getEnvString("DB_NAME", "acme_marketplace"),
			SSLMode:       getEnvString("DB_SSLMODE", "disable"),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:   getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			RunMigrations: getEnvBool("DB_RUN_MIGRATIONS", true),
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("REDIS_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			OrdersTopic:   getEnvString("KAFKA_ORDERS_TOPIC", "marketplace.orders"),
			ReviewsTopic:  getEnvString("KAFKA_REVIEWS_TOPIC", "marketplace.reviews"),
			ConsumerGroup: getEnvString("KAFKA_CONSUMER_GROUP", serviceName),
		},
		CatalogService: ServiceConfig{
			BaseURL: getEnvString("CATALOG_SERVICE_URL", "http://localhost:8085"),
			Timeout: getEnvDuration("CATALOG_SERVICE_TIMEOUT", 3*time.Second),
			APIKey:  getEnvString("CATALOG_SERVICE_API_KEY", ""),
		},
		External: ExternalConfig{
			CountriesURL:  getEnvString("RESTCOUNTRIES_URL", "https://restcountries.com/v3.1"),
			WeatherURL:    getEnvString("OPENWEATHER_URL", "https://api.openweathermap.org/data/2.5"),
			WeatherAPIKey: getEnvString("OPENWEATHER_API_KEY", ""),
			Timeout:       getEnvDuration("EXTERNAL_API_TIMEOUT", 2*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnvString("JWT_SECRET", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Features: FeatureFlags{
			EnableCartCaching: getEnvBool("ENABLE_CART_CACHING", true),
			EnableEvents:      getEnvBool("ENABLE_EVENTS", false),
			RatingTransport:   strings.ToLower(getEnvString("RATING_TRANSPORT", RatingTransportHTTP)),
		},
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("5s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
