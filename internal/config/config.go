package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config captures runtime configuration for the lantern API service.
type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
	Service   ServiceConfig
	Auth      AuthConfig
	Payment   PaymentConfig
	Checkout  CheckoutConfig
}

type HTTPConfig struct {
	Port          int
	ShutdownGrace int
}

type DatabaseConfig struct {
	URL            string
	AutoMigrate    bool
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
}

type TelemetryConfig struct {
	LogLevel      string
	OTelEndpoint  string
	EnableTracing bool
	EnableMetrics bool
	SampleRate    float64
}

type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

// AuthConfig holds what is needed to read identity tokens minted by the external identity provider.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type PaymentConfig struct {
	MerchantID  string
	HashKey     string
	ServiceURL  string
	ReturnURL   string
	CallbackURL string
}

// IdempotencyBackend selects where checkout claims live: "postgres" or "redis".
type IdempotencyBackend string

const (
	IdempotencyPostgres IdempotencyBackend = "postgres"
	IdempotencyRedis    IdempotencyBackend = "redis"
)

type CheckoutConfig struct {
	IdempotencyBackend    IdempotencyBackend
	IdempotencyWindow     time.Duration
	ExpiringSoonWithin    time.Duration
	PlatformFeeRate       decimal.Decimal
	DefaultDurationMonths int
	CertificateBaseURL    string
}

const (
	defaultHTTPPort              = 8080
	defaultShutdownGrace         = 15
	defaultMigrationsPath        = "migrations"
	defaultAutoMigrate           = true
	defaultServiceName           = "lantern-api"
	defaultServiceVersion        = "0.1.0"
	defaultEnvironment           = "development"
	defaultLogLevel              = "info"
	defaultOTelSampleRate        = 1.0
	defaultRedisAddr             = "localhost:6379"
	defaultKafkaTopicPrefix      = "lantern"
	defaultPaymentServiceURL     = "https://payment-stage.example.com/Cashier/AioCheckOut/V5"
	defaultIdempotencyWindow     = 15 * time.Minute
	defaultExpiringSoonWithin    = 30 * 24 * time.Hour
	defaultPlatformFeeRate       = "0.05"
	defaultDurationMonths        = 12
	defaultCertificateBaseURL    = "https://lantern.example.com/certificates"
	defaultAuthIssuer            = ""
	defaultDotEnvPath            = ".env"
	defaultDatabaseName          = "lantern"
	defaultRedisDatabase         = 0
	defaultExpiringSoonDaysLimit = 365
)

// Load reads configuration from environment variables, applying defaults when needed.
// A .env file in the working directory is loaded first when present; real environment
// variables always win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(getEnvOrDefault("DOTENV_PATH", defaultDotEnvPath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	httpCfg, err := loadHTTPConfig()
	if err != nil {
		return nil, fmt.Errorf("loading HTTP config: %w", err)
	}

	dbCfg := loadDatabaseConfig()

	redisCfg, err := loadRedisConfig()
	if err != nil {
		return nil, fmt.Errorf("loading redis config: %w", err)
	}

	kafkaCfg := loadKafkaConfig()
	telCfg, err := loadTelemetryConfig()
	if err != nil {
		return nil, fmt.Errorf("loading telemetry config: %w", err)
	}

	serviceCfg := loadServiceConfig()

	authCfg, err := loadAuthConfig()
	if err != nil {
		return nil, fmt.Errorf("loading auth config: %w", err)
	}

	paymentCfg, err := loadPaymentConfig()
	if err != nil {
		return nil, fmt.Errorf("loading payment config: %w", err)
	}

	checkoutCfg, err := loadCheckoutConfig()
	if err != nil {
		return nil, fmt.Errorf("loading checkout config: %w", err)
	}

	return &Config{
		HTTP:      httpCfg,
		Database:  dbCfg,
		Redis:     redisCfg,
		Kafka:     kafkaCfg,
		Telemetry: telCfg,
		Service:   serviceCfg,
		Auth:      authCfg,
		Payment:   paymentCfg,
		Checkout:  checkoutCfg,
	}, nil
}

func loadHTTPConfig() (HTTPConfig, error) {
	port, err := getIntEnv("API_HTTP_PORT", defaultHTTPPort)
	if err != nil {
		return HTTPConfig{}, err
	}

	shutdownGrace, err := getIntEnv("API_SHUTDOWN_GRACE_SECONDS", defaultShutdownGrace)
	if err != nil {
		return HTTPConfig{}, err
	}

	return HTTPConfig{
		Port:          port,
		ShutdownGrace: shutdownGrace,
	}, nil
}

func loadDatabaseConfig() DatabaseConfig {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = buildDatabaseURL()
	}

	return DatabaseConfig{
		URL:            databaseURL,
		AutoMigrate:    getBoolEnv("AUTO_MIGRATE", defaultAutoMigrate),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", defaultMigrationsPath),
	}
}

func loadRedisConfig() (RedisConfig, error) {
	db, err := getIntEnv("REDIS_DB", defaultRedisDatabase)
	if err != nil {
		return RedisConfig{}, err
	}

	return RedisConfig{
		Addr:     getEnvOrDefault("REDIS_ADDR", defaultRedisAddr),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, nil
}

func loadKafkaConfig() KafkaConfig {
	var brokers []string
	if value, ok := os.LookupEnv("KAFKA_BROKERS"); ok && value != "" {
		for _, broker := range strings.Split(value, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				brokers = append(brokers, broker)
			}
		}
	}

	return KafkaConfig{
		Brokers:     brokers,
		TopicPrefix: getEnvOrDefault("KAFKA_TOPIC_PREFIX", defaultKafkaTopicPrefix),
	}
}

func loadTelemetryConfig() (TelemetryConfig, error) {
	sampleRate := defaultOTelSampleRate
	if value, ok := os.LookupEnv("OTEL_SAMPLE_RATE"); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return TelemetryConfig{}, fmt.Errorf("invalid OTEL_SAMPLE_RATE: %w", err)
		}
		sampleRate = parsed
	}

	return TelemetryConfig{
		LogLevel:      getEnvOrDefault("LOG_LEVEL", defaultLogLevel),
		OTelEndpoint:  getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		EnableTracing: getBoolEnv("OTEL_ENABLE_TRACING", true),
		EnableMetrics: getBoolEnv("OTEL_ENABLE_METRICS", true),
		SampleRate:    sampleRate,
	}, nil
}

func loadServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:        getEnvOrDefault("API_SERVICE_NAME", defaultServiceName),
		Version:     getEnvOrDefault("SERVICE_VERSION", defaultServiceVersion),
		Environment: getEnvOrDefault("ENVIRONMENT", defaultEnvironment),
	}
}

func loadAuthConfig() (AuthConfig, error) {
	secret := os.Getenv("AUTH_JWT_SECRET")
	if secret == "" {
		return AuthConfig{}, errors.New("AUTH_JWT_SECRET is required")
	}

	return AuthConfig{
		JWTSecret: secret,
		Issuer:    getEnvOrDefault("AUTH_JWT_ISSUER", defaultAuthIssuer),
	}, nil
}

func loadPaymentConfig() (PaymentConfig, error) {
	cfg := PaymentConfig{
		MerchantID:  os.Getenv("PAYMENT_MERCHANT_ID"),
		HashKey:     os.Getenv("PAYMENT_HASH_KEY"),
		ServiceURL:  getEnvOrDefault("PAYMENT_SERVICE_URL", defaultPaymentServiceURL),
		ReturnURL:   os.Getenv("PAYMENT_RETURN_URL"),
		CallbackURL: os.Getenv("PAYMENT_CALLBACK_URL"),
	}

	if cfg.MerchantID == "" {
		return PaymentConfig{}, errors.New("PAYMENT_MERCHANT_ID is required")
	}
	if cfg.HashKey == "" {
		return PaymentConfig{}, errors.New("PAYMENT_HASH_KEY is required")
	}
	if cfg.CallbackURL == "" {
		return PaymentConfig{}, errors.New("PAYMENT_CALLBACK_URL is required")
	}

	return cfg, nil
}

func loadCheckoutConfig() (CheckoutConfig, error) {
	window, err := getDurationEnv("CHECKOUT_IDEMPOTENCY_WINDOW", defaultIdempotencyWindow)
	if err != nil {
		return CheckoutConfig{}, err
	}

	expiringSoonDays, err := getIntEnv("VALIDITY_EXPIRING_SOON_DAYS", int(defaultExpiringSoonWithin/(24*time.Hour)))
	if err != nil {
		return CheckoutConfig{}, err
	}
	if expiringSoonDays < 0 || expiringSoonDays > defaultExpiringSoonDaysLimit {
		return CheckoutConfig{}, fmt.Errorf("invalid VALIDITY_EXPIRING_SOON_DAYS: must be between 0 and %d", defaultExpiringSoonDaysLimit)
	}

	feeRate, err := decimal.NewFromString(getEnvOrDefault("PLATFORM_FEE_RATE", defaultPlatformFeeRate))
	if err != nil {
		return CheckoutConfig{}, fmt.Errorf("invalid PLATFORM_FEE_RATE: %w", err)
	}
	if feeRate.IsNegative() || feeRate.GreaterThan(decimal.NewFromInt(1)) {
		return CheckoutConfig{}, errors.New("invalid PLATFORM_FEE_RATE: must be between 0 and 1")
	}

	backend := IdempotencyBackend(strings.ToLower(getEnvOrDefault("CHECKOUT_IDEMPOTENCY_BACKEND", string(IdempotencyPostgres))))
	if backend != IdempotencyPostgres && backend != IdempotencyRedis {
		return CheckoutConfig{}, fmt.Errorf("invalid CHECKOUT_IDEMPOTENCY_BACKEND %q: must be postgres or redis", backend)
	}

	durationMonths, err := getIntEnv("DEFAULT_DURATION_MONTHS", defaultDurationMonths)
	if err != nil {
		return CheckoutConfig{}, err
	}

	return CheckoutConfig{
		IdempotencyBackend:    backend,
		IdempotencyWindow:     window,
		ExpiringSoonWithin:    time.Duration(expiringSoonDays) * 24 * time.Hour,
		PlatformFeeRate:       feeRate,
		DefaultDurationMonths: durationMonths,
		CertificateBaseURL:    strings.TrimSuffix(getEnvOrDefault("CERTIFICATE_BASE_URL", defaultCertificateBaseURL), "/"),
	}, nil
}

func buildDatabaseURL() string {
	host := getEnvOrDefault("DB_HOST", "localhost")
	port := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "postgres")
	password := getEnvOrDefault("DB_PASSWORD", "postgres")
	dbName := getEnvOrDefault("DB_NAME", defaultDatabaseName)
	sslMode := getEnvOrDefault("DB_SSLMODE", "disable")

	maxConns := getEnvOrDefault("DB_MAX_CONNS", "25")
	minConns := getEnvOrDefault("DB_MIN_CONNS", "5")
	maxLifetime := getEnvOrDefault("DB_MAX_CONN_LIFETIME", "5m")

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%s&pool_min_conns=%s&pool_max_conn_lifetime=%s",
		user, password, host, port, dbName, sslMode, maxConns, minConns, maxLifetime,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return value == "true"
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
