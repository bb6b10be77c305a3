package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"

	CatalogTransportHTTP = "http"
	CatalogTransportGRPC = "grpc"

	EventsDriverNone     = "none"
	EventsDriverKafka    = "kafka"
	EventsDriverRabbitMQ = "rabbitmq"
)

// Имена переменных окружения.
const (
	envAppVersion          = "APP_VERSION"
	envCatalogHTTPAddr     = "CATALOG_HTTP_ADDR"
	envCatalogGRPCAddr     = "CATALOG_GRPC_ADDR"
	envOrdersHTTPAddr      = "ORDERS_HTTP_ADDR"
	envGatewayHTTPAddr     = "GATEWAY_HTTP_ADDR"
	envMetricsAddr         = "METRICS_ADDR"
	envCatalogURL          = "CATALOG_URL"
	envCatalogGRPCTarget   = "CATALOG_GRPC_TARGET"
	envCatalogTransport    = "CATALOG_TRANSPORT"
	envOrdersURL           = "ORDERS_URL"
	envHTTPTimeout         = "HTTP_TIMEOUT"
	envGatewayTimeout      = "GATEWAY_TIMEOUT"
	envRetryAttempts       = "RETRY_ATTEMPTS"
	envRetryDelay          = "RETRY_DELAY"
	envStorageDriver       = "STORAGE_DRIVER"
	envPostgresDSN         = "POSTGRES_DSN"
	envPostgresAutoMigrate = "POSTGRES_AUTO_MIGRATE"
	envCatalogSeed         = "CATALOG_SEED"
	envEventsDriver        = "EVENTS_DRIVER"
	envKafkaBrokers        = "KAFKA_BROKERS"
	envRabbitMQURL         = "RABBITMQ_URL"
	envRabbitMQExchange    = "RABBITMQ_EXCHANGE"
)

// Config описывает настройки всех трёх сервисов; каждый бинарник читает свои поля.
type Config struct {
	AppVersion string

	CatalogHTTPAddr string
	CatalogGRPCAddr string
	OrdersHTTPAddr  string
	GatewayHTTPAddr string
	MetricsAddr     string

	CatalogURL        string
	CatalogGRPCTarget string
	CatalogTransport  string
	OrdersURL         string

	// HTTPTimeout ограничивает одну попытку обращения к соседнему сервису.
	HTTPTimeout   time.Duration
	RetryAttempts int
	RetryDelay    time.Duration

	// GatewayTimeout ограничивает ожидание ответа апстрима шлюзом;
	// 0 означает значение из GatewayUpstreamTimeout.
	GatewayTimeout time.Duration

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	CatalogSeed         bool

	EventsDriver     string
	KafkaBrokers     []string
	RabbitMQURL      string
	RabbitMQExchange string
}

// DefaultConfig возвращает значения по умолчанию для docker-compose окружения.
func DefaultConfig() Config {
	return Config{
		AppVersion:          "0.1.0",
		CatalogHTTPAddr:     ":8000",
		CatalogGRPCAddr:     ":50051",
		OrdersHTTPAddr:      ":8001",
		GatewayHTTPAddr:     ":8080",
		MetricsAddr:         ":9090",
		CatalogURL:          "http://catalog:8000",
		CatalogGRPCTarget:   "catalog:50051",
		CatalogTransport:    CatalogTransportHTTP,
		OrdersURL:           "http://orders:8001",
		HTTPTimeout:         2500 * time.Millisecond,
		RetryAttempts:       2,
		RetryDelay:          0,
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		CatalogSeed:         true,
		EventsDriver:        EventsDriverNone,
		RabbitMQExchange:    "shop.orders",
	}
}

// EnvLookup совместим с os.LookupEnv.
type EnvLookup func(key string) (string, bool)

// LoadConfig накладывает переменные окружения на DefaultConfig.
// Некорректные значения не останавливают запуск: остаётся значение по умолчанию,
// а описание проблемы попадает в warnings.
func LoadConfig(lookup EnvLookup) (Config, []string) {
	cfg := DefaultConfig()
	var warnings []string

	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, value, err))
	}

	stringVars := map[string]*string{
		envAppVersion:        &cfg.AppVersion,
		envCatalogHTTPAddr:   &cfg.CatalogHTTPAddr,
		envCatalogGRPCAddr:   &cfg.CatalogGRPCAddr,
		envOrdersHTTPAddr:    &cfg.OrdersHTTPAddr,
		envGatewayHTTPAddr:   &cfg.GatewayHTTPAddr,
		envMetricsAddr:       &cfg.MetricsAddr,
		envCatalogURL:        &cfg.CatalogURL,
		envCatalogGRPCTarget: &cfg.CatalogGRPCTarget,
		envOrdersURL:         &cfg.OrdersURL,
		envPostgresDSN:       &cfg.PostgresDSN,
		envRabbitMQURL:       &cfg.RabbitMQURL,
		envRabbitMQExchange:  &cfg.RabbitMQExchange,
	}
	for key, target := range stringVars {
		if v, ok := lookupTrimmed(lookup, key); ok {
			*target = v
		}
	}

	lowerVars := map[string]*string{
		envCatalogTransport: &cfg.CatalogTransport,
		envStorageDriver:    &cfg.StorageDriver,
		envEventsDriver:     &cfg.EventsDriver,
	}
	for key, target := range lowerVars {
		if v, ok := lookupTrimmed(lookup, key); ok {
			*target = strings.ToLower(v)
		}
	}

	if v, ok := lookupTrimmed(lookup, envKafkaBrokers); ok {
		cfg.KafkaBrokers = splitList(v)
	}

	if v, ok := lookupTrimmed(lookup, envHTTPTimeout); ok {
		if d, err := parseTimeout(v); err != nil {
			warn(envHTTPTimeout, v, err)
		} else {
			cfg.HTTPTimeout = d
		}
	}
	if v, ok := lookupTrimmed(lookup, envGatewayTimeout); ok {
		if d, err := parseTimeout(v); err != nil {
			warn(envGatewayTimeout, v, err)
		} else {
			cfg.GatewayTimeout = d
		}
	}
	if v, ok := lookupTrimmed(lookup, envRetryAttempts); ok {
		if n, err := parseInt(v, func(n int) bool { return n >= 0 }, "must be >= 0"); err != nil {
			warn(envRetryAttempts, v, err)
		} else {
			cfg.RetryAttempts = n
		}
	}
	if v, ok := lookupTrimmed(lookup, envRetryDelay); ok {
		if d, err := parseDuration(v, func(d time.Duration) bool { return d >= 0 }, "must be >= 0"); err != nil {
			warn(envRetryDelay, v, err)
		} else {
			cfg.RetryDelay = d
		}
	}
	if v, ok := lookupTrimmed(lookup, envPostgresAutoMigrate); ok {
		if b, err := parseBool(v); err != nil {
			warn(envPostgresAutoMigrate, v, err)
		} else {
			cfg.PostgresAutoMigrate = b
		}
	}
	if v, ok := lookupTrimmed(lookup, envCatalogSeed); ok {
		if b, err := parseBool(v); err != nil {
			warn(envCatalogSeed, v, err)
		} else {
			cfg.CatalogSeed = b
		}
	}

	return cfg, warnings
}

// gatewayTimeoutMargin — запас поверх бюджета попыток сервиса заказов.
const gatewayTimeoutMargin = time.Second

// GatewayUpstreamTimeout возвращает таймаут шлюза. Без явного GATEWAY_TIMEOUT
// он покрывает все попытки сервиса заказов, чтобы клиент получил ответ
// самого сервиса, а не 502 шлюза.
func (c Config) GatewayUpstreamTimeout() time.Duration {
	if c.GatewayTimeout > 0 {
		return c.GatewayTimeout
	}
	attempts := time.Duration(c.RetryAttempts + 1)
	return attempts*c.HTTPTimeout + time.Duration(c.RetryAttempts)*c.RetryDelay + gatewayTimeoutMargin
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be > 0"))
	}
	if c.RetryAttempts < 0 {
		errs = append(errs, errors.New("RETRY_ATTEMPTS must be >= 0"))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, errors.New("RETRY_DELAY must be >= 0"))
	}
	if c.GatewayTimeout < 0 {
		errs = append(errs, errors.New("GATEWAY_TIMEOUT must be >= 0"))
	}

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver: %q", c.StorageDriver))
	}

	switch c.CatalogTransport {
	case CatalogTransportHTTP, CatalogTransportGRPC:
	default:
		errs = append(errs, fmt.Errorf("unsupported catalog transport: %q", c.CatalogTransport))
	}

	switch c.EventsDriver {
	case EventsDriverNone:
	case EventsDriverKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for kafka events"))
		}
	case EventsDriverRabbitMQ:
		if c.RabbitMQURL == "" {
			errs = append(errs, errors.New("RABBITMQ_URL is required for rabbitmq events"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported events driver: %q", c.EventsDriver))
	}

	return errors.Join(errs...)
}

func lookupTrimmed(lookup EnvLookup, key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(n) {
		return 0, errors.New(rule)
	}
	return n, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(d) {
		return 0, errors.New(rule)
	}
	return d, nil
}

// parseTimeout принимает и Go-длительность ("2.5s"), и число секунд ("2.5").
func parseTimeout(raw string) (time.Duration, error) {
	positive := func(d time.Duration) bool { return d > 0 }
	if d, err := parseDuration(raw, positive, "must be > 0"); err == nil {
		return d, nil
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	d := time.Duration(seconds * float64(time.Second))
	if !positive(d) {
		return 0, errors.New("must be > 0")
	}
	return d, nil
}
