package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	grpcprom "github.com/grpc-ecosystem/go-grpc-prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/messaging/rabbitmq"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
)

// storage — репозитории выбранного драйвера и функция освобождения ресурсов.
type storage struct {
	items   domain.ItemRepository
	orders  domain.OrderRepository
	checker healthcheck.Checker
	closeFn func() error
}

func (s *storage) Close() error {
	if s == nil || s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// initStorage открывает хранилище по cfg.StorageDriver.
func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (*storage, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		return &storage{
			items:  memory.NewItemRepository(),
			orders: memory.NewOrderRepository(),
		}, nil
	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			applied, err := store.Migrator().Up(ctx, 0)
			if err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.WithField("applied", applied).Info("postgres migrations applied")
		}
		return &storage{
			items:   postgres.NewItemRepository(store),
			orders:  postgres.NewOrderRepository(store),
			checker: healthcheck.NewPingChecker("postgres", 0, store.Ping),
			closeFn: store.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.StorageDriver)
	}
}

// catalogClient — однократный fetcher с проверкой доступности каталога.
type catalogClient interface {
	domain.CatalogFetcher
	Ping(ctx context.Context) error
}

// initCatalogClient создаёт fetcher по cfg.CatalogTransport.
func initCatalogClient(cfg Config) (catalogClient, func() error, error) {
	switch cfg.CatalogTransport {
	case CatalogTransportHTTP:
		return catalog.NewHTTPFetcher(cfg.CatalogURL, &http.Client{}), func() error { return nil }, nil
	case CatalogTransportGRPC:
		conn, err := catalog.DialCatalog(cfg.CatalogGRPCTarget, registerClientMetrics())
		if err != nil {
			return nil, nil, fmt.Errorf("dial catalog grpc: %w", err)
		}
		return catalog.NewGRPCFetcher(conn), conn.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported catalog transport: %q", cfg.CatalogTransport)
	}
}

// initEventPublisher создаёт публикатор order.created по cfg.EventsDriver.
func initEventPublisher(ctx context.Context, cfg Config, logger *log.Entry) (domain.EventPublisher, func() error, error) {
	noop := func() error { return nil }

	switch cfg.EventsDriver {
	case EventsDriverNone, "":
		return domain.NopPublisher{}, noop, nil
	case EventsDriverKafka:
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
		return producer, producer.Close, nil
	case EventsDriverRabbitMQ:
		publisher, err := rabbitmq.Dial(ctx, rabbitmq.Config{
			URL:      cfg.RabbitMQURL,
			Exchange: cfg.RabbitMQExchange,
		}, logger.WithField("component", "rabbitmq-publisher"))
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("exchange", cfg.RabbitMQExchange).Info("rabbitmq publisher initialized")
		return publisher, publisher.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported events driver: %q", cfg.EventsDriver)
	}
}

var enableHandlingTime sync.Once

// registerServerMetrics возвращает серверные gRPC-метрики, которые
// go-grpc-prometheus уже зарегистрировал в prometheus.DefaultRegisterer.
func registerServerMetrics() *grpcprom.ServerMetrics {
	enableHandlingTime.Do(func() {
		grpcprom.EnableHandlingTimeHistogram()
	})
	return grpcprom.DefaultServerMetrics
}

// registerClientMetrics возвращает клиентские gRPC-метрики из DefaultRegisterer.
func registerClientMetrics() *grpcprom.ClientMetrics {
	return grpcprom.DefaultClientMetrics
}
