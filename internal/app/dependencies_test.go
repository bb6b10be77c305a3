package app

import (
	"context"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	grpcsvc "github.com/vladislavdragonenkov/shop/internal/service/grpc"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
	catalogv1 "github.com/vladislavdragonenkov/shop/proto/catalog/v1"
)

func TestInitStorage_Memory(t *testing.T) {
	logger := log.WithField("test", "dependencies")

	st, err := initStorage(context.Background(), DefaultConfig(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NotNil(t, st.items)
	require.NotNil(t, st.orders)
	assert.Nil(t, st.checker, "memory storage has nothing to ping")

	item, err := st.items.Create(context.Background(), domain.ItemDraft{Name: "Tea", Price: decimal.RequireFromString("99.50")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.ID)
}

func TestInitStorage_Unsupported(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "invalid-driver"

	_, err := initStorage(context.Background(), cfg, log.WithField("test", "dependencies"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage driver")
}

func TestStorageClose_Nil(t *testing.T) {
	var st *storage
	assert.NoError(t, st.Close())
	assert.NoError(t, (&storage{}).Close())
}

func TestInitCatalogClient_HTTP(t *testing.T) {
	client, closeFn, err := initCatalogClient(DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	assert.IsType(t, &catalog.HTTPFetcher{}, client)
}

func TestInitCatalogClient_GRPC(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CatalogTransport = CatalogTransportGRPC
	cfg.CatalogGRPCTarget = "127.0.0.1:1"

	// Соединение ленивое: Dial не требует доступного сервера.
	client, closeFn, err := initCatalogClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	assert.IsType(t, &catalog.GRPCFetcher{}, client)
}

func TestInitCatalogClient_Unsupported(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CatalogTransport = "soap"

	_, _, err := initCatalogClient(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported catalog transport")
}

func TestInitEventPublisher_None(t *testing.T) {
	publisher, closeFn, err := initEventPublisher(context.Background(), DefaultConfig(), log.WithField("test", "events"))
	require.NoError(t, err)

	assert.Equal(t, domain.NopPublisher{}, publisher)
	assert.NoError(t, closeFn())
}

func TestInitEventPublisher_Unsupported(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EventsDriver = "nats"

	_, _, err := initEventPublisher(context.Background(), cfg, log.WithField("test", "events"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported events driver")
}

func TestRegisterMetrics_ReusesDefaultCollectors(t *testing.T) {
	assert.Same(t, registerServerMetrics(), registerServerMetrics())
	assert.Same(t, registerClientMetrics(), registerClientMetrics())
}

// handledCount ищет счётчик *_handled_total для метода GetItem в DefaultGatherer.
func handledCount(t *testing.T, family string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != family {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "grpc_method" && label.GetValue() == "GetItem" {
					total += m.GetCounter().GetValue()
				}
			}
		}
		return total
	}
	return 0
}

func TestGRPCMetricsExportedOnDefaultRegistry(t *testing.T) {
	serverMetrics := registerServerMetrics()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(serverMetrics.UnaryServerInterceptor()))

	items := catalog.NewService(memory.NewItemRepository(), log.WithField("test", "grpc-metrics"))
	require.NoError(t, items.Seed(context.Background(), catalog.DefaultSeed()))
	catalogv1.RegisterCatalogServer(srv, grpcsvc.NewCatalogService(items, log.WithField("test", "grpc-metrics")))
	serverMetrics.InitializeMetrics(srv)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := catalog.DialCatalog("passthrough:///bufnet", registerClientMetrics(),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	serverBefore := handledCount(t, "grpc_server_handled_total")
	clientBefore := handledCount(t, "grpc_client_handled_total")

	item, err := catalog.NewGRPCFetcher(conn).FetchItem(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Tea", item.Name)

	assert.Equal(t, serverBefore+1, handledCount(t, "grpc_server_handled_total"))
	assert.Equal(t, clientBefore+1, handledCount(t, "grpc_client_handled_total"))
}
