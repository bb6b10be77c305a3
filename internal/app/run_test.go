package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runFunc func(context.Context, Config) error

// startService запускает сервис в фоне и возвращает канал с результатом Run*.
func startService(t *testing.T, ctx context.Context, run runFunc, cfg Config) <-chan error {
	t.Helper()

	done := make(chan error, 1)
	go func() {
		done <- run(ctx, cfg)
	}()
	return done
}

func waitReady(t *testing.T, url string) {
	t.Helper()

	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond, "service at %s did not become ready", url)
}

func waitStopped(t *testing.T, done <-chan error) {
	t.Helper()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled), "expected context.Canceled, got %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("service did not stop after cancel")
	}
}

func localAddr(t *testing.T) string {
	return fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
}

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.CatalogHTTPAddr = localAddr(t)
	cfg.CatalogGRPCAddr = localAddr(t)
	cfg.OrdersHTTPAddr = localAddr(t)
	cfg.GatewayHTTPAddr = localAddr(t)
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.CatalogURL = "http://" + cfg.CatalogHTTPAddr
	cfg.OrdersURL = "http://" + cfg.OrdersHTTPAddr
	cfg.HTTPTimeout = time.Second
	return cfg
}

func postOrder(t *testing.T, url string, itemID, qty int64) (int, map[string]any) {
	t.Helper()

	body := fmt.Sprintf(`{"item_id":%d,"qty":%d}`, itemID, qty)
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}

func TestRunServices_OrderThroughGateway(t *testing.T) {
	cfg := testConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalogDone := startService(t, ctx, RunCatalog, cfg)
	waitReady(t, "http://"+cfg.CatalogHTTPAddr+"/health")
	ordersDone := startService(t, ctx, RunOrders, cfg)
	waitReady(t, "http://"+cfg.OrdersHTTPAddr+"/health")
	gatewayDone := startService(t, ctx, RunGateway, cfg)
	waitReady(t, "http://"+cfg.GatewayHTTPAddr+"/health")

	base := "http://" + cfg.GatewayHTTPAddr + "/api"

	status, order := postOrder(t, base+"/orders", 1, 2)
	require.Equal(t, http.StatusCreated, status, "body: %v", order)
	assert.Equal(t, float64(1), order["id"])
	assert.Equal(t, "199.00", order["unit_price"])
	assert.Equal(t, "398.00", order["total"])

	resp, err := http.Get(fmt.Sprintf("%s/orders/%v", base, order["id"]))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status, body := postOrder(t, base+"/orders", 999, 1)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Item not found in catalog", body["detail"])

	cancel()
	waitStopped(t, gatewayDone)
	waitStopped(t, ordersDone)
	waitStopped(t, catalogDone)
}

func TestRunOrders_CatalogDown(t *testing.T) {
	cfg := testConfig(t)
	// На CatalogHTTPAddr никто не слушает.
	cfg.RetryAttempts = 1
	cfg.HTTPTimeout = 200 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := startService(t, ctx, RunOrders, cfg)
	waitReady(t, "http://"+cfg.OrdersHTTPAddr+"/health")

	status, body := postOrder(t, "http://"+cfg.OrdersHTTPAddr+"/orders", 1, 1)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Contains(t, body["detail"], "Catalog lookup failed")

	cancel()
	waitStopped(t, done)
}

func TestRunCatalog_InvalidStorageDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageDriver = "invalid-driver"

	err := RunCatalog(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage driver")
}

func TestRunCatalog_AddressInUse(t *testing.T) {
	first := testConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := startService(t, ctx, RunCatalog, first)
	waitReady(t, "http://"+first.CatalogHTTPAddr+"/health")

	second := testConfig(t)
	second.CatalogHTTPAddr = first.CatalogHTTPAddr
	err := RunCatalog(context.Background(), second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")

	cancel()
	waitStopped(t, done)
}

func TestRunGateway_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTPTimeout = 0

	err := RunGateway(context.Background(), cfg)
	require.ErrorContains(t, err, "HTTP_TIMEOUT must be > 0")
}

func TestRunGateway_WaitsForOrdersRetryBudget(t *testing.T) {
	// Каталог отвечает дольше таймаута попытки: сервис заказов исчерпает все попытки.
	slowCatalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer slowCatalog.Close()

	cfg := testConfig(t)
	cfg.CatalogURL = slowCatalog.URL
	cfg.HTTPTimeout = 200 * time.Millisecond
	cfg.RetryAttempts = 2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ordersDone := startService(t, ctx, RunOrders, cfg)
	waitReady(t, "http://"+cfg.OrdersHTTPAddr+"/health")
	gatewayDone := startService(t, ctx, RunGateway, cfg)
	waitReady(t, "http://"+cfg.GatewayHTTPAddr+"/health")

	status, body := postOrder(t, "http://"+cfg.GatewayHTTPAddr+"/api/orders", 1, 1)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Contains(t, body["detail"], "Catalog lookup failed", "gateway must relay the orders service answer")

	cancel()
	waitStopped(t, gatewayDone)
	waitStopped(t, ordersDone)
}

func TestRunGateway_RejectsRelativeUpstream(t *testing.T) {
	cfg := testConfig(t)
	cfg.CatalogURL = "catalog:8000"

	err := RunGateway(context.Background(), cfg)
	require.Error(t, err)
}
