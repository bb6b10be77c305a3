package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	"github.com/vladislavdragonenkov/shop/internal/service/gateway"
	grpcsvc "github.com/vladislavdragonenkov/shop/internal/service/grpc"
	"github.com/vladislavdragonenkov/shop/internal/service/httpapi"
	"github.com/vladislavdragonenkov/shop/internal/service/orders"
	"github.com/vladislavdragonenkov/shop/internal/version"
	catalogv1 "github.com/vladislavdragonenkov/shop/proto/catalog/v1"
)

const shutdownTimeout = 5 * time.Second

// RunCatalog запускает сервис каталога: HTTP API, gRPC и сервер метрик.
func RunCatalog(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := log.WithFields(log.Fields{"component": "app", "service": "catalog"})

	st, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeWithLog(st.Close, "storage", logger)

	svc := catalog.NewService(st.items, logger.WithField("layer", "service"))
	if cfg.CatalogSeed {
		if err := seedCatalog(ctx, svc, logger); err != nil {
			return err
		}
	}

	healthHandler := newHealthHandler("catalog", cfg, logger)
	if st.checker != nil {
		healthHandler.RegisterChecker("storage", st.checker)
	}

	router := httpapi.NewCatalogRouter(
		httpapi.NewCatalogHandler(svc, logger.WithField("layer", "http")),
		healthHandler.InfoHandler,
		logger.WithField("layer", "http"),
	)

	grpcMetrics := registerServerMetrics()
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	catalogv1.RegisterCatalogServer(grpcServer, grpcsvc.NewCatalogService(svc, logger.WithField("layer", "grpc")))
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(catalogv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	// reflection нужен для grpcurl
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	return serve(ctx, logger, cfg.MetricsAddr, healthHandler,
		[]httpEndpoint{{name: "catalog http", addr: cfg.CatalogHTTPAddr, handler: router}},
		&grpcEndpoint{addr: cfg.CatalogGRPCAddr, server: grpcServer, health: healthServer},
	)
}

// RunOrders запускает сервис заказов.
func RunOrders(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := log.WithFields(log.Fields{"component": "app", "service": "orders"})

	st, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeWithLog(st.Close, "storage", logger)

	client, closeClient, err := initCatalogClient(cfg)
	if err != nil {
		return err
	}
	defer closeWithLog(closeClient, "catalog client", logger)

	publisher, closePublisher, err := initEventPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeWithLog(closePublisher, "event publisher", logger)

	orderMetrics := metrics.NewOrderMetrics()
	resolver := catalog.NewResolver(client, catalog.ResolverConfig{
		Timeout:    cfg.HTTPTimeout,
		MaxRetries: cfg.RetryAttempts,
		RetryDelay: cfg.RetryDelay,
	}, orderMetrics, logger.WithField("layer", "resolver"))
	svc := orders.NewService(resolver, st.orders, publisher, orderMetrics, logger.WithField("layer", "service"))

	healthHandler := newHealthHandler("orders", cfg, logger)
	healthHandler.RegisterChecker("catalog", healthcheck.NewPingChecker("catalog", cfg.HTTPTimeout, client.Ping))
	if st.checker != nil {
		healthHandler.RegisterChecker("storage", st.checker)
	}

	router := httpapi.NewOrdersRouter(
		httpapi.NewOrderHandler(svc, logger.WithField("layer", "http")),
		healthHandler.InfoHandler,
		logger.WithField("layer", "http"),
	)

	logger.WithFields(log.Fields{
		"transport":      cfg.CatalogTransport,
		"timeout":        cfg.HTTPTimeout,
		"retry_attempts": cfg.RetryAttempts,
		"events":         cfg.EventsDriver,
	}).Info("catalog resolver configured")

	return serve(ctx, logger, cfg.MetricsAddr, healthHandler,
		[]httpEndpoint{{name: "orders http", addr: cfg.OrdersHTTPAddr, handler: router}},
		nil,
	)
}

// RunGateway запускает API-шлюз.
func RunGateway(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := log.WithFields(log.Fields{"component": "app", "service": "gateway"})

	gw, err := gateway.New(gateway.Config{
		CatalogURL: cfg.CatalogURL,
		OrdersURL:  cfg.OrdersURL,
		Timeout:    cfg.GatewayUpstreamTimeout(),
	}, logger.WithField("layer", "proxy"))
	if err != nil {
		return err
	}

	healthHandler := newHealthHandler("gateway", cfg, logger)

	return serve(ctx, logger, cfg.MetricsAddr, healthHandler,
		[]httpEndpoint{{name: "gateway http", addr: cfg.GatewayHTTPAddr, handler: gw.Router(healthHandler.InfoHandler)}},
		nil,
	)
}

// seedCatalog добавляет стартовые товары только в пустой каталог.
func seedCatalog(ctx context.Context, svc *catalog.Service, logger *log.Entry) error {
	items, err := svc.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("list items before seed: %w", err)
	}
	if len(items) > 0 {
		logger.WithField("items", len(items)).Info("catalog already populated, seed skipped")
		return nil
	}
	if err := svc.Seed(ctx, catalog.DefaultSeed()); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	logger.WithField("items", len(catalog.DefaultSeed())).Info("catalog seeded")
	return nil
}

type httpEndpoint struct {
	name    string
	addr    string
	handler http.Handler
}

type grpcEndpoint struct {
	addr   string
	server *grpc.Server
	health *health.Server
}

// serve открывает все listener'ы заранее, затем обслуживает их до отмены ctx
// или первой ошибки. При отмене возвращает ctx.Err().
func serve(ctx context.Context, logger *log.Entry, metricsAddr string, healthHandler *healthcheck.Handler, endpoints []httpEndpoint, grpcEP *grpcEndpoint) error {
	listeners := make([]net.Listener, 0, len(endpoints)+1)
	closeAll := func() {
		for _, lis := range listeners {
			_ = lis.Close()
		}
	}
	for _, ep := range endpoints {
		lis, err := net.Listen("tcp", ep.addr)
		if err != nil {
			closeAll()
			return fmt.Errorf("listen %s on %s: %w", ep.name, ep.addr, err)
		}
		listeners = append(listeners, lis)
	}
	var grpcLis net.Listener
	if grpcEP != nil {
		lis, err := net.Listen("tcp", grpcEP.addr)
		if err != nil {
			closeAll()
			return fmt.Errorf("listen grpc on %s: %w", grpcEP.addr, err)
		}
		grpcLis = lis
	}

	g, gctx := errgroup.WithContext(ctx)
	startMetricsServer(gctx, metricsAddr, logger, healthHandler)

	for i, ep := range endpoints {
		srv := &http.Server{Handler: ep.handler, ReadHeaderTimeout: 10 * time.Second}
		lis := listeners[i]
		name := ep.name
		g.Go(func() error {
			logger.Infof("%s слушает %s", name, lis.Addr())
			if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownHTTP(srv, logger)
			return nil
		})
	}

	if grpcEP != nil {
		g.Go(func() error {
			logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
			if err := grpcEP.server.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcEP.health.Shutdown()
			stopGRPC(grpcEP.server, logger)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("получен сигнал остановки, серверы остановлены")
	return ctx.Err()
}

// stopGRPC пытается остановиться мягко, по таймауту останавливает принудительно.
func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// newHealthHandler создаёт обработчик health checks и пишет в лог сведения о сборке.
func newHealthHandler(service string, cfg Config, logger *log.Entry) *healthcheck.Handler {
	v := version.Resolve(cfg.AppVersion)
	logger.WithFields(log.Fields{
		"version": v,
		"commit":  version.GetCommit(),
		"built":   version.GetDate(),
	}).Info("build info")
	return healthcheck.NewHandler(service, v)
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus и health checks.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}

func closeWithLog(closeFn func() error, what string, logger *log.Entry) {
	if closeFn == nil {
		return
	}
	if err := closeFn(); err != nil {
		logger.WithError(err).Warnf("failed to close %s", what)
	}
}
