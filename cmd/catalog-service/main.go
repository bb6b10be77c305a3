package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/app"
)

func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
}

func run(ctx context.Context, lookup app.EnvLookup) error {
	cfg, warnings := app.LoadConfig(lookup)
	for _, w := range warnings {
		log.Warn(w)
	}

	log.WithFields(log.Fields{
		"http_addr":    cfg.CatalogHTTPAddr,
		"grpc_addr":    cfg.CatalogGRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
	}).Info("запускаем CatalogService")

	return app.RunCatalog(ctx, cfg)
}

func main() {
	setupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.LookupEnv); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("CatalogService остановлен")
}
