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

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, warnings := app.LoadConfig(os.LookupEnv)
	for _, w := range warnings {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":   cfg.GatewayHTTPAddr,
		"catalog_url": cfg.CatalogURL,
		"orders_url":  cfg.OrdersURL,
	}).Info("запускаем API Gateway")

	if err := app.RunGateway(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("шлюз завершился с ошибкой")
	}

	log.Info("API Gateway остановлен")
}
