package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// newBaseRouter собирает общий стек middleware и /health.
func newBaseRouter(logger *log.Entry, health http.HandlerFunc) chi.Router {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", health)
	return r
}

// NewCatalogRouter возвращает HTTP API каталога.
func NewCatalogRouter(h *CatalogHandler, health http.HandlerFunc, logger *log.Entry) http.Handler {
	r := newBaseRouter(logger, health)
	r.Get("/items", h.ListItems)
	r.Post("/items", h.CreateItem)
	r.Get("/items/{id}", h.GetItem)
	return r
}

// NewOrdersRouter возвращает HTTP API сервиса заказов.
func NewOrdersRouter(h *OrderHandler, health http.HandlerFunc, logger *log.Entry) http.Handler {
	r := newBaseRouter(logger, health)
	r.Post("/orders", h.CreateOrder)
	r.Get("/orders/{id}", h.GetOrder)
	return r
}
