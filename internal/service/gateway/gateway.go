package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/service/httpapi"
)

// apiPrefix срезается перед проксированием: /api/orders -> /orders.
const apiPrefix = "/api"

// Config описывает адреса апстримов и таймаут ожидания ответа.
type Config struct {
	CatalogURL string
	OrdersURL  string
	Timeout    time.Duration
}

// Gateway — прозрачный прокси к каталогу и заказам. Статусы и тела не меняет, повторов не делает.
type Gateway struct {
	catalog *httputil.ReverseProxy
	orders  *httputil.ReverseProxy
	logger  *log.Entry
}

// New создаёт шлюз. Ошибка возвращается только для некорректных URL апстримов.
func New(cfg Config, logger *log.Entry) (*Gateway, error) {
	if logger == nil {
		logger = log.WithField("component", "gateway")
	}

	catalogURL, err := parseUpstream("catalog", cfg.CatalogURL)
	if err != nil {
		return nil, err
	}
	ordersURL, err := parseUpstream("orders", cfg.OrdersURL)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Timeout > 0 {
		transport.ResponseHeaderTimeout = cfg.Timeout
	}

	g := &Gateway{logger: logger}
	g.catalog = g.newProxy("catalog", catalogURL, transport)
	g.orders = g.newProxy("orders", ordersURL, transport)
	return g, nil
}

func parseUpstream(name, raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s url: %w", name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s url %q must be absolute", name, raw)
	}
	return u, nil
}

func (g *Gateway) newProxy(upstream string, target *url.URL, transport http.RoundTripper) *httputil.ReverseProxy {
	logger := g.logger.WithField("upstream", upstream)
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, apiPrefix)
			pr.Out.URL.RawPath = ""
			pr.SetURL(target)
			pr.SetXForwarded()
			if id := middleware.GetReqID(pr.In.Context()); id != "" {
				pr.Out.Header.Set(middleware.RequestIDHeader, id)
			}
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.WithError(err).WithField("path", r.URL.Path).Warn("upstream request failed")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(httpapi.ErrorResponse{
				Detail: fmt.Sprintf("%s service unavailable", upstream),
			})
		},
	}
}

// Router возвращает HTTP API шлюза.
func (g *Gateway) Router(health http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(httpapi.RequestLogger(g.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", health)
	r.Route(apiPrefix, func(r chi.Router) {
		r.Method(http.MethodGet, "/items", g.catalog)
		r.Method(http.MethodGet, "/items/{id}", g.catalog)
		r.Method(http.MethodPost, "/orders", g.orders)
		r.Method(http.MethodGet, "/orders/{id}", g.orders)
	})
	return r
}
