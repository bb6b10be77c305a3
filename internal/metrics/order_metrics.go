package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения лейблов для исходов обращения к каталогу.
const (
	OutcomeSuccess     = "success"
	OutcomeNotFound    = "not_found"
	OutcomeTransient   = "transient"
	OutcomeUnreachable = "unreachable"
	OutcomeValidation  = "validation"
	OutcomeStorage     = "storage"
)

// OrderMetrics содержит метрики резолвера каталога и создания заказов.
// Все методы безопасны для nil-получателя.
type OrderMetrics struct {
	lookupAttempts  *prometheus.CounterVec
	resolveResults  *prometheus.CounterVec
	resolveDuration prometheus.Histogram

	ordersCreated  prometheus.Counter
	ordersRejected *prometheus.CounterVec

	eventsPublished *prometheus.CounterVec
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		lookupAttempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_catalog_lookup_attempts_total",
			Help: "Catalog lookup attempts by outcome",
		}, []string{"outcome"}),
		resolveResults: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_catalog_resolve_total",
			Help: "Catalog item resolutions by final result",
		}, []string{"result"}),
		resolveDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_catalog_resolve_duration_seconds",
			Help:    "Duration of catalog item resolution including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_created_total",
			Help: "Total number of orders persisted",
		}),
		ordersRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_orders_rejected_total",
			Help: "Order creation failures by reason",
		}, []string{"reason"}),
		eventsPublished: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_order_events_total",
			Help: "Order events publish attempts by result",
		}, []string{"result"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordLookupAttempt учитывает одну попытку обращения к каталогу.
func (m *OrderMetrics) RecordLookupAttempt(outcome string) {
	if m == nil {
		return
	}
	m.lookupAttempts.WithLabelValues(outcome).Inc()
}

// RecordResolve учитывает итог разрешения товара и его длительность.
func (m *OrderMetrics) RecordResolve(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.resolveResults.WithLabelValues(result).Inc()
	m.resolveDuration.Observe(duration.Seconds())
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// RecordOrderRejected учитывает отказ в создании заказа.
func (m *OrderMetrics) RecordOrderRejected(reason string) {
	if m == nil {
		return
	}
	m.ordersRejected.WithLabelValues(reason).Inc()
}

// RecordEventPublished учитывает результат публикации события.
func (m *OrderMetrics) RecordEventPublished(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.eventsPublished.WithLabelValues(result).Inc()
}
