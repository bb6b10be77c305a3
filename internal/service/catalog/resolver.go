package catalog

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// ResolverConfig задаёт политику обращения к каталогу.
type ResolverConfig struct {
	// Timeout ограничивает каждую попытку отдельно; 0 — без ограничения.
	Timeout time.Duration
	// MaxRetries — число повторов после первой попытки.
	MaxRetries int
	// RetryDelay — фиксированная пауза между попытками, по умолчанию 0.
	RetryDelay time.Duration
}

// DefaultResolverConfig возвращает конфигурацию по умолчанию: 2.5s на попытку, 2 повтора.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Timeout:    2500 * time.Millisecond,
		MaxRetries: 2,
	}
}

// Resolver получает товар из каталога с ограниченным числом повторов.
// ErrItemNotFound не повторяется; прочие ошибки считаются временными.
type Resolver struct {
	fetcher domain.CatalogFetcher
	config  ResolverConfig
	metrics *metrics.OrderMetrics
	logger  *log.Entry
}

// NewResolver создаёт резолвер поверх однократного fetcher.
func NewResolver(fetcher domain.CatalogFetcher, config ResolverConfig, m *metrics.OrderMetrics, logger *log.Entry) *Resolver {
	if logger == nil {
		logger = log.WithField("component", "catalog-resolver")
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &Resolver{
		fetcher: fetcher,
		config:  config,
		metrics: m,
		logger:  logger,
	}
}

// Resolve возвращает товар, ошибку с ErrItemNotFound или *domain.UnreachableError.
func (r *Resolver) Resolve(ctx context.Context, id int64) (domain.Item, error) {
	start := time.Now()
	maxAttempts := r.config.MaxRetries + 1

	var (
		lastErr  error
		attempts int
	)
	for attempts < maxAttempts {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		attempts++

		item, err := r.fetchOnce(ctx, id)
		if err == nil {
			r.metrics.RecordLookupAttempt(metrics.OutcomeSuccess)
			r.metrics.RecordResolve(metrics.OutcomeSuccess, time.Since(start))
			if attempts > 1 {
				r.logger.WithFields(log.Fields{
					"item_id": id,
					"attempt": attempts,
				}).Info("catalog lookup succeeded after retry")
			}
			return item, nil
		}

		if errors.Is(err, domain.ErrItemNotFound) {
			r.metrics.RecordLookupAttempt(metrics.OutcomeNotFound)
			r.metrics.RecordResolve(metrics.OutcomeNotFound, time.Since(start))
			return domain.Item{}, err
		}

		lastErr = err
		r.metrics.RecordLookupAttempt(metrics.OutcomeTransient)
		r.logger.WithFields(log.Fields{
			"item_id":      id,
			"attempt":      attempts,
			"max_attempts": maxAttempts,
			"error":        err,
		}).Warn("catalog lookup failed")

		if attempts < maxAttempts && r.config.RetryDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(r.config.RetryDelay):
			}
		}
	}

	r.metrics.RecordResolve(metrics.OutcomeUnreachable, time.Since(start))
	r.logger.WithFields(log.Fields{
		"item_id":  id,
		"attempts": attempts,
		"error":    lastErr,
	}).Error("catalog unreachable, retry budget exhausted")

	return domain.Item{}, &domain.UnreachableError{Attempts: attempts, Cause: lastErr}
}

func (r *Resolver) fetchOnce(ctx context.Context, id int64) (domain.Item, error) {
	if r.config.Timeout <= 0 {
		return r.fetcher.FetchItem(ctx, id)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()
	return r.fetcher.FetchItem(attemptCtx, id)
}

var _ domain.ItemResolver = (*Resolver)(nil)
