package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

var errTransient = errors.New("connection refused")

// scriptedFetcher отдаёт ошибки из script по очереди, затем товар.
type scriptedFetcher struct {
	script []error
	calls  atomic.Int32
	item   domain.Item
}

func (f *scriptedFetcher) FetchItem(_ context.Context, id int64) (domain.Item, error) {
	n := int(f.calls.Add(1))
	if n <= len(f.script) {
		return domain.Item{}, f.script[n-1]
	}
	item := f.item
	item.ID = id
	return item, nil
}

type alwaysFailingFetcher struct {
	calls atomic.Int32
}

func (f *alwaysFailingFetcher) FetchItem(context.Context, int64) (domain.Item, error) {
	n := f.calls.Add(1)
	return domain.Item{}, fmt.Errorf("attempt %d: %w", n, errTransient)
}

type blockingFetcher struct {
	calls     atomic.Int32
	deadlines atomic.Int32
}

func (f *blockingFetcher) FetchItem(ctx context.Context, _ int64) (domain.Item, error) {
	f.calls.Add(1)
	if _, ok := ctx.Deadline(); ok {
		f.deadlines.Add(1)
	}
	<-ctx.Done()
	return domain.Item{}, ctx.Err()
}

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger.WithField("test", "resolver")
}

func coffee() domain.Item {
	return domain.Item{Name: "Coffee", Price: decimal.RequireFromString("199.00")}
}

func TestDefaultResolverConfig(t *testing.T) {
	cfg := DefaultResolverConfig()
	assert.Equal(t, 2500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Zero(t, cfg.RetryDelay)
}

func TestResolver_SuccessFirstAttempt(t *testing.T) {
	fetcher := &scriptedFetcher{item: coffee()}
	r := NewResolver(fetcher, ResolverConfig{Timeout: time.Second, MaxRetries: 2}, nil, testLogger())

	item, err := r.Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.ID)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestResolver_NotFoundIsNotRetried(t *testing.T) {
	fetcher := &scriptedFetcher{script: []error{fmt.Errorf("item 999: %w", domain.ErrItemNotFound)}}
	r := NewResolver(fetcher, ResolverConfig{Timeout: time.Second, MaxRetries: 2}, nil, testLogger())

	_, err := r.Resolve(context.Background(), 999)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	assert.False(t, domain.IsUnreachable(err))
	assert.Equal(t, int32(1), fetcher.calls.Load(), "not found must stop after the first attempt")
}

func TestResolver_TransientThenSuccess(t *testing.T) {
	const maxRetries = 3
	for k := 0; k <= maxRetries; k++ {
		t.Run(fmt.Sprintf("%d failures", k), func(t *testing.T) {
			script := make([]error, k)
			for i := range script {
				script[i] = errTransient
			}
			fetcher := &scriptedFetcher{script: script, item: coffee()}
			r := NewResolver(fetcher, ResolverConfig{Timeout: time.Second, MaxRetries: maxRetries}, nil, testLogger())

			item, err := r.Resolve(context.Background(), 1)
			require.NoError(t, err)
			assert.True(t, item.Price.Equal(decimal.RequireFromString("199")))
			assert.Equal(t, int32(k+1), fetcher.calls.Load())
		})
	}
}

func TestResolver_AlwaysFailingExhaustsBudget(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 2, 5} {
		t.Run(fmt.Sprintf("retries=%d", maxRetries), func(t *testing.T) {
			fetcher := &alwaysFailingFetcher{}
			r := NewResolver(fetcher, ResolverConfig{Timeout: time.Second, MaxRetries: maxRetries}, nil, testLogger())

			_, err := r.Resolve(context.Background(), 1)
			require.Error(t, err)
			assert.True(t, domain.IsUnreachable(err))
			assert.False(t, errors.Is(err, domain.ErrItemNotFound))
			assert.Equal(t, int32(maxRetries+1), fetcher.calls.Load())

			var ue *domain.UnreachableError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, maxRetries+1, ue.Attempts)
			assert.ErrorIs(t, ue.Cause, errTransient)
			assert.Contains(t, ue.Cause.Error(), fmt.Sprintf("attempt %d", maxRetries+1), "cause is the last failure")
		})
	}
}

func TestResolver_NegativeRetriesMeansSingleAttempt(t *testing.T) {
	fetcher := &alwaysFailingFetcher{}
	r := NewResolver(fetcher, ResolverConfig{MaxRetries: -4}, nil, testLogger())

	_, err := r.Resolve(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestResolver_TimeoutConsumesOneAttempt(t *testing.T) {
	fetcher := &blockingFetcher{}
	r := NewResolver(fetcher, ResolverConfig{Timeout: 20 * time.Millisecond, MaxRetries: 1}, nil, testLogger())

	start := time.Now()
	_, err := r.Resolve(context.Background(), 1)
	require.Error(t, err)

	assert.Equal(t, int32(2), fetcher.calls.Load())
	assert.Equal(t, int32(2), fetcher.deadlines.Load(), "each attempt gets its own deadline")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, domain.IsUnreachable(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestResolver_StopsWhenCallerContextDone(t *testing.T) {
	fetcher := &alwaysFailingFetcher{}
	r := NewResolver(fetcher, ResolverConfig{Timeout: time.Second, MaxRetries: 5}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, 1)
	require.Error(t, err)
	assert.True(t, domain.IsUnreachable(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), fetcher.calls.Load())
}

func TestResolver_RetryDelay(t *testing.T) {
	fetcher := &scriptedFetcher{script: []error{errTransient, errTransient}, item: coffee()}
	r := NewResolver(fetcher, ResolverConfig{Timeout: time.Second, MaxRetries: 2, RetryDelay: 10 * time.Millisecond}, nil, testLogger())

	start := time.Now()
	_, err := r.Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestResolver_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewOrderMetricsWithRegisterer(reg)

	fetcher := &scriptedFetcher{script: []error{errTransient}, item: coffee()}
	r := NewResolver(fetcher, ResolverConfig{Timeout: time.Second, MaxRetries: 2}, m, testLogger())

	_, err := r.Resolve(context.Background(), 1)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "shop_catalog_lookup_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "transient and success series")
}
