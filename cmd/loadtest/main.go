package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type config struct {
	baseURL     string
	total       int
	concurrency int
	timeout     time.Duration
	itemID      int64
	qty         int64
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type report struct {
	StartedAt       time.Time        `json:"started_at"`
	DurationSeconds float64          `json:"duration_seconds"`
	Total           int64            `json:"total"`
	Success         int64            `json:"success"`
	Failed          int64            `json:"failed"`
	ErrorRate       float64          `json:"error_rate"`
	RPS             float64          `json:"rps"`
	Statuses        map[string]int64 `json:"statuses"`
	LatencyMs       latencySummary   `json:"latency_ms"`
	UniqueOrderIDs  int              `json:"unique_order_ids"`
	DuplicateIDs    []int64          `json:"duplicate_ids,omitempty"`
}

type collector struct {
	mu        sync.Mutex
	total     int64
	success   int64
	failed    int64
	statuses  map[string]int64
	latencies []float64
	orderIDs  map[int64]int
}

func newCollector() *collector {
	return &collector{
		statuses: make(map[string]int64),
		orderIDs: make(map[int64]int),
	}
}

// record учитывает один запрос. status 0 означает транспортную ошибку.
func (c *collector) record(latency time.Duration, status int, orderID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	if status == http.StatusCreated && orderID > 0 {
		c.success++
		c.orderIDs[orderID]++
	} else {
		c.failed++
	}
	key := "transport_error"
	if status != 0 {
		key = strconv.Itoa(status)
	}
	c.statuses[key]++
	c.latencies = append(c.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make(map[string]int64, len(c.statuses))
	for k, v := range c.statuses {
		statuses[k] = v
	}

	var duplicates []int64
	for id, count := range c.orderIDs {
		if count > 1 {
			duplicates = append(duplicates, id)
		}
	}
	sort.Slice(duplicates, func(i, j int) bool { return duplicates[i] < duplicates[j] })

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Total:           c.total,
		Success:         c.success,
		Failed:          c.failed,
		ErrorRate:       ratio(c.failed, c.total),
		Statuses:        statuses,
		LatencyMs:       buildLatencySummary(c.latencies),
		UniqueOrderIDs:  len(c.orderIDs),
		DuplicateIDs:    duplicates,
	}
	if duration > 0 {
		result.RPS = float64(result.Total) / duration.Seconds()
	}
	return result
}

func parseConfig(args []string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)

	fs.StringVar(&cfg.baseURL, "url", "http://localhost:8080/api", "gateway API base URL")
	fs.IntVar(&cfg.total, "total", 400, "total orders to create")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.Int64Var(&cfg.itemID, "item-id", 1, "catalog item id to order")
	fs.Int64Var(&cfg.qty, "qty", 1, "quantity per order")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	switch {
	case cfg.baseURL == "":
		return cfg, errors.New("url is required")
	case cfg.total <= 0:
		return cfg, errors.New("total must be > 0")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.itemID <= 0:
		return cfg, errors.New("item-id must be > 0")
	case cfg.qty <= 0:
		return cfg, errors.New("qty must be > 0")
	}
	return cfg, nil
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	result, err := runLoad(context.Background(), cfg, &http.Client{})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test aborted: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.Failed > 0 || len(result.DuplicateIDs) > 0 {
		os.Exit(1)
	}
}

// runLoad создаёт cfg.total заказов не более чем в cfg.concurrency потоков.
// Неудачные запросы учитываются в отчёте и не прерывают прогон.
func runLoad(ctx context.Context, cfg config, client *http.Client) (report, error) {
	col := newCollector()
	startedAt := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)
	for i := 0; i < cfg.total; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			createOrder(gctx, client, cfg, col)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report{}, err
	}
	if err := ctx.Err(); err != nil {
		return report{}, err
	}

	return col.buildReport(startedAt, time.Since(startedAt)), nil
}

func createOrder(ctx context.Context, client *http.Client, cfg config, col *collector) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	body, _ := json.Marshal(map[string]int64{"item_id": cfg.itemID, "qty": cfg.qty})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		col.record(time.Since(start), 0, 0)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		col.record(time.Since(start), 0, 0)
		return
	}
	defer resp.Body.Close()

	var created struct {
		ID int64 `json:"id"`
	}
	if resp.StatusCode == http.StatusCreated {
		_ = json.NewDecoder(resp.Body).Decode(&created)
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	col.record(time.Since(start), resp.StatusCode, created.ID)
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(w, "Load test summary")
	_, _ = fmt.Fprintf(w, "url=%s item=%d qty=%d total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.baseURL,
		cfg.itemID,
		cfg.qty,
		result.Total,
		result.Success,
		result.Failed,
		result.ErrorRate,
	)
	_, _ = fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(w, "latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.LatencyMs.Min,
		result.LatencyMs.Avg,
		result.LatencyMs.P50,
		result.LatencyMs.P95,
		result.LatencyMs.P99,
		result.LatencyMs.Max,
	)

	statuses := make([]string, 0, len(result.Statuses))
	for status := range result.Statuses {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		_, _ = fmt.Fprintf(w, "status %s: %d\n", status, result.Statuses[status])
	}

	_, _ = fmt.Fprintf(w, "unique order ids=%d duplicates=%d\n", result.UniqueOrderIDs, len(result.DuplicateIDs))
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
