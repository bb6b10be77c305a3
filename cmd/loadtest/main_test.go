package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]string{"-url", "http://gw:8080/api/", "-total", "10", "-concurrency", "2", "-timeout", "1s"})
	if err != nil {
		t.Fatalf("parseConfig error: %v", err)
	}
	if cfg.baseURL != "http://gw:8080/api" {
		t.Fatalf("trailing slash must be trimmed, got %s", cfg.baseURL)
	}
	if cfg.total != 10 || cfg.concurrency != 2 || cfg.timeout != time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.itemID != 1 || cfg.qty != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	invalid := [][]string{
		{"-total", "0"},
		{"-concurrency", "0"},
		{"-timeout", "0s"},
		{"-item-id", "0"},
		{"-qty", "-1"},
		{"-url", " "},
		{"-unknown"},
	}
	for _, args := range invalid {
		if _, err := parseConfig(args); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestCollectorAndReport(t *testing.T) {
	c := newCollector()
	c.record(10*time.Millisecond, http.StatusCreated, 1)
	c.record(20*time.Millisecond, http.StatusCreated, 2)
	c.record(30*time.Millisecond, http.StatusCreated, 2)
	c.record(40*time.Millisecond, http.StatusBadGateway, 0)
	c.record(50*time.Millisecond, 0, 0)

	r := c.buildReport(time.Now(), time.Second)
	if r.Total != 5 || r.Success != 3 || r.Failed != 2 {
		t.Fatalf("unexpected totals: %+v", r)
	}
	if r.Statuses["201"] != 3 || r.Statuses["502"] != 1 || r.Statuses["transport_error"] != 1 {
		t.Fatalf("unexpected statuses: %+v", r.Statuses)
	}
	if r.UniqueOrderIDs != 2 {
		t.Fatalf("expected 2 unique ids, got %d", r.UniqueOrderIDs)
	}
	if len(r.DuplicateIDs) != 1 || r.DuplicateIDs[0] != 2 {
		t.Fatalf("expected duplicate id 2, got %v", r.DuplicateIDs)
	}
	if r.RPS != 5 {
		t.Fatalf("unexpected rps: %f", r.RPS)
	}
	if r.LatencyMs.Max != 50 || r.LatencyMs.Min != 10 {
		t.Fatalf("unexpected latency: %+v", r.LatencyMs)
	}
}

func TestUtilityFunctions(t *testing.T) {
	if got := ratio(1, 4); got != 0.25 {
		t.Fatalf("ratio mismatch: %f", got)
	}
	if got := ratio(1, 0); got != 0 {
		t.Fatalf("ratio with zero total must be 0, got %f", got)
	}

	values := []float64{10, 20, 30, 40}
	summary := buildLatencySummary(values)
	if summary.P50 != 25 || summary.Max != 40 || summary.Avg != 25 {
		t.Fatalf("unexpected latency summary: %+v", summary)
	}
	if p := percentile([]float64{7}, 99); p != 7 {
		t.Fatalf("single value percentile: %f", p)
	}
	if s := buildLatencySummary(nil); s != (latencySummary{}) {
		t.Fatalf("empty summary expected, got %+v", s)
	}
}

func TestWriteJSONReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	sample := report{Total: 2, Success: 2, UniqueOrderIDs: 2}
	if err := writeJSONReport(path, sample); err != nil {
		t.Fatalf("writeJSONReport error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}

	var decoded report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.Total != 2 || decoded.UniqueOrderIDs != 2 {
		t.Fatalf("unexpected decoded report: %+v", decoded)
	}

	if err := writeJSONReport("../escape.json", sample); err == nil {
		t.Fatalf("expected error for path outside current directory")
	}
}

func TestRunLoad(t *testing.T) {
	var nextID atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/orders" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			ItemID int64 `json:"item_id"`
			Qty    int64 `json:"qty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID != 1 || req.Qty != 3 {
			http.Error(w, "bad request", http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": nextID.Add(1), "total": "597.00"})
	}))
	defer srv.Close()

	cfg := config{baseURL: srv.URL + "/api", total: 50, concurrency: 8, timeout: time.Second, itemID: 1, qty: 3}
	r, err := runLoad(context.Background(), cfg, srv.Client())
	if err != nil {
		t.Fatalf("runLoad error: %v", err)
	}
	if r.Total != 50 || r.Success != 50 || r.Failed != 0 {
		t.Fatalf("unexpected report: %+v", r)
	}
	if r.UniqueOrderIDs != 50 || len(r.DuplicateIDs) != 0 {
		t.Fatalf("expected 50 distinct ids, got %d (dups %v)", r.UniqueOrderIDs, r.DuplicateIDs)
	}
}

func TestRunLoad_FailuresAndDuplicates(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1)%2 == 0 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"detail":"Catalog lookup failed"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":7}`))
	}))
	defer srv.Close()

	cfg := config{baseURL: srv.URL, total: 10, concurrency: 1, timeout: time.Second, itemID: 1, qty: 1}
	r, err := runLoad(context.Background(), cfg, srv.Client())
	if err != nil {
		t.Fatalf("runLoad error: %v", err)
	}
	if r.Success != 5 || r.Failed != 5 {
		t.Fatalf("unexpected split: %+v", r)
	}
	if r.Statuses["502"] != 5 {
		t.Fatalf("expected 5 bad gateway responses, got %+v", r.Statuses)
	}
	if len(r.DuplicateIDs) != 1 || r.DuplicateIDs[0] != 7 {
		t.Fatalf("expected duplicate id 7, got %v", r.DuplicateIDs)
	}
}

func TestRunLoad_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := config{baseURL: "http://127.0.0.1:1", total: 5, concurrency: 1, timeout: time.Second, itemID: 1, qty: 1}
	if _, err := runLoad(ctx, cfg, &http.Client{}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	r := report{
		Total:          3,
		Success:        2,
		Failed:         1,
		ErrorRate:      1.0 / 3,
		Statuses:       map[string]int64{"201": 2, "404": 1},
		UniqueOrderIDs: 2,
	}
	printReport(&buf, r, config{baseURL: "http://gw/api", itemID: 1, qty: 2})

	out := buf.String()
	for _, want := range []string{"Load test summary", "success=2 failed=1", "status 201: 2", "status 404: 1", "unique order ids=2 duplicates=0"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report output missing %q:\n%s", want, out)
		}
	}
}
