package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/config"
	"github.com/merchantlens/merchantlens/internal/logging"
	"github.com/merchantlens/merchantlens/internal/services"
	"github.com/merchantlens/merchantlens/internal/store"
)

// BenchmarkConfig holds benchmark configuration
type BenchmarkConfig struct {
	Tenants    int
	Categories int
	Days       int
	Workers    int
	Rounds     int
	Seed       int64
	Verify     bool
	Output     string
}

const (
	opAnomalies = "anomalies"
	opForecast  = "forecast"
	opInsights  = "insights"
)

var operations = []string{opAnomalies, opForecast, opInsights}

// Metrics holds latencies and counters for one operation
type Metrics struct {
	Latencies  []float64
	Success    int64
	Errors     int64
	FirstError string
	mu         sync.Mutex
}

func (m *Metrics) record(latency time.Duration, err error) {
	if err != nil {
		atomic.AddInt64(&m.Errors, 1)
		m.mu.Lock()
		if m.FirstError == "" {
			m.FirstError = err.Error()
		}
		m.mu.Unlock()
		return
	}
	atomic.AddInt64(&m.Success, 1)
	m.mu.Lock()
	m.Latencies = append(m.Latencies, float64(latency.Microseconds())/1000)
	m.mu.Unlock()
}

// Result represents benchmark results
type Result struct {
	Operation  string        `json:"operation"`
	TotalOps   int64         `json:"total_ops"`
	SuccessOps int64         `json:"success_ops"`
	ErrorOps   int64         `json:"error_ops"`
	Duration   time.Duration `json:"duration_ns"`
	Throughput float64       `json:"throughput"`  // ops/sec
	AvgLatency float64       `json:"avg_latency"` // ms
	MinLatency float64       `json:"min_latency"` // ms
	MaxLatency float64       `json:"max_latency"` // ms
	P50Latency float64       `json:"p50_latency"` // ms
	P95Latency float64       `json:"p95_latency"` // ms
	P99Latency float64       `json:"p99_latency"` // ms
	ErrorMsg   string        `json:"error,omitempty"`
}

type job struct {
	op         string
	merchantID string
}

func main() {
	cfg := BenchmarkConfig{}
	flag.IntVar(&cfg.Tenants, "tenants", 200, "Number of synthetic merchants")
	flag.IntVar(&cfg.Categories, "categories", 8, "Number of merchant categories")
	flag.IntVar(&cfg.Days, "days", 120, "Days of history per merchant")
	flag.IntVar(&cfg.Workers, "workers", runtime.NumCPU(), "Number of concurrent workers")
	flag.IntVar(&cfg.Rounds, "rounds", 3, "Passes over every merchant and operation")
	flag.Int64Var(&cfg.Seed, "seed", 42, "Random seed for the synthetic data")
	flag.BoolVar(&cfg.Verify, "verify", true, "Check that concurrent runs reproduce sequential output")
	flag.StringVar(&cfg.Output, "out", "", "Write results as JSON to this file")
	flag.Parse()

	if cfg.Tenants < 1 || cfg.Categories < 1 || cfg.Workers < 1 || cfg.Rounds < 1 || cfg.Days < 1 {
		fmt.Fprintln(os.Stderr, "tenants, categories, days, workers and rounds must be positive")
		os.Exit(2)
	}

	fmt.Printf("=== MerchantLens Benchmark Tool ===\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Tenants:    %d\n", cfg.Tenants)
	fmt.Printf("  Categories: %d\n", cfg.Categories)
	fmt.Printf("  Days:       %d\n", cfg.Days)
	fmt.Printf("  Workers:    %d\n", cfg.Workers)
	fmt.Printf("  Rounds:     %d\n", cfg.Rounds)
	fmt.Printf("  Seed:       %d\n", cfg.Seed)
	fmt.Printf("\n")

	now := time.Now().UTC()
	metricStore := store.NewMemoryStore()
	ids := generateTenants(metricStore, cfg, now)
	fmt.Printf("Generated %d merchants with %d days of history\n", len(ids), cfg.Days)

	analyticsCfg := config.DefaultConfig().Analytics
	analyticsCfg.Timezone = "UTC"
	logger := logging.NewWithWriter(os.Stderr, zerolog.WarnLevel)
	svc, err := services.NewAnalyticsService(logger, metricStore, nil, analyticsCfg,
		services.WithClock(func() time.Time { return now }))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create analytics service: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	metrics, elapsed := runBenchmark(ctx, svc, ids, cfg)

	results := make([]Result, 0, len(operations))
	fmt.Printf("\n=== Benchmark Results ===\n\n")
	for _, op := range operations {
		r := calculateResult(op, metrics[op], elapsed)
		results = append(results, r)
		displayResult(r)
		fmt.Println()
	}

	if cfg.Output != "" {
		if err := saveResults(cfg.Output, results); err != nil {
			fmt.Printf("Failed to save results: %v\n", err)
		} else {
			fmt.Printf("Results saved to: %s\n", cfg.Output)
		}
	}

	if cfg.Verify {
		mismatches, err := verify(ctx, svc, ids, cfg.Workers)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Verification failed: %v\n", err)
			os.Exit(1)
		}
		if mismatches > 0 {
			fmt.Printf("Verification: %d outputs differ between sequential and concurrent runs\n", mismatches)
			os.Exit(1)
		}
		fmt.Printf("Verification: concurrent output matches sequential output for %d merchants\n", len(ids))
	}
}

// generateTenants stores synthetic daily metrics: a per-merchant level and
// trend, a weekly cycle, noise, and an occasional spike or drop near the end.
func generateTenants(s *store.MemoryStore, cfg BenchmarkConfig, now time.Time) []string {
	rng := rand.New(rand.NewSource(cfg.Seed))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	ids := make([]string, cfg.Tenants)
	for i := range ids {
		id := fmt.Sprintf("tenant-%04d", i)
		ids[i] = id
		s.PutMerchant(analytics.Merchant{
			ID:       id,
			Name:     fmt.Sprintf("Merchant %d", i),
			Category: fmt.Sprintf("category-%d", i%cfg.Categories),
		})

		level := 500 + rng.Float64()*4500
		trend := (rng.Float64() - 0.4) * level / 200
		weekly := rng.Float64() * 0.2
		ticket := 20 + rng.Float64()*60
		shockDay := -1
		shock := 1.0
		if rng.Float64() < 0.3 {
			shockDay = cfg.Days - 1 - rng.Intn(7)
			shock = 3.0
			if rng.Intn(2) == 0 {
				shock = 0.2
			}
		}

		records := make([]analytics.DailyRecord, 0, cfg.Days)
		for d := 0; d < cfg.Days; d++ {
			date := today.AddDate(0, 0, d-cfg.Days+1)
			revenue := level + trend*float64(d)
			revenue *= 1 + weekly*math.Sin(2*math.Pi*float64(date.Weekday())/7)
			revenue *= 1 + rng.NormFloat64()*0.05
			if d == shockDay {
				revenue *= shock
			}
			revenue = math.Max(revenue, 0)

			transactions := math.Round(revenue / ticket)
			rec := analytics.DailyRecord{
				Date:         date,
				Revenue:      analytics.Float(math.Round(revenue*100) / 100),
				Transactions: analytics.Float(transactions),
				Cashback:     analytics.Float(math.Round(revenue*2) / 100),
			}
			// Customer counts are missing on some days
			if rng.Float64() > 0.05 {
				rec.Customers = analytics.Float(math.Round(transactions * 0.8))
			}
			records = append(records, rec)
		}
		s.PutRecords(id, records...)
	}
	return ids
}

func runBenchmark(ctx context.Context, svc *services.AnalyticsService, ids []string, cfg BenchmarkConfig) (map[string]*Metrics, time.Duration) {
	metrics := make(map[string]*Metrics, len(operations))
	for _, op := range operations {
		metrics[op] = &Metrics{Latencies: make([]float64, 0, len(ids)*cfg.Rounds)}
	}

	jobs := make(chan job, cfg.Workers*2)
	var wg sync.WaitGroup
	startTime := time.Now()

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				start := time.Now()
				_, err := execute(ctx, svc, j)
				metrics[j.op].record(time.Since(start), err)
			}
		}()
	}

	for round := 0; round < cfg.Rounds; round++ {
		for _, id := range ids {
			for _, op := range operations {
				jobs <- job{op: op, merchantID: id}
			}
		}
	}
	close(jobs)
	wg.Wait()

	return metrics, time.Since(startTime)
}

func execute(ctx context.Context, svc *services.AnalyticsService, j job) (interface{}, error) {
	switch j.op {
	case opAnomalies:
		return svc.DetectAnomalies(ctx, &services.AnomalyRequest{MerchantID: j.merchantID})
	case opForecast:
		return svc.Forecast(ctx, &services.ForecastRequest{MerchantID: j.merchantID, Metric: analytics.MetricRevenue})
	case opInsights:
		return svc.Insights(ctx, &services.InsightsRequest{MerchantID: j.merchantID})
	default:
		return nil, fmt.Errorf("unknown operation %q", j.op)
	}
}

// verify runs every job sequentially, then concurrently, and counts outputs
// that differ. Errors are compared by code so an expected failure still matches.
func verify(ctx context.Context, svc *services.AnalyticsService, ids []string, workers int) (int, error) {
	var all []job
	for _, id := range ids {
		for _, op := range operations {
			all = append(all, job{op: op, merchantID: id})
		}
	}

	sequential := make([]string, len(all))
	for i, j := range all {
		out, err := snapshot(ctx, svc, j)
		if err != nil {
			return 0, err
		}
		sequential[i] = out
	}

	concurrent := make([]string, len(all))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, j := range all {
		i, j := i, j
		g.Go(func() error {
			out, err := snapshot(gctx, svc, j)
			concurrent[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	mismatches := 0
	for i := range all {
		if sequential[i] != concurrent[i] {
			mismatches++
			fmt.Printf("  mismatch: %s %s\n", all[i].op, all[i].merchantID)
		}
	}
	return mismatches, nil
}

func snapshot(ctx context.Context, svc *services.AnalyticsService, j job) (string, error) {
	feed, err := execute(ctx, svc, j)
	if err != nil {
		var svcErr *services.ServiceError
		if errors.As(err, &svcErr) && svcErr.Code != services.ErrCodeQueryFailed {
			return "error:" + svcErr.Code, nil
		}
		return "", err
	}
	data, err := json.Marshal(feed)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func calculateResult(operation string, m *Metrics, duration time.Duration) Result {
	result := Result{
		Operation:  operation,
		TotalOps:   m.Success + m.Errors,
		SuccessOps: m.Success,
		ErrorOps:   m.Errors,
		Duration:   duration,
		ErrorMsg:   m.FirstError,
	}
	if len(m.Latencies) == 0 {
		return result
	}

	data := stats.Float64Data(m.Latencies)
	result.Throughput = float64(m.Success) / duration.Seconds()
	result.MinLatency, _ = data.Min()
	result.MaxLatency, _ = data.Max()
	result.AvgLatency, _ = data.Mean()
	result.P50Latency, _ = data.Percentile(50)
	result.P95Latency, _ = data.Percentile(95)
	result.P99Latency, _ = data.Percentile(99)
	return result
}

func displayResult(r Result) {
	fmt.Printf("=== %s ===\n", r.Operation)
	fmt.Printf("Total Operations: %d\n", r.TotalOps)
	if r.TotalOps > 0 {
		fmt.Printf("Success:          %d (%.2f%%)\n", r.SuccessOps, float64(r.SuccessOps)/float64(r.TotalOps)*100)
		fmt.Printf("Errors:           %d (%.2f%%)\n", r.ErrorOps, float64(r.ErrorOps)/float64(r.TotalOps)*100)
	}
	fmt.Printf("Duration:         %s\n", r.Duration.Round(time.Millisecond))
	fmt.Printf("Throughput:       %.2f ops/sec\n", r.Throughput)
	if r.ErrorMsg != "" {
		fmt.Printf("First Error:      %s\n", r.ErrorMsg)
	}
	fmt.Printf("\nLatency (ms):\n")
	fmt.Printf("  Min:  %.2f\n", r.MinLatency)
	fmt.Printf("  Avg:  %.2f\n", r.AvgLatency)
	fmt.Printf("  P50:  %.2f\n", r.P50Latency)
	fmt.Printf("  P95:  %.2f\n", r.P95Latency)
	fmt.Printf("  P99:  %.2f\n", r.P99Latency)
	fmt.Printf("  Max:  %.2f\n", r.MaxLatency)
}

func saveResults(path string, results []Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Timestamp string   `json:"timestamp"`
		Results   []Result `json:"results"`
	}{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Results:   results,
	})
}
