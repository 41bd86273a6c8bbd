package kv

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/xdb/cmd/util"
	"github.com/ValentinKolb/xdb/lib/db"
	"github.com/ValentinKolb/xdb/lib/store"
	"github.com/ValentinKolb/xdb/rpc/client"
	"github.com/ValentinKolb/xdb/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for xDB servers",
		Args:    cobra.NoArgs,
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix      = "__test"
	perfLargeValueSize = 4000
	perfNumThreads     = 10
	perfKeySpread      = 100
	perfSkip           = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of connections to the server, every connection is shared by the benchmark goroutines assigned to it"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 4000, util.WrapString(fmt.Sprintf("How large the value for the set-large test should be (in bytes, at most %d)", db.MaxValueSize)))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSize = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfLargeValueSize <= 0 || perfLargeValueSize > db.MaxValueSize {
		return fmt.Errorf("large-value-size must be between 1 and %d", db.MaxValueSize)
	}
	if perfKeySpread <= 0 {
		return fmt.Errorf("keys must be positive")
	}
	if perfNumThreads <= 0 {
		return fmt.Errorf("threads must be positive")
	}
	return nil
}

// perfTest is one benchmark of the perf command
type perfTest struct {
	name string
	fill bool // set all keys before the benchmark
	op   func(s store.IStore, key string, i int) error
}

// perfResult is the outcome of one benchmark
type perfResult struct {
	name    string
	skipped bool
	bench   testing.BenchmarkResult
	latency gometrics.Timer
	errors  int64
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for xDB servers")

	config := util.GetClientConfig()
	index := util.GetDatabaseIndex()

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Database: %d\n", index)
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	// Open one connection per thread
	stores := make([]store.IStore, 0, perfNumThreads)
	defer func() {
		for _, s := range stores {
			_ = s.Close()
		}
	}()
	for i := 0; i < perfNumThreads; i++ {
		t, err := util.GetClientTransport(config.Transport)
		if err != nil {
			return err
		}
		s, err := client.NewRPCStore(index, *config, t)
		if err != nil {
			return fmt.Errorf("failed to open connection %d: %w", i, err)
		}
		stores = append(stores, s)
	}

	largeValue := strings.Repeat("x", perfLargeValueSize)

	tests := []perfTest{
		{name: "set", op: func(s store.IStore, key string, _ int) error {
			return s.Set(key, "test", 0)
		}},
		{name: "set-ttl", op: func(s store.IStore, key string, _ int) error {
			return s.Set(key, "test", 60)
		}},
		{name: "set-large", op: func(s store.IStore, key string, _ int) error {
			return s.Set(key, largeValue, 0)
		}},
		{name: "get", fill: true, op: func(s store.IStore, key string, _ int) error {
			_, _, err := s.Get(key)
			return err
		}},
		{name: "get-not", op: func(s store.IStore, key string, _ int) error {
			_, _, err := s.Get(key)
			return err
		}},
		{name: "delete", fill: true, op: func(s store.IStore, key string, _ int) error {
			_, err := s.Delete(key)
			return err
		}},
		{name: "mixed", fill: true, op: func(s store.IStore, key string, i int) error {
			var err error
			switch i % 3 {
			case 0:
				err = s.Set(key, "test", 0)
			case 1:
				_, _, err = s.Get(key)
			case 2:
				_, err = s.Delete(key)
			}
			return err
		}},
	}

	fmt.Println("starting tests...")

	results := make([]perfResult, 0, len(tests))
	for _, test := range tests {
		result := runPerfTest(test, stores)
		results = append(results, result)
		printResult(result)
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config, index); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runPerfTest runs one benchmark against the stores and records the latency of every request
func runPerfTest(test perfTest, stores []store.IStore) perfResult {
	result := perfResult{
		name:    test.name,
		latency: gometrics.NewTimer(),
	}
	defer result.latency.Stop()

	if shouldSkip(test.name) {
		result.skipped = true
		return result
	}

	var (
		errMu    sync.Mutex
		firstErr error
	)
	record := func(err error) {
		atomic.AddInt64(&result.errors, 1)
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	result.bench = testing.Benchmark(func(b *testing.B) {
		getKey, iter := getKeys(test.name)

		if test.fill {
			iter(func(k string) {
				if err := stores[0].Set(k, "test", 0); err != nil {
					record(err)
				}
			})
		}

		// cleanup
		b.Cleanup(func() {
			iter(func(k string) {
				_, _ = stores[0].Delete(k)
			})
		})

		var worker int64

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			s := stores[int(atomic.AddInt64(&worker, 1)-1)%len(stores)]
			counter := 0
			for pb.Next() {
				start := time.Now()
				err := test.op(s, getKey(counter), counter)
				result.latency.UpdateSince(start)
				if err != nil {
					record(err)
				}
				counter++
			}
		})
	})

	if firstErr != nil {
		fmt.Printf("(%s) - %d errors, first: %v\n", test.name, result.errors, firstErr)
	}
	return result
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// latencies returns the median and the 99th percentile of the request latency
func (r perfResult) latencies() (time.Duration, time.Duration) {
	ps := r.latency.Percentiles([]float64{0.5, 0.99})
	return time.Duration(ps[0]), time.Duration(ps[1])
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(result perfResult) {
	if result.skipped || result.bench.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", result.name)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	p50, p99 := result.latencies()

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50 %s\tp99 %s\n",
		result.name, nsPerOp, time.Duration(nsPerOp), opsPerSec, p50, p99)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []perfResult, config *common.ClientConfig, index int) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P99", "Errors", "Skipped",
		"Endpoint", "Transport", "TimeoutSec", "RetryCount", "Database",
		"Threads", "LargeValueSize", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, result := range results {
		var nsPerOp, opsPerSec float64
		var p50, p99 time.Duration
		skipped := result.skipped || result.bench.NsPerOp() == 0

		if !skipped {
			nsPerOp = math.Max(float64(result.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
			p50, p99 = result.latencies()
		}

		row := []string{
			result.name,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			p50.String(),
			p99.String(),
			strconv.FormatInt(result.errors, 10),
			strconv.FormatBool(skipped),
			config.Endpoint,
			config.Transport,
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			strconv.Itoa(index),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSize),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", result.name, err)
		}
	}

	return nil
}
