package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mirkobrombin/go-lockon/v1/intern"
	"github.com/mirkobrombin/go-lockon/v1/lockon"
)

var (
	concurrency = flag.Int("c", 50, "Concurrency")
	requests    = flag.Int("n", 100000, "Requests")
	keys        = flag.Int("k", 64, "Distinct monitor values")
	hold        = flag.Duration("hold", 0, "Time spent inside each guarded call")
	target      = flag.String("target", "all", "Target: mutex, registry, decorate, interceptor, interceptor-path")
)

type order struct {
	ID       string
	customer struct {
		region string
	}
}

func main() {
	flag.Parse()
	if *concurrency <= 0 || *requests < *concurrency || *keys <= 0 {
		log.Fatalf("invalid flags: need c > 0, n >= c and k > 0")
	}

	monitors := make([]string, *keys)
	for i := range monitors {
		monitors[i] = uuid.NewString()
	}

	targets := strings.Split(*target, ",")
	if *target == "all" {
		targets = []string{"mutex", "registry", "decorate", "interceptor", "interceptor-path"}
	}

	fmt.Printf("| %-17s | %-10s | %-12s | %-12s |\n", "Target", "Ops/sec", "Avg Latency", "P99 Latency")
	fmt.Println("|:---|:---|:---|:---|")

	for _, t := range targets {
		if err := runBenchmark(strings.TrimSpace(t), monitors); err != nil {
			log.Printf("%s: %v", t, err)
		}
	}
}

func work() {
	if *hold > 0 {
		time.Sleep(*hold)
	}
}

func runBenchmark(name string, monitors []string) error {
	var callFn func(ctx context.Context, i int) error

	switch name {
	case "mutex":
		// One process-wide lock: the serialized baseline.
		var mu sync.Mutex
		callFn = func(ctx context.Context, i int) error {
			mu.Lock()
			work()
			mu.Unlock()
			return nil
		}

	case "registry":
		reg := intern.NewRegistry[string]()
		callFn = func(ctx context.Context, i int) error {
			return reg.Do(monitors[i%len(monitors)], func() error {
				work()
				return nil
			})
		}

	case "decorate":
		op := lockon.Decorate(intern.NewRegistry[string](), func(o order) string { return o.ID }, func(ctx context.Context, o order) (struct{}, error) {
			work()
			return struct{}{}, nil
		})
		callFn = func(ctx context.Context, i int) error {
			_, err := op(ctx, order{ID: monitors[i%len(monitors)]})
			return err
		}

	case "interceptor", "interceptor-path":
		in := lockon.New(lockon.WithRegistry(intern.NewRegistry[any]()))
		marker := lockon.On("")
		if name == "interceptor-path" {
			marker = lockon.On("customer.region")
		}
		op := in.Wrap([]*lockon.Marker{nil, marker}, func(ctx context.Context, args ...any) (any, error) {
			work()
			return nil, nil
		})
		callFn = func(ctx context.Context, i int) error {
			o := order{ID: monitors[i%len(monitors)]}
			o.customer.region = o.ID
			var arg any = o.ID
			if name == "interceptor-path" {
				arg = o
			}
			_, err := op(ctx, i, arg)
			return err
		}

	default:
		return fmt.Errorf("unknown target")
	}

	var ops int64
	totalReqs := *requests
	chunk := totalReqs / *concurrency
	latencies := make([]int64, chunk*(*concurrency))

	g, ctx := errgroup.WithContext(context.Background())
	start := time.Now()
	for w := 0; w < *concurrency; w++ {
		offset := w * chunk
		g.Go(func() error {
			for j := 0; j < chunk; j++ {
				reqStart := time.Now()
				if err := callFn(ctx, offset+j); err != nil {
					return err
				}
				latencies[offset+j] = time.Since(reqStart).Nanoseconds()
				atomic.AddInt64(&ops, 1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Printf("| %-17s | %-10s | %-12s | %-12s |\n", name, "ERROR", "-", "-")
		return err
	}
	elapsed := time.Since(start)

	throughput := float64(ops) / elapsed.Seconds()
	avgLat := float64(elapsed.Nanoseconds()) / float64(ops)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	p99Idx := int(float64(len(latencies)) * 0.99)
	if p99Idx >= len(latencies) {
		p99Idx = len(latencies) - 1
	}

	fmt.Printf("| %-17s | %-10.0f | %-12.0f | %-12d |\n", name, throughput, avgLat, latencies[p99Idx])
	return nil
}
