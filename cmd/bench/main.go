// Command bench runs a synthetic block workload against the cache and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/blockcache/cache"
	"github.com/IvanBrykalov/blockcache/device"
	"github.com/IvanBrykalov/blockcache/device/objstore"
	"github.com/IvanBrykalov/blockcache/internal/codec"
	pmet "github.com/IvanBrykalov/blockcache/metrics/prom"
	"github.com/IvanBrykalov/blockcache/policy/twoq"
)

type config struct {
	slots, shards, bsize int
	policy               string
	workers              int
	duration             time.Duration
	keys                 uint64
	zipfS, zipfV         float64
	seed                 int64
	writePct, pinPct     int

	device       string
	dir          string
	endpoint     string
	bucket       string
	accessKey    string
	secretKey    string
	compress     string
	iops, qdepth int
	verbose      bool
	pprofAddr    string
	metricsAddr  string
}

func main() {
	var cfg config
	// ---- Flags ----
	flag.IntVar(&cfg.slots, "slots", 1024, "number of block buffers")
	flag.IntVar(&cfg.shards, "shards", 0, "number of shards (0 = 17, otherwise rounded up to a prime)")
	flag.IntVar(&cfg.bsize, "bsize", device.DefaultBlockSize, "block size in bytes")
	flag.StringVar(&cfg.policy, "policy", "lru", "eviction policy: lru | 2q")

	flag.IntVar(&cfg.workers, "workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
	flag.DurationVar(&cfg.duration, "duration", 10*time.Second, "benchmark duration")
	flag.Uint64Var(&cfg.keys, "keys", 16_384, "number of distinct blocks")
	flag.Float64Var(&cfg.zipfS, "zipf_s", 1.1, "Zipf s > 1 (skew)")
	flag.Float64Var(&cfg.zipfV, "zipf_v", 1.0, "Zipf v")
	flag.Int64Var(&cfg.seed, "seed", time.Now().UnixNano(), "random seed")
	flag.IntVar(&cfg.writePct, "writes", 10, "percentage of acquisitions that write the block back [0..100]")
	flag.IntVar(&cfg.pinPct, "pins", 1, "percentage of acquisitions that pin the block [0..100]")

	flag.StringVar(&cfg.device, "device", "mem", "backing device: mem | file | minio")
	flag.StringVar(&cfg.dir, "dir", "", "directory for the file device (default: temp dir)")
	flag.StringVar(&cfg.endpoint, "endpoint", "localhost:9000", "S3 endpoint for the minio device")
	flag.StringVar(&cfg.bucket, "bucket", "blockcache-bench", "bucket for the minio device")
	flag.StringVar(&cfg.accessKey, "access_key", "minioadmin", "access key for the minio device")
	flag.StringVar(&cfg.secretKey, "secret_key", "minioadmin", "secret key for the minio device")
	flag.StringVar(&cfg.compress, "compress", "none", "block compression for the minio device: none | lz4 | zstd")
	flag.IntVar(&cfg.iops, "iops", 0, "device IOPS limit (0 = unlimited)")
	flag.IntVar(&cfg.qdepth, "qdepth", 0, "device queue depth (0 = unbounded)")

	flag.BoolVar(&cfg.verbose, "v", false, "debug logging from the cache")
	flag.StringVar(&cfg.pprofAddr, "pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
	flag.StringVar(&cfg.metricsAddr, "http", ":8080", "serve Prometheus metrics at addr")
	flag.Parse()

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

// run executes the benchmark. Errors are returned rather than fatal so
// that deferred cleanup of the cache and device always runs.
func run(cfg config) error {
	if cfg.workers <= 0 {
		cfg.workers = 1
	}
	// Each worker holds one buffer and at most one pin.
	if cfg.slots < 2*cfg.workers {
		return fmt.Errorf("slots=%d cannot serve %d workers; need at least %d", cfg.slots, cfg.workers, 2*cfg.workers)
	}

	// ---- pprof server (on DefaultServeMux) ----
	if cfg.pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", cfg.pprofAddr)
			log.Println(http.ListenAndServe(cfg.pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "blockcache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", cfg.metricsAddr)
		log.Println(http.ListenAndServe(cfg.metricsAddr, nil))
	}()

	// ---- Build device and cache ----
	ctx := context.Background()
	dev, cleanup, err := openDevice(ctx, cfg)
	if err != nil {
		return fmt.Errorf("device: %w", err)
	}
	defer cleanup()
	if cfg.iops > 0 || cfg.qdepth > 0 {
		dev = device.NewThrottle(dev, device.ThrottleConfig{IOPS: cfg.iops, QueueDepth: int64(cfg.qdepth)})
	}

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	opt := cache.Options{
		Slots:   cfg.slots,
		Shards:  cfg.shards,
		Device:  dev,
		Metrics: metrics,
		Logger:  slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
	switch cfg.policy {
	case "lru":
		// nil => LRU by default
	case "2q":
		opt.Policy = twoq.New(25)
	default:
		return fmt.Errorf("unknown policy: %q (use lru or 2q)", cfg.policy)
	}
	c := cache.New(opt)
	defer func() {
		if err := c.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	// ---- Load generation ----
	var total, writes, pins atomic.Uint64
	runCtx, cancel := context.WithTimeout(ctx, cfg.duration)
	defer cancel()

	start := time.Now()
	g, gctx := errgroup.WithContext(runCtx)
	for w := 0; w < cfg.workers; w++ {
		id := w
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			r := rand.New(rand.NewSource(cfg.seed + int64(id)*9973))
			zipf := rand.NewZipf(r, cfg.zipfS, cfg.zipfV, cfg.keys-1)

			var pin *cache.Pin
			defer func() {
				if pin != nil {
					c.Unpin(pin)
				}
			}()
			for gctx.Err() == nil {
				blk := zipf.Uint64()
				b, err := c.Read(0, blk)
				if err != nil {
					return err
				}
				total.Add(1)
				if int(r.Int31n(100)) < cfg.writePct {
					data := b.Data()
					binary.LittleEndian.PutUint64(data, binary.LittleEndian.Uint64(data)+1)
					if err := c.Write(b); err != nil {
						c.Release(b)
						return err
					}
					writes.Add(1)
				}
				if int(r.Int31n(100)) < cfg.pinPct {
					if pin != nil {
						c.Unpin(pin)
					}
					pin = c.Pin(b)
					pins.Add(1)
				}
				c.Release(b)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("workload: %w", err)
	}
	elapsed := time.Since(start)

	// ---- Report ----
	st := c.Stats()
	ops := total.Load()
	hitRate := 0.0
	if n := st.Hits + st.Misses; n > 0 {
		hitRate = float64(st.Hits) / float64(n) * 100
	}

	fmt.Printf("policy=%s device=%s slots=%d shards=%d bsize=%d workers=%d keys=%d dur=%v seed=%d\n",
		cfg.policy, cfg.device, st.Slots, st.Shards, cfg.bsize, cfg.workers, cfg.keys, elapsed, cfg.seed)
	fmt.Printf("ops=%d (%.0f ops/s)  writes=%d  pins=%d\n",
		ops, float64(ops)/elapsed.Seconds(), writes.Load(), pins.Load())
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%  evictions=%d  steals=%d\n",
		st.Hits, st.Misses, hitRate, st.Evictions, st.Steals)
	fmt.Printf("device reads=%d  device writes=%d\n", st.Reads, st.Writes)
	return nil
}

// openDevice builds the backing device selected by cfg.device.
func openDevice(ctx context.Context, cfg config) (device.Device, func(), error) {
	noop := func() {}
	switch cfg.device {
	case "mem":
		return device.NewMem(cfg.bsize), noop, nil

	case "file":
		dir := cfg.dir
		cleanup := noop
		if dir == "" {
			tmp, err := os.MkdirTemp("", "blockcache-bench-*")
			if err != nil {
				return nil, nil, err
			}
			dir = tmp
			cleanup = func() { _ = os.RemoveAll(tmp) }
		}
		f := device.NewFile(cfg.bsize)
		if err := f.Attach(0, filepath.Join(dir, "dev0.img")); err != nil {
			cleanup()
			return nil, nil, err
		}
		return f, cleanup, nil

	case "minio":
		ct, err := codec.Parse(cfg.compress)
		if err != nil {
			return nil, nil, err
		}
		client, err := minio.New(cfg.endpoint, &minio.Options{
			Creds: credentials.NewStaticV4(cfg.accessKey, cfg.secretKey, ""),
		})
		if err != nil {
			return nil, nil, err
		}
		ok, err := client.BucketExists(ctx, cfg.bucket)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			if err := client.MakeBucket(ctx, cfg.bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, nil, err
			}
		}
		d, err := objstore.Open(ctx, objstore.NewMinioStore(client, cfg.bucket), objstore.Options{
			Prefix:      fmt.Sprintf("bench-%d", cfg.seed),
			BlockSize:   cfg.bsize,
			Compression: ct,
		})
		if err != nil {
			return nil, nil, err
		}
		return d, noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown device %q (use mem, file or minio)", cfg.device)
	}
}
