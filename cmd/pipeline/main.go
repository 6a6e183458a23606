package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salespipe/internal/batch"
	"salespipe/internal/config"
	"salespipe/internal/deadletter"
	"salespipe/internal/manifest"
	"salespipe/internal/metrics"
	"salespipe/internal/objstore"
	"salespipe/internal/pipeline"
	"salespipe/internal/queue"
	"salespipe/internal/warehouse"
)

// Config holds CLI flags for the pipeline runner.
type Config struct {
	Bootstrap   string
	Topic       string
	Group       string
	MaxMessages int

	BucketDir        string
	WarehouseBackend string // memory|pebble|badger
	WarehouseDir     string

	ManifestSink   string // file|kafka|both
	ManifestSource string // file|kafka
	ManifestDir    string
	TopicManifest  string

	DeadLetterSink  string // file|kafka|both
	DeadLetterDir   string
	TopicDeadLetter string

	IntervalSec int    // 0 runs once and exits
	LogicalTime string // explicit logical time for a single run
	HTTPAddr    string

	RawTable     string
	SummaryTable string
}

func main() {
	cfg := readFlags()
	if err := run(cfg); err != nil {
		log.Fatalf("pipeline failed: %v", err)
	}
}

func readFlags() Config {
	env := config.FromEnv()
	var cfg Config
	flag.StringVar(&cfg.Bootstrap, "bootstrap", env.Bootstrap, "kafka bootstrap servers")
	flag.StringVar(&cfg.Topic, "topic", env.Topic, "sales events topic")
	flag.StringVar(&cfg.Group, "group", env.Group, "consumer group id (subscription)")
	flag.IntVar(&cfg.MaxMessages, "max-messages", pipeline.DefaultMaxMessages, "max messages per pull")
	flag.StringVar(&cfg.BucketDir, "bucket-dir", env.Bucket, "object store root directory")
	flag.StringVar(&cfg.WarehouseBackend, "warehouse", "pebble", "warehouse backend: memory|pebble|badger")
	flag.StringVar(&cfg.WarehouseDir, "warehouse-dir", "./data/warehouse", "warehouse data directory")
	flag.StringVar(&cfg.ManifestSink, "manifest-sink", "file", "manifest sink: file|kafka|both")
	flag.StringVar(&cfg.ManifestSource, "manifest-source", "file", "manifest source for last-run age: file|kafka")
	flag.StringVar(&cfg.ManifestDir, "manifest-dir", "./data/manifests", "manifest directory for file sink")
	flag.StringVar(&cfg.TopicManifest, "topic-manifest", "sales.pipeline-runs", "kafka topic for run manifests (compacted)")
	flag.StringVar(&cfg.DeadLetterSink, "deadletter-sink", "file", "dead-letter sink: file|kafka|both")
	flag.StringVar(&cfg.DeadLetterDir, "deadletter-dir", "./data/deadletter", "dead-letter directory for file sink")
	flag.StringVar(&cfg.TopicDeadLetter, "topic-deadletter", "sales.deadletter", "kafka topic for dead letters")
	flag.IntVar(&cfg.IntervalSec, "interval", 0, "run interval seconds; 0 runs once and exits")
	flag.StringVar(&cfg.LogicalTime, "logical-time", "", "logical execution time for a single run (2006-01-02T15:04:05), default now")
	flag.StringVar(&cfg.HTTPAddr, "http", ":8081", "http listen for /metrics")
	flag.Parse()
	cfg.RawTable = env.RawTable()
	cfg.SummaryTable = env.SummaryTable()
	return cfg
}

func run(cfg Config) error {
	log.Printf("starting pipeline topic=%s group=%s max-messages=%d warehouse=%s",
		cfg.Topic, cfg.Group, cfg.MaxMessages, cfg.WarehouseBackend)
	log.Printf("warehouse tables raw=%s summary=%s", cfg.RawTable, cfg.SummaryTable)

	mreg := metrics.NewRegistry()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", mreg.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		_ = http.ListenAndServe(cfg.HTTPAddr, mux)
	}()

	// Warehouse backend
	var store warehouse.Store
	switch cfg.WarehouseBackend {
	case "pebble":
		ps, err := warehouse.NewPebbleStore(cfg.WarehouseDir)
		if err != nil {
			return fmt.Errorf("init pebble: %w", err)
		}
		store = ps
	case "badger":
		bs, err := warehouse.NewBadgerStore(cfg.WarehouseDir)
		if err != nil {
			return fmt.Errorf("init badger: %w", err)
		}
		store = bs
	default:
		store = warehouse.NewInMemoryStore()
	}
	defer store.Close()

	objects := objstore.NewFilesystemStore(cfg.BucketDir)

	sub, err := queue.NewKafkaSubscription(cfg.Bootstrap, cfg.Topic, cfg.Group)
	if err != nil {
		return fmt.Errorf("subscription: %w", err)
	}
	defer sub.Close()

	// Dead-letter sink (file by default; kafka optional)
	var dl deadletter.Writer
	if cfg.DeadLetterSink == "file" || cfg.DeadLetterSink == "both" || cfg.DeadLetterSink == "" {
		fw, err := deadletter.NewFileWriter(cfg.DeadLetterDir, "deadletter.jsonl")
		if err != nil {
			return fmt.Errorf("init dead-letter file: %w", err)
		}
		dl = fw
	}
	if cfg.DeadLetterSink == "kafka" || cfg.DeadLetterSink == "both" {
		kw := deadletter.NewKafkaWriter(cfg.Bootstrap, cfg.TopicDeadLetter)
		if dl == nil {
			dl = kw
		} else {
			dl = deadletter.NewMultiWriter(dl, kw)
		}
	}

	// Run manifest sink and reader
	maniFS := manifest.NewFilesystemManifest(cfg.ManifestDir)
	var pubs manifest.Publisher = maniFS
	var reader manifest.Reader = maniFS
	if cfg.ManifestSink == "kafka" || cfg.ManifestSink == "both" {
		maniK := manifest.NewKafkaManifest(cfg.Bootstrap, cfg.TopicManifest, "sales-pipeline-run-latest")
		if cfg.ManifestSink == "kafka" {
			pubs = maniK
		} else {
			pubs = manifest.MultiPublisher(maniFS, maniK)
		}
	}
	if cfg.ManifestSource == "kafka" {
		reader = manifest.NewKafkaReader([]string{cfg.Bootstrap}, cfg.TopicManifest, "sales-pipeline-run-latest")
	}
	if m, err := reader.ReadLatest(); err == nil {
		age := time.Since(time.Unix(m.CompletedAtEpochSecond, 0))
		mreg.LastRunAgeSec.Set(age.Seconds())
		log.Printf("last run %s loaded %d rows %.0fs ago", m.RunID, m.LoadedRows, age.Seconds())
	}

	orch := pipeline.NewOrchestrator(
		batch.NewExtractor(sub, dl),
		batch.NewWriter(objects),
		warehouse.NewLoader(objects, store),
		warehouse.NewAggregator(store),
		pubs,
		mreg,
		cfg.MaxMessages,
	)
	orch.SetTables(cfg.RawTable, cfg.SummaryTable)

	if cfg.IntervalSec <= 0 {
		logical := time.Now().UTC()
		if cfg.LogicalTime != "" {
			t, err := time.Parse("2006-01-02T15:04:05", cfg.LogicalTime)
			if err != nil {
				return fmt.Errorf("parse logical-time: %w", err)
			}
			logical = t
		}
		_, err := orch.Run(context.Background(), logical)
		return err
	}

	// Scheduled mode. Runs never overlap: ticks are consumed one at a
	// time on this goroutine.
	ticker := time.NewTicker(time.Duration(cfg.IntervalSec) * time.Second)
	defer ticker.Stop()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case tick := <-ticker.C:
			if _, err := orch.Run(context.Background(), tick.UTC()); err != nil {
				// The run is lost; the next tick starts fresh.
				log.Printf("run failed: %v", err)
				continue
			}
			mreg.LastRunAgeSec.Set(0)
		case <-sig:
			log.Printf("pipeline stopping")
			return nil
		}
	}
}
