package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/genc-murat/mallocinfo"
	"github.com/genc-murat/mallocinfo/internal/app"
	"github.com/genc-murat/mallocinfo/internal/config"
	"github.com/genc-murat/mallocinfo/internal/storage"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "path to a YAML config file")
		format  = flag.String("format", "", "output format: text or json (overrides config)")
		watch   = flag.Bool("watch", false, "sample repeatedly at the configured interval")
		record  = flag.Bool("record", false, "append each sample to the snapshot log")
		query   = flag.String("query", "", "print a gjson path from the newest recorded snapshot and exit")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			log.Fatal(err)
		}
	}
	if *format != "" {
		cfg.Sampler.Format = *format
		if err := cfg.Validate(); err != nil {
			log.Fatal(err)
		}
	}

	if *query != "" {
		res, err := storage.Query(cfg.Snapshot.Path, *query)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(res.String())
		return
	}

	if !mallocinfo.Supported() {
		log.Fatal("malloc_info is not available on this platform")
	}

	var rec app.Recorder
	if *record {
		snap, err := storage.NewSnapshotLog(cfg.Snapshot.Path, cfg.Snapshot.SyncInterval)
		if err != nil {
			log.Fatal(err)
		}
		defer snap.Close()
		rec = snap
	}

	sampler := app.NewSampler(mallocinfo.MallocInfo, rec, os.Stdout, cfg.Sampler)

	if !*watch {
		if err := sampler.Once(); err != nil {
			log.Fatal(err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Printf("sampling malloc_info every %s", cfg.Sampler.Interval)
	if err := sampler.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
