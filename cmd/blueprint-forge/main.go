// Package main 蓝图生成器入口
//
// 用法: blueprint-forge [--max-attempts N] <language> <version> <package-manager>
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"blueprint-forge/internal/config"
	"blueprint-forge/internal/generator"
	"blueprint-forge/internal/harness"
	"blueprint-forge/internal/metrics"
	"blueprint-forge/internal/model"
	"blueprint-forge/internal/orchestrator"
	"blueprint-forge/internal/repository"
	"blueprint-forge/internal/runlock"
	"blueprint-forge/internal/storage"
	"blueprint-forge/pkg/docker"
	"blueprint-forge/pkg/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	maxAttempts := flag.Int("max-attempts", 0, "Maximum number of attempts (default from config)")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) != 3 {
		usage()
		return 1
	}

	descriptor, err := model.NewDescriptor(args[0], args[1], args[2])
	if err != nil {
		log.Printf("Invalid technology descriptor: %v", err)
		return 1
	}

	cfg := config.Load()
	if *maxAttempts <= 0 {
		*maxAttempts = cfg.MaxAttempts
	}

	log.Println("Starting Blueprint Forge...")
	log.Printf("Config: %s", cfg)
	log.Printf("Target: %s (budget %d)", descriptor, *maxAttempts)

	logger := logging.Default("blueprint-forge")

	if cfg.Generator.Endpoint == "" {
		log.Println("GENERATOR_ENDPOINT is required")
		return 1
	}
	gen := generator.NewHTTP(cfg.Generator.Endpoint, cfg.Generator.Token, cfg.GeneratorTimeout())

	dockerClient, err := docker.NewClient()
	if err != nil {
		log.Printf("Failed to create Docker client: %v", err)
		return 1
	}
	defer dockerClient.Close()

	m := metrics.New("blueprint_forge")
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(cfg.MetricsAddr); err != nil {
				log.Printf("WARNING: metrics listener stopped: %v", err)
			}
		}()
		log.Printf("Metrics listening on %s", cfg.MetricsAddr)
	}

	h := harness.New(dockerClient, logger,
		harness.WithMetrics(m),
		harness.WithLineObserver(logger.ScriptLine),
	)

	repo := repository.New(cfg.Repository.Root, cfg.Repository.Author, cfg.Repository.Version)

	opts := []orchestrator.Option{
		orchestrator.WithImage(cfg.Docker.Image),
		orchestrator.WithLimits(harness.ResourceLimits{
			MemoryBytes: cfg.MemoryLimitBytes(),
			Keepalive:   cfg.Keepalive(),
		}),
		orchestrator.WithMetrics(m),
	}

	// 尝试历史库不可用时降级运行
	if store, err := storage.Open(cfg.Database.URL); err != nil {
		log.Printf("WARNING: attempt history disabled: %v", err)
	} else {
		defer store.Close()
		opts = append(opts, orchestrator.WithHistory(store))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down Blueprint Forge...")
		cancel()
	}()

	if cfg.MinIO.Endpoint != "" {
		mirror, err := repository.NewMirror(cfg.MinIO)
		if err != nil {
			log.Printf("WARNING: blueprint mirror disabled: %v", err)
		} else if err := mirror.EnsureBucket(ctx); err != nil {
			log.Printf("WARNING: blueprint mirror disabled: %v", err)
		} else {
			opts = append(opts, orchestrator.WithMirror(mirror))
			log.Println("Blueprint mirror enabled")
		}
	}

	// 同一描述符的运行由分布式锁串行化
	if cfg.Redis.URL != "" {
		locker, err := runlock.New(cfg.Redis.URL, cfg.LockTTL())
		if err != nil {
			log.Printf("Failed to create run lock: %v", err)
			return 1
		}
		defer locker.Close()
		if err := locker.Acquire(ctx, descriptor); err != nil {
			log.Printf("Failed to acquire run lock: %v", err)
			return 1
		}
		defer func() {
			if err := locker.Release(context.Background(), descriptor); err != nil {
				log.Printf("WARNING: failed to release run lock: %v", err)
			}
		}()
	}

	orch := orchestrator.New(gen, h, repo, logger, opts...)

	ok, message := orch.Run(ctx, descriptor, *maxAttempts)
	if !ok {
		log.Printf("Blueprint generation failed: %s", message)
		return 1
	}

	log.Printf("Blueprint generation succeeded: %s", message)
	log.Printf("Blueprint written to %s", repo.ScriptPath(descriptor))
	return 0
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [--max-attempts N] <language> <version> <package-manager>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Example: %s python 3.11 pip\n", os.Args[0])
	flag.PrintDefaults()
}
