// Copyright 2025 Omnilock Labs
//
// Omnichain Escrow Relayer
// Observes funds-lock events on an EVM source chain, drives a deterministic
// destination computation and signs the settlement callback that releases
// or refunds the escrowed funds.

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omnilock/escrow-relayer/pkg/config"
	"github.com/omnilock/escrow-relayer/pkg/database"
	"github.com/omnilock/escrow-relayer/pkg/event"
	"github.com/omnilock/escrow-relayer/pkg/ethereum"
	"github.com/omnilock/escrow-relayer/pkg/relayer"
	"github.com/omnilock/escrow-relayer/pkg/server"
	"github.com/omnilock/escrow-relayer/pkg/solana"
	"github.com/omnilock/escrow-relayer/pkg/traffic"
)

func main() {
	logger := log.New(os.Stdout, "[Relayer] ", log.LstdFlags)
	logger.Println("Starting omnichain escrow relayer...")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	logger.Printf("Configuration loaded (rpc=%s escrow=%s db=%s http=%d)",
		cfg.SourceRPCURL, cfg.EscrowAddress, cfg.DatabaseURL, cfg.HTTPPort)

	// Storage
	dbClient, err := database.NewClient(cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbClient.Close()

	messages := database.NewMessageRepository(dbClient)
	events := database.NewEventRepository(dbClient)

	// Live event fan-out for the dashboard stream
	bus := event.NewBus(event.DefaultBufferSize)

	// Shared control flags
	control := relayer.NewControl()
	if cfg.AutoStartSimulation {
		control.StartSimulation(time.Hour)
		logger.Println("Auto-starting simulation (1 hour)")
	}

	// Relayer signing key
	key, err := ethereum.ParsePrivateKey(cfg.RelayerPrivateKey)
	if err != nil {
		logger.Fatalf("Failed to parse relayer key: %v", err)
	}
	logger.Printf("Relayer address %s", ethereum.AddressOf(key).Hex())

	// Source chain client
	source, err := ethereum.NewClient(cfg.SourceRPCURL, cfg.ChainID, cfg.EscrowAddress)
	if err != nil {
		logger.Fatalf("Failed to connect to source chain: %v", err)
	}
	defer source.Close()

	// Prometheus registry and processor metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := relayer.NewMetrics(registry)

	var faults relayer.FaultInjector = relayer.NoFaults{}
	if cfg.SimulateFaults {
		faults = relayer.NewRandomFaults(time.Now().UnixNano())
		logger.Println("Fault injection enabled")
	}

	processor, err := relayer.NewProcessor(&relayer.ProcessorConfig{
		Source:              source,
		Executor:            solana.NewExecutor(),
		Messages:            messages,
		Events:              events,
		Bus:                 bus,
		Control:             control,
		Key:                 key,
		PollInterval:        cfg.PollInterval,
		SimulatedSettlement: cfg.SimulatedSettlement,
		Faults:              faults,
		Metrics:             metrics,
	})
	if err != nil {
		logger.Fatalf("Failed to build processor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Dashboard API
	api := server.NewServer(messages, events, bus, control, nil)
	go func() {
		if err := api.Run(cfg.HTTPPort); err != nil {
			logger.Printf("Server error: %v", err)
			cancel()
		}
	}()

	// Prometheus scrape endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf("0.0.0.0:%d", cfg.MetricsPort)
		logger.Printf("Metrics listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Printf("Metrics server error: %v", err)
		}
	}()

	// Synthetic traffic
	generator, err := traffic.NewGenerator(cfg.SourceRPCURL, cfg.EscrowAddress, control)
	if err != nil {
		logger.Fatalf("Failed to build traffic generator: %v", err)
	}
	go generator.Run(ctx)

	// State machine processor (includes the crash-safe resume pass)
	go func() {
		if err := processor.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("Processor error: %v", err)
			cancel()
		}
	}()

	// Crash-safe resume is the recovery mechanism; on signal we just stop
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Printf("Received %s, shutting down", sig)
		cancel()
	case <-ctx.Done():
	}
}
