package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"offer-hunter/pkg/aggregator"
	"offer-hunter/pkg/cache"
	"offer-hunter/pkg/config"
	"offer-hunter/pkg/metrics"
	"offer-hunter/pkg/offers"
	"offer-hunter/pkg/scrapers"
	"offer-hunter/pkg/scrapers/base"
)

func main() {
	cfg, err := config.Load(config.WithEnvFile(".env"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	adapters, err := scrapers.Build(cfg.Sources, base.Options{
		Query:             cfg.Query,
		Keywords:          cfg.Keywords,
		UserAgent:         cfg.UserAgent,
		RequestsPerMinute: cfg.RequestsPerMinute,
		DebugDir:          cfg.DebugDir,
	})
	if err != nil {
		log.Fatalf("Failed to configure sources: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	agg, err := aggregator.New(adapters,
		aggregator.WithSourceTimeout(cfg.SourceTimeout),
		aggregator.WithRunTimeout(cfg.RunTimeout),
		aggregator.WithRecorder(metrics.NewCollector(registry)),
	)
	if err != nil {
		log.Fatalf("Failed to build aggregator: %v", err)
	}

	store, err := cache.New(cfg.CacheDBPath, cfg.CacheTTL)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer store.Close()

	log.Printf("Cache initialized at %s with TTL %s", cfg.CacheDBPath, cfg.CacheTTL)
	log.Printf("Sources: %v", agg.Sources())

	service := offers.NewService(agg, store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RefreshInterval > 0 {
		go service.StartRefresher(ctx, cfg.RefreshInterval)
	}

	handler := newRouter(&server{
		offers:       service,
		query:        cfg.Query,
		historyLimit: cfg.HistoryLimit,
		docsDir:      cfg.DocsDir,
		metrics:      metrics.Handler(registry),
	})

	ip := GetOutboundIP()
	if ip != nil {
		fmt.Printf("Local Network URL: http://%s:%s\n", ip.String(), cfg.Port)
	} else {
		fmt.Println("Could not determine local IP address.")
	}
	fmt.Printf("Access URL: http://localhost:%s\n", cfg.Port)
	fmt.Printf("API Docs: http://localhost:%s/docs\n", cfg.Port)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Printf("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown failed: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func GetOutboundIP() net.IP {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		addrs, _ := net.InterfaceAddrs()
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					return ipnet.IP
				}
			}
		}
		return nil
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	return localAddr.IP
}
