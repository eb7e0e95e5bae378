// FILE: main.go
// Package main – Program entrypoint and HTTP/metrics server.
//
// Boot sequence:
//   1) loadBotEnv()               – read .env (no shell exports required)
//   2) cfg := loadConfigFromEnv() – build runtime Config
//   3) initLogging(cfg)           – logrus level/format/rotation
//   4) connect gateway (bounded retries; paper gateway when GATEWAY_URL empty)
//   5) load + qualify the universe
//   6) start Prometheus /healthz server on cfg.Port
//   7) runLive or runScan based on flags
//
// Flags:
//   -live            Run the polling decision loop (default)
//   -scan            One-shot: score the universe, print a ranked table, exit
//   -universe <path> Override UNIVERSE_FILE
//   -interval <sec>  Override LOOP_SECONDS
//
// Example:
//   go run . -live -interval 20

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	var scan bool
	var live bool
	var universePath string
	var intervalSec int
	flag.BoolVar(&scan, "scan", false, "Score the universe once and exit")
	flag.BoolVar(&live, "live", false, "Run the live decision loop")
	flag.StringVar(&universePath, "universe", "", "Path to universe YAML (overrides UNIVERSE_FILE)")
	flag.IntVar(&intervalSec, "interval", 0, "Loop interval in seconds (overrides LOOP_SECONDS)")
	flag.Parse()

	// ---- Environment & Config ----
	loadBotEnv()
	cfg := loadConfigFromEnv()
	if universePath != "" {
		cfg.UniverseFile = universePath
	}
	if intervalSec > 0 {
		cfg.LoopInterval = time.Duration(intervalSec) * time.Second
	}
	initLogging(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---- Gateway wiring ----
	var gw Gateway
	if cfg.GatewayURL != "" {
		gc := NewGatewayClient(cfg)
		if err := gc.Connect(ctx); err != nil {
			logrus.Fatalf("[BOOT] %v", err)
		}
		defer gc.Close()
		gw = gc
	} else {
		logrus.Infof("[BOOT] GATEWAY_URL empty, using paper gateway")
		gw = NewPaperGateway()
	}

	// ---- Universe ----
	uf, err := loadUniverse(cfg.UniverseFile)
	if err != nil {
		logrus.Fatalf("[BOOT] %v", err)
	}
	candidates := qualifyUniverse(ctx, gw, uf, cfg.ReqTimeout)
	if len(candidates) == 0 {
		logrus.Fatalf("[BOOT] no qualified symbols in universe %s", cfg.UniverseFile)
	}

	// ---- Sessions ----
	us, err := usSession()
	if err != nil {
		logrus.Fatalf("[BOOT] %v", err)
	}
	eu, err := euSession()
	if err != nil {
		logrus.Fatalf("[BOOT] %v", err)
	}
	sessions := []*MarketSession{us, eu}

	// ---- Logs & trader ----
	if err := ensureCSVHeader(cfg.EntryLog, entryLogHeader); err != nil {
		logrus.Fatalf("[BOOT] %v", err)
	}
	if err := ensureCSVHeader(cfg.CloseLog, closeLogHeader); err != nil {
		logrus.Fatalf("[BOOT] %v", err)
	}
	trader := NewTrader(cfg, gw, NewStateStore(cfg.StateFile), sessions, candidates)

	// ---- HTTP metrics/health ----
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		logrus.Infof("[BOOT] serving metrics on :%d/metrics", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server: %v", err)
		}
	}()

	// ---- Run selected mode ----
	if scan && !live {
		if err := runScan(ctx, trader); err != nil {
			logrus.Fatalf("[SCAN] %v", err)
		}
	} else {
		runLive(ctx, trader)
	}

	// ---- Graceful shutdown for HTTP server ----
	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
}
