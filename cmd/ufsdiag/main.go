// cmd/ufsdiag/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	vk "github.com/valkey-io/valkey-go"

	"github.com/tamzrod/ufsdiag/internal/config"
	"github.com/tamzrod/ufsdiag/internal/diag"
	"github.com/tamzrod/ufsdiag/internal/httpapi"
	"github.com/tamzrod/ufsdiag/internal/logger"
	"github.com/tamzrod/ufsdiag/internal/sink"
	svalkey "github.com/tamzrod/ufsdiag/internal/sink/valkey"
	"github.com/tamzrod/ufsdiag/internal/status"
	"github.com/tamzrod/ufsdiag/internal/watch"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: ufsdiag <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	d := cfg.Diag
	lg := logger.New(d.LogLevel)
	gin.SetMode(d.HTTP.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Shared services
	// --------------------

	var valkeyClient vk.Client
	if d.Valkey.Address != "" {
		valkeyClient, err = svalkey.Dial(svalkey.Config{
			Address:  d.Valkey.Address,
			Password: d.Valkey.Password,
			Timeout:  time.Duration(d.Valkey.TimeoutMs) * time.Millisecond,
		})
		if err != nil {
			log.Fatalf("valkey connect failed: %v", err)
		}
		defer valkeyClient.Close()
	}

	svc := diag.Services{
		Valkey:    valkeyClient,
		ValkeyCfg: d.Valkey,
		Console:   os.Stdout,
		Log:       lg,
	}

	mgr := diag.NewManager(d.MaxHosts, lg)
	defer mgr.DetachAll()

	trackers := make(map[string]*status.Tracker)
	rings := make(map[string]*sink.Ring)

	// --------------------
	// Build per-host pipelines
	// --------------------

	for _, host := range d.Hosts {

		// ---- unit ----
		built, closePort, err := diag.BuildUnit(host, svc)
		if err != nil {
			log.Fatalf("unit build failed (host=%s): %v", host.ID, err)
		}
		defer closePort()

		h, err := mgr.Attach(built.Unit)
		if err != nil {
			log.Fatalf("attach failed (host=%s): %v", host.ID, err)
		}
		if built.Ring != nil {
			rings[host.ID] = built.Ring
		}

		// ---- watcher (optional per host) ----
		if host.Watch.IntervalMs <= 0 {
			continue
		}

		tracker := status.NewTracker()
		trackers[host.ID] = tracker

		w, err := watch.New(
			watch.Config{
				Host:        host.ID,
				Interval:    time.Duration(host.Watch.IntervalMs) * time.Millisecond,
				DumpOnFatal: host.Watch.DumpOnFatal,
			},
			built.Unit.Port,
			mgr.Unit(h),
			tracker,
			lg,
		)
		if err != nil {
			log.Fatalf("watcher build failed (host=%s): %v", host.ID, err)
		}
		go w.Run(ctx)
	}

	// --------------------
	// HTTP API
	// --------------------

	api := httpapi.New(mgr, httpapi.Options{
		CORSOrigins: d.HTTP.CORSOrigins,
		Trackers:    trackers,
		Rings:       rings,
		Logger:      lg,
	})

	srv := &http.Server{
		Addr:              d.HTTP.Listen,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		lg.Info("http api listening", "addr", d.HTTP.Listen, "hosts", len(d.Hosts))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	// --------------------
	// Run until signalled
	// --------------------

	<-ctx.Done()
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("http shutdown failed", "err", err)
	}

	for _, tr := range trackers {
		tr.Disable()
	}
}
