// Command blackbox-server serves recorded flight sessions over HTTP: the
// JSON API, charts, websocket replay and live telemetry, plus the /debug
// admin routes for the blackbox database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/flightcore/internal/api"
	"github.com/banshee-data/flightcore/internal/blackbox"
	"github.com/banshee-data/flightcore/internal/monitoring"
	"github.com/banshee-data/flightcore/internal/pid"
	"github.com/banshee-data/flightcore/internal/telemetry"
	"github.com/banshee-data/flightcore/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	dbPath      = flag.String("db", "blackbox.db", "Blackbox database path")
	profilePath = flag.String("profile", "", "Default profile for simulations started over the API")
	assetsHost  = flag.String("assets-host", "", "Host serving the echarts assets; the go-echarts CDN when empty")
	verbose     = flag.Bool("v", false, "Log diagnostics to stderr")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 2 * time.Second

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("blackbox-server"))
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	writers := monitoring.LogWriters{Ops: os.Stderr}
	if *verbose {
		writers.Diag = os.Stderr
	}
	monitoring.SetLogWriters(writers)

	cfg := api.Config{AssetsHost: *assetsHost}
	if *profilePath != "" {
		profile, loop, err := pid.LoadProfile(*profilePath)
		if err != nil {
			log.Fatalf("Failed to load profile: %v", err)
		}
		cfg.Profile, cfg.Loop = profile, loop
	}

	store, err := blackbox.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open blackbox database: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, *listen, store, cfg); err != nil {
		log.Printf("server error: %v", err)
		stop()
		store.Close()
		os.Exit(1)
	}
	log.Printf("Graceful shutdown complete")
}

// newHandler builds the full route table for store.
func newHandler(store *blackbox.Store, cfg api.Config) (http.Handler, error) {
	mux := api.NewServer(store, cfg).ServeMux()
	if err := store.AttachAdminRoutes(mux); err != nil {
		return nil, fmt.Errorf("failed to attach admin routes: %w", err)
	}
	return api.LoggingMiddleware(mux), nil
}

// serve runs the telemetry hub and the HTTP server until ctx is done or one
// of them fails.
func serve(ctx context.Context, addr string, store *blackbox.Store, cfg api.Config) error {
	hub := telemetry.NewHub(telemetry.HubConfig{})
	cfg.Hub = hub

	handler, err := newHandler(store, cfg)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(ctx)
		log.Print("telemetry hub stopped")
		return nil
	})
	g.Go(func() error {
		log.Printf("listening on %s (db %s)", addr, store.Path())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			return server.Close()
		}
		return nil
	})
	return g.Wait()
}
