// Command cored is the session manager daemon: it wires configuration,
// structured logging, Prometheus metrics, and the periodic buffer-timeout
// tick around a core.Manager.
//
// The CryptoAuth primitive, the Pathfinder event bus, the packet allocator,
// and the inside/switch transport are out-of-scope collaborators (spec.md
// Section 1); main wires the stand-ins in stubs.go until real adapters are
// available, the way dantte-lp-gobfd/cmd/gobfd/main.go wires its own
// netio.UDPSender/gobgp.Client collaborators.
//
// Grounded on dantte-lp-gobfd/cmd/gobfd/main.go: flag parsing, a logger
// whose level is held in a slog.LevelVar (set once from configuration; no
// signal handler changes it at runtime), an errgroup-supervised set
// of goroutines under a signal-aware context, and a timeout-bounded
// graceful shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/yangm97/cjdns/internal/config"
	"github.com/yangm97/cjdns/internal/metrics"
	"github.com/yangm97/cjdns/src/core"
)

// shutdownTimeout bounds how long the metrics HTTP server is given to drain
// in-flight requests during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// bufferTickInterval is the buffer-timeout pipeline's period (spec.md
// Section 4.5: "a periodic tick fires every 10 seconds").
const bufferTickInterval = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()))
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("cored starting",
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.Int("max_buffered_messages", cfg.Session.MaxBufferedMessages),
	)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	mgr, err := newManager(cfg, logger, collector)
	if err != nil {
		logger.Error("failed to construct session manager", slog.String("error", err.Error()))
		return 1
	}
	defer mgr.Close()

	if err := runDaemon(cfg, mgr, reg, logger); err != nil {
		logger.Error("cored exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("cored stopped")
	return 0
}

// runDaemon starts the metrics server and the buffer-timeout ticker under an
// errgroup bound to a signal-aware context, then blocks until shutdown.
func runDaemon(cfg *config.Config, mgr *core.Manager, reg *prometheus.Registry, logger *slog.Logger) error {
	metricsSrv := newMetricsServer(cfg.Metrics, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	lc := net.ListenConfig{}
	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr), slog.String("path", cfg.Metrics.Path))
		return listenAndServe(gCtx, &lc, metricsSrv, cfg.Metrics.Addr)
	})

	g.Go(func() error {
		return runBufferTicker(gCtx, mgr)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, logger, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run daemon: %w", err)
	}
	return nil
}

// runBufferTicker drives the buffer-timeout pipeline (spec.md Section 4.5)
// every bufferTickInterval until ctx is cancelled.
func runBufferTicker(ctx context.Context, mgr *core.Manager) error {
	ticker := time.NewTicker(bufferTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			mgr.BufferTick(now.UnixMilli())
		}
	}
}

func gracefulShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
