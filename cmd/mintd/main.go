// Command mintd runs the mint file service daemon. It serves the typed
// file routines over TCP, backed by an in-memory store that can be
// snapshotted to disk across restarts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "net/http/pprof" // anonymous import to get the pprof handler registered

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	uuid "github.com/satori/go.uuid"
	"golang.org/x/time/rate"

	"github.com/mintfs/mint/internal/cmdutil"
	"github.com/mintfs/mint/internal/mint/port"
	"github.com/mintfs/mint/internal/mint/server"
)

func main() {
	var configPath string

	cfg := DefaultConfig()
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "path to TOML config file")
	fs.Var(&cfg.LogLevel, "log.level", "Level to display logs at")
	fs.StringVar(&cfg.ListenAddr, "listen-addr", cfg.ListenAddr, "listen address for the mint service")
	fs.StringVar(&cfg.HTTPListenAddr, "http-listen-addr", cfg.HTTPListenAddr, "listen address for metrics and pprof")
	fs.StringVar(&cfg.SnapshotPath, "snapshot-path", cfg.SnapshotPath, "path to load and save the store snapshot, empty to disable")
	fs.Float64Var(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "per-connection request rate limit, 0 for unlimited")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %s", err.Error())
		os.Exit(1)
	}

	// Flags override the file: load the file over the defaults, then apply
	// the command line once more on top.
	fileCfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %s", err.Error())
		os.Exit(1)
	}
	cfg = fileCfg
	_ = fs.Parse(os.Args[1:])

	l := cmdutil.NewLogger(cfg.LogLevel)
	l = log.With(l, "instance", uuid.NewV4().String())

	store := server.NewMemStore()
	if cfg.SnapshotPath != "" {
		if err := loadSnapshot(store, cfg.SnapshotPath); err != nil {
			level.Error(l).Log("msg", "failed to load snapshot", "path", cfg.SnapshotPath, "err", err)
			os.Exit(1)
		}
	}

	middleware := []server.Middleware{
		server.NewLoggingMiddleware(l),
		server.NewInstrumentMiddleware(prometheus.DefaultRegisterer),
	}
	if cfg.RateLimit > 0 {
		middleware = append(middleware, server.NewRateLimitMiddleware(
			rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		))
	}

	var group run.Group

	// Information server worker
	{
		lis, err := net.Listen("tcp", cfg.HTTPListenAddr)
		if err != nil {
			level.Error(l).Log("msg", "failed to create listener for HTTP server", "err", err)
			os.Exit(1)
		}

		r := mux.NewRouter()
		r.Handle("/metrics", promhttp.Handler())
		r.PathPrefix("/debug/pprof").Handler(http.DefaultServeMux)
		srv := http.Server{Handler: r}

		group.Add(func() error {
			err := srv.Serve(lis)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}, func(_ error) {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
			}
		})
	}

	// mint service worker
	{
		lis, err := port.Listen(cfg.ListenAddr)
		if err != nil {
			level.Error(l).Log("msg", "failed to create listener for mint service", "err", err)
			os.Exit(1)
		}
		level.Info(l).Log("msg", "mint service listening", "addr", lis.Addr())

		ctx, cancel := context.WithCancel(context.Background())
		group.Add(func() error {
			return acceptLoop(ctx, l, lis, store, middleware)
		}, func(_ error) {
			cancel()
			_ = lis.Close()
		})
	}

	// signal worker
	{
		ctx, cancel := context.WithCancel(context.Background())

		group.Add(func() error {
			ch := make(chan os.Signal, 2)
			signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(ch)

			select {
			case <-ch:
				level.Info(l).Log("msg", "received shutdown signal")
			case <-ctx.Done():
			}
			return nil
		}, func(_ error) {
			cancel()
		})
	}

	err = group.Run()

	if cfg.SnapshotPath != "" {
		if serr := saveSnapshot(store, cfg.SnapshotPath); serr != nil {
			level.Error(l).Log("msg", "failed to save snapshot", "path", cfg.SnapshotPath, "err", serr)
		}
	}
	if err != nil {
		level.Error(l).Log("msg", "error running mintd", "err", err)
		os.Exit(1)
	}
}

// acceptLoop serves each accepted connection with its own dispatcher. The
// store is shared; dispatch is sequential within a connection and
// concurrent across connections.
func acceptLoop(ctx context.Context, l log.Logger, lis *port.TCPListener, store *server.MemStore, mw []server.Middleware) error {
	for {
		t, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		srv, err := server.New(l, server.Options{
			Transport:  t,
			Handler:    store,
			Middleware: mw,
		})
		if err != nil {
			_ = t.Close()
			return err
		}

		go func() {
			if err := srv.Serve(ctx); err != nil {
				level.Error(l).Log("msg", "connection ended with error", "err", err)
			}
		}()
	}
}

func loadSnapshot(store *server.MemStore, path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	defer f.Close()
	return store.Restore(f)
}

func saveSnapshot(store *server.MemStore, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := store.Snapshot(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
