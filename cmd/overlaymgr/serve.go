package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caldog20/overlaymgr/dnspub"
	"github.com/caldog20/overlaymgr/manager"
	"github.com/caldog20/overlaymgr/metrics"
	"github.com/caldog20/overlaymgr/wireguard"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/acme/autocert"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve /data, /conf/<name> and the web UI, and keep the DNS hosts file current",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, e)
		},
	}
}

func serve(ctx context.Context, e *env) error {
	conf, logger := e.conf, e.logger

	gen, err := wireguard.NewGenerator(conf, e.store)
	if err != nil {
		return err
	}

	m := metrics.New()
	srv := manager.NewServer(conf, e.store, gen, logger)
	srv.SetMetrics(m)

	pub := newPublisher(e)
	pub.SetMetrics(m)
	if _, err := pub.Publish(ctx); err != nil {
		logger.Error("initial dns publish failed", "error", err)
	}

	var scheduler *dnspub.Scheduler
	if conf.DNSRefreshSchedule != "" {
		scheduler, err = dnspub.NewScheduler(conf.DNSRefreshSchedule, pub, logger)
		if err != nil {
			return err
		}
		scheduler.Start()
	}

	ln, err := net.Listen("tcp", conf.ListenAddr)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 2)

	if ac := tryEnableAutocert(e); ac != nil {
		httpSrv.TLSConfig = ac.TLSConfig()
		go func() {
			if err := httpSrv.ServeTLS(ln, "", ""); !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
	} else {
		go func() {
			if err := httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
	}
	logger.Info("manager started", "server", conf.Name, "http", ln.Addr().String())

	var metricsSrv *http.Server
	if conf.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", m.Handler())
		metricsSrv = &http.Server{Addr: conf.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
		logger.Info("metrics listening", "addr", conf.MetricsAddr)
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
		logger.Error("listener failed", "error", serveErr)
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	_ = httpSrv.Shutdown(shutdownCtx)
	return serveErr
}

func newPublisher(e *env) *dnspub.Publisher {
	var reloader dnspub.Reloader
	if e.conf.DNSReloadProcess != "" {
		reloader = dnspub.NewSignalReloader(e.conf.DNSReloadProcess)
	}
	return dnspub.NewPublisher(e.conf, e.store, reloader, e.logger)
}

func tryEnableAutocert(e *env) *autocert.Manager {
	if e.conf.AutocertDomain == "" {
		return nil
	}
	cacheDir := e.conf.AutocertCacheDir
	if cacheDir == "" {
		cacheDir = os.TempDir()
		e.logger.Warn("autocert cache directory defaulting to temp dir, set autocert_cache_dir", "dir", cacheDir)
	}
	return &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(e.conf.AutocertDomain),
		Cache:      autocert.DirCache(cacheDir),
	}
}
