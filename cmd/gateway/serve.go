package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/chimerakang/gateway-go/audit"
	"github.com/chimerakang/gateway-go/chain"
	"github.com/chimerakang/gateway-go/identity"
	"github.com/chimerakang/gateway-go/metrics"
	"github.com/chimerakang/gateway-go/pipeline"
	"github.com/chimerakang/gateway-go/ratelimit"
)

func newServeCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway in front of the upstream application",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(*configFlag)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *FileConfig) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	upstream := chain.Terminal
	if cfg.Server.UpstreamURL != "" {
		target, err := url.Parse(cfg.Server.UpstreamURL)
		if err != nil {
			return fmt.Errorf("invalid upstream_url: %w", err)
		}
		proxy := httputil.NewSingleHostReverseProxy(target)
		proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("proxy error", "error", err)
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}
		upstream = proxy
	}

	var store ratelimit.CounterStore
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		store = ratelimit.NewRedisStore(rdb)
	} else {
		mem := ratelimit.NewMemoryStore()
		mem.StartJanitor(ctx, 2*time.Minute)
		store = mem
	}

	auditLog := audit.New(0, audit.WithStdoutHandler())
	defer func() { _ = auditLog.Close() }()

	gw, err := pipeline.New(pipeline.Config{
		CanonicalHost:        cfg.Hosts.Canonical,
		LegacyHosts:          cfg.Hosts.Legacy,
		DevHosts:             cfg.Hosts.Dev,
		SupportedLocales:     cfg.Locales.Supported,
		DefaultLocale:        cfg.Locales.Default,
		GlobalMaxRequests:    cfg.RateLimit.GlobalMax,
		GlobalWindow:         cfg.globalWindow(),
		SensitiveMaxRequests: cfg.RateLimit.SensitiveMax,
		SensitiveWindow:      cfg.sensitiveWindow(),
		Blacklist:            cfg.RateLimit.Blacklist,
		SecureCookies:        cfg.Server.SecureCookies,
	},
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics.New(cfg.Metrics.Enabled)),
		pipeline.WithAudit(auditLog),
		pipeline.WithIdentity(identity.New(cfg.Identity.BaseURL)),
		pipeline.WithCounterStore(store),
		pipeline.WithUpstream(upstream),
	)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	}
	mux.Handle("/", gw.Handler())

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", cfg.Server.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
