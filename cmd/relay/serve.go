package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/config"
	relayhttp "github.com/fwojciec/relay/http"
	"github.com/fwojciec/relay/sqlite"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type serveFlags struct {
	addr           string
	db             string
	provider       string
	model          string
	basePath       string
	systemPrompt   string
	idleTimeout    time.Duration
	allowedOrigins []string
}

func newServeCmd(e env, root *rootFlags) *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig(e)
			if err != nil {
				return err
			}
			f.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			level, _ := cfg.Level()
			logger := newLogger(e.stderr, level)

			ctx := cmd.Context()
			provider, err := resolveProvider(ctx, cfg)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			return runServer(ctx, cfg, provider, logger, ln, shutdownTimeout)
		},
	}

	f.register(cmd)
	return cmd
}

func (f *serveFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.addr, "addr", "", "listen address (default :3000)")
	fl.StringVar(&f.db, "db", "", "SQLite database path (default chat.db)")
	fl.StringVar(&f.provider, "provider", "", "upstream provider: openai, gemini, anthropic")
	fl.StringVar(&f.model, "model", "", "default model when a request names none")
	fl.StringVar(&f.basePath, "base-path", "", `route prefix (default /api, "" for root)`)
	fl.StringVar(&f.systemPrompt, "system-prompt", "", "system prompt used when a request has none")
	fl.DurationVar(&f.idleTimeout, "idle-timeout", 0, "cancel an upstream that sends nothing for this long (0 disables)")
	fl.StringSliceVar(&f.allowedOrigins, "allowed-origin", nil, "CORS origin glob, repeatable (default *)")
}

// apply overrides cfg with the flags the user actually set.
func (f *serveFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("addr") {
		cfg.Addr = f.addr
	}
	if changed("db") {
		cfg.DatabasePath = f.db
	}
	if changed("provider") {
		cfg.Provider = f.provider
	}
	if changed("model") {
		cfg.Model = f.model
	}
	if changed("base-path") {
		cfg.BasePath = f.basePath
	}
	if changed("system-prompt") {
		cfg.SystemPrompt = f.systemPrompt
	}
	if changed("idle-timeout") {
		cfg.IdleTimeout = f.idleTimeout
	}
	if changed("allowed-origin") {
		cfg.AllowedOrigins = f.allowedOrigins
	}
}

// runServer serves the relay API on ln until ctx is cancelled, then drains
// in-flight requests for up to grace. Requests still running after that have
// their contexts cancelled. The store is closed only once every handler has
// returned.
func runServer(ctx context.Context, cfg config.Config, provider relay.Provider, logger zerolog.Logger, ln net.Listener, grace time.Duration) error {
	dsn, err := sqlite.DSNForFile(cfg.DatabasePath)
	if err != nil {
		_ = ln.Close()
		return err
	}
	store, err := sqlite.Open(dsn)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer store.Close()

	baseCtx, cancelRequests := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRequests()

	r := relay.NewRelay(store, provider, relay.WithIdleTimeout(cfg.IdleTimeout))
	api := relayhttp.NewServer(store, r,
		relayhttp.WithLogger(logger),
		relayhttp.WithBasePath(cfg.BasePath),
		relayhttp.WithAllowedOrigins(cfg.AllowedOrigins...),
		relayhttp.WithSystemPrompt(cfg.SystemPrompt),
	)
	var inflight sync.WaitGroup
	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			inflight.Add(1)
			defer inflight.Done()
			api.ServeHTTP(w, req)
		}),
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", ln.Addr().String()).
			Str("provider", cfg.Provider).
			Str("db", cfg.DatabasePath).
			Msg("relay listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn().Dur("grace", grace).Msg("cancelling in-flight requests")
			cancelRequests()
			return srv.Close()
		}
		return err
	})
	err = g.Wait()
	inflight.Wait()
	return err
}
