package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/otl-tools/otltemplate/internal/cli/config"
	"github.com/otl-tools/otltemplate/internal/cli/ui"
	"github.com/otl-tools/otltemplate/internal/pipeline"
	"github.com/otl-tools/otltemplate/internal/server"
)

// NewServeCommand creates the serve command
func NewServeCommand(opts *globalOptions) *cobra.Command {
	var (
		address   string
		cacheSize int
		workers   int
		redisAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve template generation over HTTP",
		Long: `Start an HTTP API that turns posted subsets into templates.

Endpoints:
  POST /v1/templates   subset in the body, options in the query string
  POST /v1/classes     list the classes of the posted subset
  GET  /healthz        liveness probe
  GET  /metrics        Prometheus metrics

Setting server.auth.secret requires a bearer token on the /v1 routes (see
"otltemplate serve token"). Seeded requests are answered from a render cache,
kept in memory or in Redis with --redis.

Examples:
  otltemplate serve --address :8080
  curl --data-binary @subset.db 'localhost:8080/v1/templates?format=csv&rows=2' -o templates.zip`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.settings()
			if err != nil {
				return err
			}
			defer logger.Sync()
			applyServeFlags(cmd, cfg, address, cacheSize, workers, redisAddr)

			ctx, stop := runContext(cmd)
			defer stop()

			srv, closeStore, err := newAPIServer(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()
			if err := srv.Listen(); err != nil {
				return err
			}

			if !opts.quiet {
				fmt.Fprint(cmd.ErrOrStderr(), ui.Info(fmt.Sprintf("Serving templates on http://%s", srv.Addr()), color.NoColor))
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Listen address (default from configuration, localhost:8080)")
	cmd.Flags().IntVar(&cacheSize, "cache-size", 0, "Number of parsed subsets kept in memory")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker goroutines per generation (0 runs synchronously)")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address for a render cache shared between instances")
	cmd.AddCommand(newTokenCommand(opts))
	return cmd
}

// newTokenCommand creates the serve token command
func newTokenCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token SUBJECT",
		Short: "Issue a bearer token for the API",
		Long: `Issue a bearer token signed with server.auth.secret. Clients send it as
"Authorization: Bearer <token>" on the /v1 routes.

Examples:
  OTLTEMPLATE_SERVER_AUTH_SECRET=... otltemplate serve token road-team`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.settings()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if cfg.Server.Auth.Secret == "" {
				return &configError{err: fmt.Errorf("server.auth.secret is not set")}
			}
			auth, err := server.NewAuthenticator(cfg.Server.Auth.Secret, cfg.Server.Auth.TokenTTL)
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config, address string, cacheSize, workers int, redisAddr string) {
	changed := cmd.Flags().Changed
	if changed("address") {
		cfg.Server.Address = address
	}
	if changed("cache-size") {
		cfg.Server.CacheSize = cacheSize
	}
	if changed("workers") {
		cfg.Workers = workers
	}
	if changed("redis") {
		cfg.Server.Redis.Addr = redisAddr
	}
}

// newAPIServer wires the template API for cfg. The returned func releases the render store.
func newAPIServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*server.Server, func(), error) {
	if cfg.Server.CacheSize <= 0 {
		return nil, nil, fmt.Errorf("cache size must be > 0, got %d", cfg.Server.CacheSize)
	}
	if cfg.Workers < 0 {
		return nil, nil, fmt.Errorf("workers must be >= 0, got %d", cfg.Workers)
	}

	metrics := server.NewMetrics()
	cache, err := server.NewCatalogCache(cfg.Server.CacheSize, metrics, logger)
	if err != nil {
		return nil, nil, err
	}
	generator := pipeline.NewGenerator(pipeline.NewExecutor(cfg.Workers, logger), logger)
	api := server.NewAPI(generator, cache, metrics, logger)

	if cfg.Server.Auth.Secret != "" {
		auth, err := server.NewAuthenticator(cfg.Server.Auth.Secret, cfg.Server.Auth.TokenTTL)
		if err != nil {
			return nil, nil, err
		}
		api.WithAuthenticator(auth)
	}

	closeStore := func() {}
	render := cfg.Server.Render
	switch {
	case cfg.Server.Redis.Addr != "":
		store, err := server.NewRedisStore(ctx, server.RedisConfig{
			Addr:     cfg.Server.Redis.Addr,
			Password: cfg.Server.Redis.Password,
			DB:       cfg.Server.Redis.DB,
			TTL:      render.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		api.WithRenderStore(store)
		closeStore = func() { _ = store.Close() }
	case render.Size > 0:
		store, err := server.NewMemoryStore(render.Size, render.TTL)
		if err != nil {
			return nil, nil, err
		}
		api.WithRenderStore(store)
	}

	serverCfg := server.DefaultConfig(api.Routes())
	serverCfg.Address = cfg.Server.Address
	srv, err := server.New(serverCfg, logger)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return srv, closeStore, nil
}
