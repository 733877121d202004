package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/lattelab/reliamap/internal/server"
	"github.com/lattelab/reliamap/pkg/cache"
)

// serveCommand creates the serve command for running the map API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		configPath string
		addr       string
		mock       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reliability map API server",
		Long: `Run the reliability map API server.

In mock mode (the default) every request to /api/reliability_map returns
a freshly generated demo payload. With mock mode disabled the server
serves the latest stored snapshot; configure MongoDB for durable
snapshots and Redis for a shared response cache.

Configuration resolves from defaults, then the TOML config file, then
RELIAMAP_* environment variables (a .env file is honored).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("mock") {
				cfg.MockMode = mock
			}
			return c.runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "TOML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&mock, "mock", true, "serve generated demo payloads")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, cfg server.Config) error {
	store, err := c.newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Close(closeCtx)
	}()

	responseCache := c.newServerCache(ctx, cfg)
	defer responseCache.Close()

	srv := server.New(cfg, store, responseCache, c.Logger)
	return srv.ListenAndServe(ctx)
}

// newStore selects the snapshot store: MongoDB when configured, otherwise
// in-memory.
func (c *CLI) newStore(ctx context.Context, cfg server.Config) (server.SnapshotStore, error) {
	if cfg.MongoURI == "" {
		c.Logger.Debug("using in-memory snapshot store")
		return server.NewMemoryStore(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := server.NewMongoStore(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}
	c.Logger.Info("connected to mongodb", "database", cfg.MongoDatabase)
	return store, nil
}

// newServerCache selects the response cache: Redis when configured,
// otherwise none. A Redis connection failure degrades to no cache rather
// than refusing to start.
func (c *CLI) newServerCache(ctx context.Context, cfg server.Config) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.NewNullCache()
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rc, err := cache.NewRedisCache(connectCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		c.Logger.Warn("redis unavailable, caching disabled", "addr", cfg.RedisAddr, "err", err)
		return cache.NewNullCache()
	}
	c.Logger.Info("connected to redis", "addr", cfg.RedisAddr)
	return rc
}
