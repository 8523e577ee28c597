package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/callfacts/internal/extract"
	"github.com/ppiankov/callfacts/internal/llm"
	"github.com/ppiankov/callfacts/internal/logging"
	"github.com/ppiankov/callfacts/internal/model"
	"github.com/ppiankov/callfacts/internal/pipeline"
	"github.com/ppiankov/callfacts/internal/server"
	"github.com/ppiankov/callfacts/internal/store"
	"github.com/ppiankov/callfacts/internal/worker"
)

var checkProvider bool

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web backend",
	Long: `Serve the submission form, the submission endpoints and the polling
endpoint. APP_KEY must be set; it signs the session cookie.

Example:
  APP_KEY=change-me OPENAI_API_KEY=sk-... callfacts serve --addr :8080
  callfacts serve --store redis --redis-addr localhost:6379`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().Int("workers", 4, "submissions processed concurrently")
	serveCmd.Flags().Int("queue-size", 16, "submissions waiting for a worker before new ones are rejected")
	serveCmd.Flags().String("store", "memory", "session store backend (memory, redis)")
	serveCmd.Flags().String("redis-addr", "localhost:6379", "redis address for the redis store")
	serveCmd.Flags().String("public-url", "", "public base URL used in redirect_url")
	serveCmd.Flags().BoolVar(&checkProvider, "check-llm", false, "verify the completion provider is reachable at startup")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.workers", serveCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("server.queue_size", serveCmd.Flags().Lookup("queue-size"))
	_ = viper.BindPFlag("store.backend", serveCmd.Flags().Lookup("store"))
	_ = viper.BindPFlag("store.redis_addr", serveCmd.Flags().Lookup("redis-addr"))
	_ = viper.BindPFlag("server.public_url", serveCmd.Flags().Lookup("public-url"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if cfg.Server.AppKey == "" {
		return fmt.Errorf("APP_KEY is not set; it is required to sign session cookies")
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if !strings.EqualFold(cfg.Log.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	pipe, provider, err := buildPipeline(cfg, st, logger)
	if err != nil {
		return err
	}
	if checkProvider && !provider.IsAvailable(ctx) {
		logger.Warn("completion provider is not reachable", zap.String("provider", provider.Name()))
	}

	pool := worker.NewPool(cfg.Server.Workers, cfg.Server.QueueSize)
	pool.Start()

	srv, err := server.NewServer(cfg.Server, server.Deps{Processor: pipe, Pool: pool, Store: st}, logger)
	if err != nil {
		_ = pool.Shutdown(context.Background())
		return err
	}

	logger.Info("starting callfacts",
		zap.String("version", Version),
		zap.String("addr", cfg.Server.Addr),
		zap.String("store", cfg.Store.Backend),
		zap.String("provider", provider.Name()),
		zap.Int("workers", cfg.Server.Workers),
	)

	runErr := srv.Run(ctx, cfg.Server.Addr)

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout(cfg))
	defer cancel()
	if err := pool.Shutdown(drainCtx); err != nil {
		logger.Warn("submissions cancelled during shutdown", zap.Error(err))
	}
	logger.Info("stopped")
	return runErr
}

// buildPipeline wires the fetcher, provider and extractor around st
func buildPipeline(cfg *model.Config, st store.Store, logger *zap.Logger) (*pipeline.Pipeline, llm.Provider, error) {
	llmConfig := llm.ConfigFromModel(cfg.LLM, cfg.Fetch)
	provider, err := llm.NewProvider(llmConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("completion provider: %w", err)
	}

	fetcher := pipeline.NewFetcher(cfg.Fetch, logger)
	extractor := extract.NewExtractor(provider, llmConfig, logger)
	return pipeline.NewPipeline(fetcher, extractor, st, cfg.Pipeline, logger), provider, nil
}

// openStore builds the configured store and a function releasing it
func openStore(ctx context.Context, cfg model.StoreConfig) (store.Store, func(), error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return store.NewMemoryStore(cfg.TTL), func() {}, nil
	case "redis":
		rdb, err := store.DialRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		s := store.NewRedisStore(rdb, cfg.TTL)
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s (supported: memory, redis)", cfg.Backend)
	}
}

func drainTimeout(cfg *model.Config) time.Duration {
	if cfg.Pipeline.SubmissionTimeout > 0 {
		return cfg.Pipeline.SubmissionTimeout
	}
	return 30 * time.Second
}
