// Command soundsorter watches a source directory of loosely organized
// music folders, asks an LLM oracle to propose an Artist/Album layout for
// each one, and moves accepted proposals into a target directory — driven
// entirely through its HTTP+SSE control surface.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ewilliams-labs/soundsorter/internal/adapters/oracle/gemini"
	"github.com/ewilliams-labs/soundsorter/internal/adapters/oracle/openaicompat"
	"github.com/ewilliams-labs/soundsorter/internal/adapters/rest"
	"github.com/ewilliams-labs/soundsorter/internal/adapters/sqlite"
	"github.com/ewilliams-labs/soundsorter/internal/adapters/tagstub"
	"github.com/ewilliams-labs/soundsorter/internal/config"
	"github.com/ewilliams-labs/soundsorter/internal/core/ports"
	"github.com/ewilliams-labs/soundsorter/internal/core/services/progress"
	"github.com/ewilliams-labs/soundsorter/internal/filemover"
	"github.com/ewilliams-labs/soundsorter/internal/scanner"
	"github.com/ewilliams-labs/soundsorter/internal/worker"
)

var (
	flagModel          string
	flagInferenceURL   string
	flagSourceDir      string
	flagTargetDir      string
	flagWorkers        int
	flagResetStaleSecs int
	flagVerbose        bool
	flagAddr           string
)

var rootCmd = &cobra.Command{
	Use:           "soundsorter",
	Short:         "Organize a music library with an LLM oracle in the loop",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&flagModel, "model", "", "hosted model name (mutually exclusive with --inference-url)")
	rootCmd.Flags().StringVar(&flagInferenceURL, "inference-url", "", "HTTP endpoint of a local/self-hosted inference gateway")
	rootCmd.Flags().StringVar(&flagSourceDir, "source-dir", "", "directory of folders to organize (required)")
	rootCmd.Flags().StringVar(&flagTargetDir, "target-dir", "", "directory to move organized folders into (required)")
	rootCmd.Flags().IntVar(&flagWorkers, "workers", 0, "number of worker goroutines (default 4)")
	rootCmd.Flags().IntVar(&flagResetStaleSecs, "reset-stale-seconds", 0, "seconds before a stuck analyzing job is reset (default 300)")
	rootCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")
	rootCmd.Flags().StringVar(&flagAddr, "addr", ":8080", "address the control plane listens on")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.Flags{
		Model:          flagModel,
		InferenceURL:   flagInferenceURL,
		SourceDir:      flagSourceDir,
		TargetDir:      flagTargetDir,
		Workers:        flagWorkers,
		ResetStaleSecs: flagResetStaleSecs,
	})
	if err != nil {
		return err
	}

	logger, err := newLogger(flagVerbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.NewAdapter(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("job store: %w", err)
	}
	defer store.Close()

	oracle, err := newOracle(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("oracle: %w", err)
	}

	tagReader := tagstub.New()
	mover := filemover.New(cfg.TargetDir, logger)
	tracker := progress.New()
	scan := scanner.New(store, logger)

	pool := worker.New(worker.Config{
		Store:           store,
		Oracle:          oracle,
		TagReader:       tagReader,
		Mover:           mover,
		Tracker:         tracker,
		Scanner:         scan,
		SourceDir:       cfg.SourceDir,
		Workers:         cfg.Workers,
		ScanInterval:    cfg.ScanInterval,
		ResetStaleAge:   cfg.ResetStaleAge,
		ResetStaleEvery: cfg.ResetStaleEvery,
		Logger:          logger,
	})
	pool.Start(ctx)
	defer pool.Stop()

	server := rest.NewServer(rest.Config{
		Store:     store,
		TagReader: tagReader,
		Tracker:   tracker,
		Pool:      pool,
		Mover:     mover,
		SourceDir: cfg.SourceDir,
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:              flagAddr,
		Handler:           server,
		ReadHeaderTimeout: 15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("control plane listening", zap.String("addr", flagAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("control plane: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("control plane shutdown error", zap.Error(err))
		}
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func newOracle(ctx context.Context, cfg config.Config, logger *zap.Logger) (ports.Oracle, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return gemini.New(ctx, cfg.APIKey, cfg.Model, logger)
	case config.ProviderOpenAI:
		return openaicompat.New(openaicompat.Config{
			BaseURL: "https://api.openai.com/v1",
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
			Stream:  cfg.StreamPrompts,
			Logger:  logger,
		}), nil
	case config.ProviderLlama:
		return openaicompat.New(openaicompat.Config{
			BaseURL: cfg.InferenceURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
			Stream:  cfg.StreamPrompts,
			Logger:  logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
