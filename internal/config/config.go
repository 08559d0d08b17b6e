// Package config loads the pipeline's settings once at process start and
// hands back an immutable struct. Nothing past main is allowed to read
// the environment directly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider identifies which oracle backend to talk to.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderLlama  Provider = "llama"
)

// Config is the fully resolved, read-once configuration for a soundsorter
// run: CLI flags take precedence over environment variables, which take
// precedence over the defaults below.
type Config struct {
	SourceDir string
	TargetDir string

	Provider     Provider
	Model        string
	InferenceURL string
	APIKey       string

	StreamPrompts bool

	DBPath          string
	Workers         int
	ResetStaleAge   time.Duration
	ResetStaleEvery time.Duration
	ScanInterval    time.Duration
}

const (
	defaultLlamaURL       = "http://localhost:11434/v1"
	defaultWorkers        = 4
	defaultResetStaleAge  = 5 * time.Minute
	defaultResetStaleEach = 1 * time.Minute
	defaultScanInterval   = 30 * time.Second
)

// Flags are the CLI-sourced overrides, parsed by cobra in cmd/soundsorter
// and passed into Load. Empty/zero fields fall through to the environment
// and then to the package defaults.
type Flags struct {
	Model          string
	InferenceURL   string
	SourceDir      string
	TargetDir      string
	Workers        int
	ResetStaleSecs int
}

// Load resolves a Config from flags, the environment (after optionally
// loading a .env file), and defaults, in that precedence order. It
// validates the pieces the CLI contract requires up front so main can
// fail fast with a clear message instead of deep inside a worker.
func Load(flags Flags) (Config, error) {
	_ = godotenv.Load()

	if flags.Model != "" && flags.InferenceURL != "" {
		return Config{}, fmt.Errorf("config: --model and --inference-url are mutually exclusive")
	}

	cfg := Config{
		SourceDir:       flags.SourceDir,
		TargetDir:       flags.TargetDir,
		StreamPrompts:   truthy(os.Getenv("STREAM_PROMPTS")),
		DBPath:          dbPath(),
		Workers:         defaultWorkers,
		ResetStaleAge:   defaultResetStaleAge,
		ResetStaleEvery: defaultResetStaleEach,
		ScanInterval:    defaultScanInterval,
	}

	if cfg.SourceDir == "" {
		cfg.SourceDir = os.Getenv("WTS_SOURCE_DIR")
	}
	if cfg.TargetDir == "" {
		cfg.TargetDir = os.Getenv("WTS_TARGET_DIR")
	}
	if cfg.SourceDir == "" {
		return Config{}, fmt.Errorf("config: --source-dir is required")
	}
	if cfg.TargetDir == "" {
		return Config{}, fmt.Errorf("config: --target-dir is required")
	}
	info, err := os.Stat(cfg.SourceDir)
	if err != nil {
		return Config{}, fmt.Errorf("config: source dir: %w", err)
	}
	if !info.IsDir() {
		return Config{}, fmt.Errorf("config: source dir %q is not a directory", cfg.SourceDir)
	}
	if err := os.MkdirAll(cfg.TargetDir, 0o755); err != nil {
		return Config{}, fmt.Errorf("config: target dir: %w", err)
	}

	if err := resolveOracle(&cfg, flags); err != nil {
		return Config{}, err
	}

	if flags.Workers > 0 {
		cfg.Workers = flags.Workers
	} else if n := intEnv("WTS_WORKER_THREADS"); n > 0 {
		cfg.Workers = n
	}

	if flags.ResetStaleSecs > 0 {
		cfg.ResetStaleAge = time.Duration(flags.ResetStaleSecs) * time.Second
	}

	return cfg, nil
}

func resolveOracle(cfg *Config, flags Flags) error {
	switch {
	case flags.InferenceURL != "":
		cfg.Provider = ProviderLlama
		cfg.InferenceURL = flags.InferenceURL
		cfg.Model = valueOr(os.Getenv("LLAMA_MODEL"), "llama3.1")
		cfg.APIKey = os.Getenv("LLAMA_API_KEY")
		return nil
	case flags.Model != "":
		cfg.Model = flags.Model
	}

	provider := Provider(strings.ToLower(valueOr(os.Getenv("INFERENCE_PROVIDER"), string(ProviderLlama))))
	cfg.Provider = provider

	switch provider {
	case ProviderOpenAI:
		if cfg.Model == "" {
			cfg.Model = valueOr(os.Getenv("OPENAI_MODEL"), "gpt-5")
		}
		cfg.APIKey = valueOr(os.Getenv("OPENAI_API_TOKEN"), os.Getenv("OPENAI_API_KEY"))
		if cfg.APIKey == "" {
			return fmt.Errorf("config: OPENAI_API_KEY (or OPENAI_API_TOKEN) is required for provider openai")
		}
	case ProviderGemini:
		if cfg.Model == "" {
			cfg.Model = valueOr(os.Getenv("GEMINI_MODEL"), "gemini-1.5-pro")
		}
		cfg.APIKey = firstNonEmpty(os.Getenv("GEMINI_API_TOKEN"), os.Getenv("GOOGLE_API_KEY"), os.Getenv("GEMINI_API_KEY"))
		if cfg.APIKey == "" {
			return fmt.Errorf("config: GEMINI_API_KEY (or GOOGLE_API_KEY) is required for provider gemini")
		}
	case ProviderLlama:
		if cfg.Model == "" {
			cfg.Model = valueOr(os.Getenv("LLAMA_MODEL"), "llama3.1")
		}
		cfg.InferenceURL = valueOr(os.Getenv("LLAMA_API_BASE"), defaultLlamaURL)
		cfg.APIKey = os.Getenv("LLAMA_API_KEY")
	default:
		return fmt.Errorf("config: unknown INFERENCE_PROVIDER %q", provider)
	}
	return nil
}

func dbPath() string {
	if p := os.Getenv("WTS_DB_PATH"); p != "" {
		return p
	}
	wd, err := os.Getwd()
	if err != nil {
		return "soundsorter.db"
	}
	return filepath.Join(wd, "soundsorter.db")
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func intEnv(key string) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return n
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
