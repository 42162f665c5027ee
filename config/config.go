// Package config loads the engine configuration from the environment, with
// optional .env support.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/oxhq/codegraph/graph"
	"github.com/oxhq/codegraph/lang"
)

// Config holds every tunable the engine exposes.
type Config struct {
	// ProjectRoot is the base path for relative identifiers.
	ProjectRoot string
	// DatabaseDSN is a SQLite path, ":memory:", or a libsql URL.
	DatabaseDSN string
	// Debug enables SQL logging.
	Debug bool

	// SupportedLanguages restricts analysis; empty means all.
	SupportedLanguages []lang.Language

	// ParserMaxSuccessiveUses bounds parser-instance reuse before
	// recreation.
	ParserMaxSuccessiveUses int

	// Inference settings.
	InferenceCacheEnabled       bool
	InferenceCacheStrategy      graph.CacheStrategy
	DefaultMaxPathLength        int
	DefaultMaxInheritanceDepth  int
	DetectCycles                bool

	// AnalyzerCleanupEdgeTypes is the default edge-type set cleared on
	// re-analysis.
	AnalyzerCleanupEdgeTypes []string

	// ConnectionPoolSize bounds open database connections.
	ConnectionPoolSize int

	// ProjectWorkers bounds concurrent file analyses.
	ProjectWorkers int
}

// Load builds a Config from environment variables, reading a .env file
// first when one is present. Missing variables fall back to defaults.
func Load() *Config {
	// A missing .env is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		ProjectRoot:                 getEnv("CODEGRAPH_PROJECT_ROOT", "."),
		DatabaseDSN:                 getEnv("CODEGRAPH_DB", ".codegraph/graph.db"),
		Debug:                       getBool("CODEGRAPH_DEBUG", false),
		ParserMaxSuccessiveUses:     getInt("CODEGRAPH_PARSER_MAX_USES", 100),
		InferenceCacheEnabled:       getBool("CODEGRAPH_INFERENCE_CACHE", true),
		InferenceCacheStrategy:      graph.CacheStrategy(getEnv("CODEGRAPH_INFERENCE_CACHE_STRATEGY", string(graph.CacheLazy))),
		DefaultMaxPathLength:        getInt("CODEGRAPH_MAX_PATH_LENGTH", 10),
		DefaultMaxInheritanceDepth:  getInt("CODEGRAPH_MAX_INHERITANCE_DEPTH", 5),
		DetectCycles:                getBool("CODEGRAPH_DETECT_CYCLES", true),
		ConnectionPoolSize:          getInt("CODEGRAPH_DB_POOL_SIZE", 4),
		ProjectWorkers:              getInt("CODEGRAPH_WORKERS", 4),
	}

	switch cfg.InferenceCacheStrategy {
	case graph.CacheEager, graph.CacheLazy, graph.CacheManual:
	default:
		cfg.InferenceCacheStrategy = graph.CacheLazy
	}

	if raw := os.Getenv("CODEGRAPH_LANGUAGES"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			l := lang.Language(strings.TrimSpace(part))
			if lang.Valid(l) {
				cfg.SupportedLanguages = append(cfg.SupportedLanguages, l)
			}
		}
	}

	if raw := os.Getenv("CODEGRAPH_CLEANUP_EDGE_TYPES"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if t := strings.TrimSpace(part); t != "" {
				cfg.AnalyzerCleanupEdgeTypes = append(cfg.AnalyzerCleanupEdgeTypes, t)
			}
		}
	}

	return cfg
}

// InferenceConfig converts the flat settings into the engine's config.
func (c *Config) InferenceConfig() graph.InferenceConfig {
	return graph.InferenceConfig{
		CacheEnabled:               c.InferenceCacheEnabled,
		CacheStrategy:              c.InferenceCacheStrategy,
		DefaultMaxPathLength:       c.DefaultMaxPathLength,
		DefaultMaxInheritanceDepth: c.DefaultMaxInheritanceDepth,
		DetectCycles:               c.DetectCycles,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
