// Package config assembles the linking engine configuration from environment
// variables and an optional YAML file of per-workspace overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	envconfig "semantic-linker/internal/pkg/config"
	"semantic-linker/internal/usecase/reconcile"
)

// Embedding store backends.
const (
	StorePostgres = "postgres"
	StoreBolt     = "bolt"
	StoreMemory   = "memory"
)

// LinkerConfig holds configuration for embedding refresh and link selection.
type LinkerConfig struct {
	// CurrentModelVersion is the model version new embeddings are computed with.
	// Embeddings of any other version are treated as absent.
	// Default: "text-embedding-3-small"
	CurrentModelVersion string

	// ModelDimensions registers the vector length of each known model version.
	// Format: "v1=1536,v2=3072"
	ModelDimensions map[string]int

	// Reconcile is the default linking policy.
	Reconcile reconcile.Config

	// UseLSH switches the similarity index from exact all-pairs to LSH buckets.
	UseLSH bool

	// EmbeddingStore selects the embedding backend: postgres, bolt or memory.
	// Default: "postgres"
	EmbeddingStore string

	// BoltPath is the database file used when EmbeddingStore is "bolt".
	BoltPath string

	// ArticlesTable is the read-only table articles are loaded from.
	// Default: "articles"
	ArticlesTable string

	// ConfigFile is the optional YAML override file that was loaded.
	ConfigFile string

	// Overrides adjusts the policy of individual workspaces.
	Overrides map[string]reconcile.WorkspaceOverride
}

// overrideFile is the YAML layout of LINKER_CONFIG_FILE.
//
//	workspaces:
//	  acme:
//	    min_similarity: 0.6
//	    max_links_per_article: 3
type overrideFile struct {
	Workspaces map[string]reconcile.WorkspaceOverride `yaml:"workspaces"`
}

// DefaultLinkerConfig returns the configuration used when no variables are set.
func DefaultLinkerConfig() LinkerConfig {
	return LinkerConfig{
		CurrentModelVersion: "text-embedding-3-small",
		ModelDimensions: map[string]int{
			"text-embedding-3-small": 1536,
			"text-embedding-3-large": 3072,
		},
		Reconcile:      reconcile.DefaultConfig(),
		EmbeddingStore: StorePostgres,
		BoltPath:       "embeddings.db",
		ArticlesTable:  "articles",
	}
}

// LoadLinkerConfig loads the linker configuration from environment variables.
// Invalid values fall back to their defaults with a warning. A configuration
// that is inconsistent as a whole, or an unreadable override file, is an error.
//
// Environment variables:
//   - EMBEDDING_MODEL_VERSION, EMBEDDING_MODEL_DIMENSIONS
//   - LINK_MIN_SIMILARITY, LINK_RETIREMENT_THRESHOLD, LINK_MAX_PER_ARTICLE
//   - LINK_NEIGHBOR_K, EMBED_CONCURRENCY, EMBED_TIMEOUT, REFRESH_BUDGET, EMBED_MAX_RUNES
//   - STRING_MATCH_ENABLED, SIMILARITY_USE_LSH
//   - EMBEDDING_STORE, EMBEDDING_BOLT_PATH, ARTICLES_TABLE
//   - LINKER_CONFIG_FILE
func LoadLinkerConfig(logger *slog.Logger, metrics *envconfig.ConfigMetrics) (*LinkerConfig, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := DefaultLinkerConfig()
	rec := envconfig.NewRecorder(logger, metrics)
	defer rec.Finish()

	cfg.CurrentModelVersion = envconfig.LoadEnvString("EMBEDDING_MODEL_VERSION", cfg.CurrentModelVersion)
	cfg.ModelDimensions = rec.Track("model_dimensions",
		envconfig.LoadEnvIntMap("EMBEDDING_MODEL_DIMENSIONS", cfg.ModelDimensions, envconfig.ValidatePositiveIntMap)).(map[string]int)

	similarity := func(v float64) error { return envconfig.ValidateFloatRange(v, -1, 1) }
	rc := &cfg.Reconcile
	rc.MinSimilarity = rec.Track("min_similarity",
		envconfig.LoadEnvFloat("LINK_MIN_SIMILARITY", rc.MinSimilarity, similarity)).(float64)
	rc.RetirementThreshold = rec.Track("retirement_threshold",
		envconfig.LoadEnvFloat("LINK_RETIREMENT_THRESHOLD", rc.RetirementThreshold, similarity)).(float64)
	rc.MaxLinksPerArticle = rec.Track("max_links_per_article",
		envconfig.LoadEnvInt("LINK_MAX_PER_ARTICLE", rc.MaxLinksPerArticle, func(v int) error {
			return envconfig.ValidateIntRange(v, 0, 100)
		})).(int)
	rc.NeighborK = rec.Track("neighbor_k",
		envconfig.LoadEnvInt("LINK_NEIGHBOR_K", rc.NeighborK, func(v int) error {
			return envconfig.ValidateIntRange(v, 1, 1000)
		})).(int)
	rc.EmbedConcurrency = rec.Track("embed_concurrency",
		envconfig.LoadEnvInt("EMBED_CONCURRENCY", rc.EmbedConcurrency, func(v int) error {
			return envconfig.ValidateIntRange(v, 1, 64)
		})).(int)
	rc.EmbedTimeout = rec.Track("embed_timeout",
		envconfig.LoadEnvDuration("EMBED_TIMEOUT", rc.EmbedTimeout, func(d time.Duration) error {
			return envconfig.ValidateDuration(d, time.Second, 5*time.Minute)
		})).(time.Duration)
	rc.RefreshBudget = rec.Track("refresh_budget",
		envconfig.LoadEnvDuration("REFRESH_BUDGET", rc.RefreshBudget, func(d time.Duration) error {
			return envconfig.ValidateDuration(d, 0, 24*time.Hour)
		})).(time.Duration)
	rc.MaxEmbedRunes = rec.Track("max_embed_runes",
		envconfig.LoadEnvInt("EMBED_MAX_RUNES", rc.MaxEmbedRunes, func(v int) error {
			return envconfig.ValidateIntRange(v, 1, 1_000_000)
		})).(int)
	rc.StringMatchEnabled = rec.Track("string_match_enabled",
		envconfig.LoadEnvBool("STRING_MATCH_ENABLED", rc.StringMatchEnabled)).(bool)

	cfg.UseLSH = rec.Track("use_lsh", envconfig.LoadEnvBool("SIMILARITY_USE_LSH", cfg.UseLSH)).(bool)
	cfg.EmbeddingStore = rec.Track("embedding_store",
		envconfig.LoadEnvWithFallback("EMBEDDING_STORE", cfg.EmbeddingStore, validateStore)).(string)
	cfg.BoltPath = envconfig.LoadEnvString("EMBEDDING_BOLT_PATH", cfg.BoltPath)
	cfg.ArticlesTable = envconfig.LoadEnvString("ARTICLES_TABLE", cfg.ArticlesTable)

	if path := os.Getenv("LINKER_CONFIG_FILE"); path != "" {
		overrides, err := LoadOverrides(path)
		if err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
		cfg.Overrides = overrides
		logger.Info("workspace overrides loaded",
			slog.String("file", path),
			slog.Int("workspaces", len(overrides)))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid linker configuration: %w", err)
	}
	return &cfg, nil
}

// LoadOverrides reads per-workspace overrides from a YAML file.
func LoadOverrides(path string) (map[string]reconcile.WorkspaceOverride, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read override file: %w", err)
	}
	var file overrideFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse override file %s: %w", path, err)
	}
	return file.Workspaces, nil
}

// Validate checks cross-field consistency, including every workspace override.
func (c *LinkerConfig) Validate() error {
	if c.CurrentModelVersion == "" {
		return fmt.Errorf("EMBEDDING_MODEL_VERSION cannot be empty")
	}
	if d, ok := c.ModelDimensions[c.CurrentModelVersion]; !ok || d <= 0 {
		return fmt.Errorf("EMBEDDING_MODEL_DIMENSIONS has no dimension for model version %q", c.CurrentModelVersion)
	}
	if c.EmbeddingStore == StoreBolt && c.BoltPath == "" {
		return fmt.Errorf("EMBEDDING_BOLT_PATH cannot be empty when EMBEDDING_STORE=bolt")
	}
	if err := c.Reconcile.Validate(); err != nil {
		return err
	}
	for ws, o := range c.Overrides {
		if err := o.Apply(c.Reconcile).Validate(); err != nil {
			return fmt.Errorf("workspace %q override: %w", ws, err)
		}
	}
	return nil
}

func validateStore(s string) error {
	switch s {
	case StorePostgres, StoreBolt, StoreMemory:
		return nil
	}
	return fmt.Errorf("unknown embedding store %q, expected postgres, bolt or memory", s)
}
