package reconcile

import (
	"fmt"
	"time"

	"semantic-linker/internal/domain/entity"
)

// ScoreEpsilon is the smallest score change written back to an existing edge.
const ScoreEpsilon = 1e-6

// Config holds the linking policy and resource limits of a run.
type Config struct {
	// MinSimilarity is the inclusive score threshold for proposing a link.
	MinSimilarity float64

	// RetirementThreshold retires applied semantic edges scoring below it.
	// It must not exceed MinSimilarity.
	RetirementThreshold float64

	// MaxLinksPerArticle caps live applied plus proposed outbound links.
	MaxLinksPerArticle int

	// NeighborK is how many neighbors are ranked per source article.
	NeighborK int

	// EmbedConcurrency bounds concurrent embedding requests.
	EmbedConcurrency int

	// EmbedTimeout bounds one embedding request.
	EmbedTimeout time.Duration

	// RefreshBudget is the wall-clock budget of a run; exceeding it during the
	// refresh aborts the run. Zero disables the budget.
	RefreshBudget time.Duration

	// MaxEmbedRunes truncates the text sent to the embedding service.
	MaxEmbedRunes int

	// StringMatchEnabled adds keyword-match links for pairs without a semantic link.
	StringMatchEnabled bool
}

// DefaultConfig returns the default linking policy.
func DefaultConfig() Config {
	return Config{
		MinSimilarity:       0.55,
		RetirementThreshold: 0.35,
		MaxLinksPerArticle:  5,
		NeighborK:           20,
		EmbedConcurrency:    8,
		EmbedTimeout:        10 * time.Second,
		RefreshBudget:       10 * time.Minute,
		MaxEmbedRunes:       entity.DefaultMaxEmbedRunes,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MinSimilarity < -1 || c.MinSimilarity > 1 {
		return &entity.ValidationError{Field: "MinSimilarity", Message: fmt.Sprintf("must be within [-1, 1], got %v", c.MinSimilarity)}
	}
	if c.RetirementThreshold > c.MinSimilarity {
		return &entity.ValidationError{
			Field:   "RetirementThreshold",
			Message: fmt.Sprintf("must be <= MinSimilarity (%v), got %v", c.MinSimilarity, c.RetirementThreshold),
		}
	}
	if c.MaxLinksPerArticle < 0 {
		return &entity.InvalidBudgetError{Budget: c.MaxLinksPerArticle}
	}
	if c.NeighborK <= 0 {
		return &entity.ValidationError{Field: "NeighborK", Message: fmt.Sprintf("must be positive, got %d", c.NeighborK)}
	}
	if c.EmbedConcurrency <= 0 {
		return &entity.ValidationError{Field: "EmbedConcurrency", Message: fmt.Sprintf("must be positive, got %d", c.EmbedConcurrency)}
	}
	if c.EmbedTimeout <= 0 {
		return &entity.ValidationError{Field: "EmbedTimeout", Message: fmt.Sprintf("must be positive, got %v", c.EmbedTimeout)}
	}
	if c.RefreshBudget < 0 {
		return &entity.ValidationError{Field: "RefreshBudget", Message: fmt.Sprintf("must not be negative, got %v", c.RefreshBudget)}
	}
	return nil
}

// WorkspaceOverride adjusts the policy of a single workspace. Nil fields keep the default.
type WorkspaceOverride struct {
	MinSimilarity       *float64 `yaml:"min_similarity"`
	RetirementThreshold *float64 `yaml:"retirement_threshold"`
	MaxLinksPerArticle  *int     `yaml:"max_links_per_article"`
	StringMatchEnabled  *bool    `yaml:"string_match_enabled"`
}

// Apply returns cfg with the override's fields replaced.
func (o WorkspaceOverride) Apply(cfg Config) Config {
	if o.MinSimilarity != nil {
		cfg.MinSimilarity = *o.MinSimilarity
	}
	if o.RetirementThreshold != nil {
		cfg.RetirementThreshold = *o.RetirementThreshold
	}
	if o.MaxLinksPerArticle != nil {
		cfg.MaxLinksPerArticle = *o.MaxLinksPerArticle
	}
	if o.StringMatchEnabled != nil {
		cfg.StringMatchEnabled = *o.StringMatchEnabled
	}
	return cfg
}
