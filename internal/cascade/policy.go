package cascade

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/jurisearch/statuteqa/internal/config"
)

// Policy controls when the cascade stops escalating and how wide each tier
// searches.
type Policy struct {
	AcceptScore       float64       // result quality needed to stop escalating
	MinSufficientHits int           // accumulated hit count that ends the cascade outright
	PerTierTimeout    time.Duration // budget for one tier's search call
	MaxHitsPerTier    int           // per-tier result cap
	ParallelFallback  bool          // run tiers 3 and 4 concurrently
	BreadthBoost      float64       // limit multiplier applied for low-confidence intents
}

// DefaultPolicy returns the tunables the cascade ships with.
func DefaultPolicy() Policy {
	return Policy{
		AcceptScore:       0.55,
		MinSufficientHits: 3,
		PerTierTimeout:    8 * time.Second,
		MaxHitsPerTier:    10,
		ParallelFallback:  false,
		BreadthBoost:      1.5,
	}
}

// FromConfig builds the effective policy. A standalone policy file wins when
// configured; otherwise the cascade config section is used directly.
func FromConfig(cfg config.CascadeConfig) (Policy, error) {
	if cfg.PolicyFile != "" {
		return LoadPolicy(cfg.PolicyFile)
	}
	p := Policy{
		AcceptScore:       cfg.AcceptScore,
		MinSufficientHits: cfg.MinSufficientHits,
		PerTierTimeout:    time.Duration(cfg.PerTierTimeoutSec) * time.Second,
		MaxHitsPerTier:    cfg.MaxHitsPerTier,
		ParallelFallback:  cfg.ParallelFallback,
		BreadthBoost:      cfg.BreadthBoost,
	}
	return p.withDefaults(), nil
}

// LoadPolicy reads an escalation policy from a standalone YAML file.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, eris.Wrapf(err, "cascade: read policy %s", path)
	}

	// The YAML has a top-level "cascade" key.
	var wrapper struct {
		Cascade struct {
			AcceptScore        float64 `yaml:"accept_score"`
			MinSufficientHits  int     `yaml:"min_sufficient_hits"`
			PerTierTimeoutSecs int     `yaml:"per_tier_timeout_secs"`
			MaxHitsPerTier     int     `yaml:"max_hits_per_tier"`
			ParallelFallback   bool    `yaml:"parallel_fallback"`
			BreadthBoost       float64 `yaml:"breadth_boost"`
		} `yaml:"cascade"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Policy{}, eris.Wrap(err, "cascade: parse policy")
	}

	w := wrapper.Cascade
	p := Policy{
		AcceptScore:       w.AcceptScore,
		MinSufficientHits: w.MinSufficientHits,
		PerTierTimeout:    time.Duration(w.PerTierTimeoutSecs) * time.Second,
		MaxHitsPerTier:    w.MaxHitsPerTier,
		ParallelFallback:  w.ParallelFallback,
		BreadthBoost:      w.BreadthBoost,
	}
	return p.withDefaults(), nil
}

// withDefaults fills unset values so a sparse policy still runs.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.AcceptScore <= 0 {
		p.AcceptScore = def.AcceptScore
	}
	if p.MinSufficientHits <= 0 {
		p.MinSufficientHits = def.MinSufficientHits
	}
	if p.PerTierTimeout <= 0 {
		p.PerTierTimeout = def.PerTierTimeout
	}
	if p.MaxHitsPerTier <= 0 {
		p.MaxHitsPerTier = def.MaxHitsPerTier
	}
	if p.BreadthBoost <= 0 {
		p.BreadthBoost = def.BreadthBoost
	}
	return p
}
