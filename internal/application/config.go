package application

import (
	"runtime"
	"slices"

	"github.com/ahrav/go-nns/internal/domain"
)

// Aggregator type names accepted in AggregatorConfig.Type.
const (
	AggregatorArithmeticMean = "arithmetic_mean"
	AggregatorMedianPool     = "median_pool"
	AggregatorMinPool        = "min_pool"
)

// Default threshold constants used by the movement analysis.
const (
	// DefaultAccuracy is the instrument-precision tolerance (accThr).
	DefaultAccuracy = 0.025
	// DefaultCoefficient scales a channel's template amplitude into bThr.
	DefaultCoefficient = 0.2
)

// AnalysisConfig defines everything needed to score a dataset
// and serves as the primary configuration entry point for the system.
// The coefficient, the accuracy threshold and the channel pairings are all
// explicit here rather than compiled in, so the same engine can be run
// against varied thresholds.
type AnalysisConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning to ensure compatibility across system updates.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata contains descriptive information about the analysis.
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// Channels names the trajectory columns in file order.
	Channels []string `yaml:"channels" validate:"required,min=2,max=16,dive,channelname"`
	// Pairings lists the channel pairings to score. When empty, the six
	// quaternion pairings are used for W/X/Y/Z channels and every C(n,2)
	// combination otherwise.
	Pairings []domain.Pairing `yaml:"pairings,omitempty" validate:"omitempty,dive"`
	// Thresholds configures how tolerance thresholds are derived.
	Thresholds ThresholdConfig `yaml:"thresholds" validate:"required"`
	// Aggregator selects how pairing scores become a repetition score.
	Aggregator AggregatorConfig `yaml:"aggregator" validate:"required"`
	// Execution controls concurrency and failure handling.
	Execution ExecutionConfig `yaml:"execution"`
}

// Metadata provides descriptive information about an analysis.
type Metadata struct {
	// Name is the human-readable identifier for this analysis.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description provides a detailed explanation of the analysis.
	Description string `yaml:"description,omitempty" validate:"max=1000"`
	// Tags are categorical labels such as the joint or movement analyzed.
	Tags []string `yaml:"tags,omitempty" validate:"max=20,dive,min=1,max=50"`
}

// ThresholdConfig derives per-channel tolerance thresholds.
type ThresholdConfig struct {
	// Accuracy is the fixed instrument-precision tolerance (accThr).
	Accuracy float64 `yaml:"accuracy" validate:"gte=0"`
	// Coefficient multiplies a channel's template amplitude to give bThr.
	Coefficient float64 `yaml:"coefficient" validate:"gte=0,lte=1"`
}

// AggregatorConfig selects and configures the pairing-score aggregator.
type AggregatorConfig struct {
	// Type names the aggregator unit.
	Type string `yaml:"type" validate:"required,oneof=arithmetic_mean median_pool min_pool"`
	// RequireAllScores fails a repetition when any of its pairings failed.
	RequireAllScores bool `yaml:"require_all_scores"`
}

// ExecutionConfig controls how repetitions are scheduled.
type ExecutionConfig struct {
	// MaxConcurrency bounds the number of repetitions scored at once.
	// Zero selects runtime.NumCPU().
	MaxConcurrency int `yaml:"max_concurrency" validate:"min=0,max=1024"`
	// FailFast aborts the whole batch on the first pairing failure.
	FailFast bool `yaml:"fail_fast"`
}

// DefaultAnalysisConfig reproduces the standard movement analysis: four
// quaternion channels, six pairings, accThr 0.025, coefficient 0.2 and the
// arithmetic mean.
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		Version: "1.0.0",
		Metadata: Metadata{
			Name:        "quaternion-repeatability",
			Description: "Nearest-neighbor agreement of repetitions against the first trial.",
		},
		Channels: slices.Clone(domain.QuaternionChannels),
		Pairings: domain.DefaultPairings(),
		Thresholds: ThresholdConfig{
			Accuracy:    DefaultAccuracy,
			Coefficient: DefaultCoefficient,
		},
		Aggregator: AggregatorConfig{Type: AggregatorArithmeticMean},
		Execution:  ExecutionConfig{MaxConcurrency: runtime.NumCPU()},
	}
}

// EffectivePairings returns the configured pairings, or the default set
// for the configured channels when none are listed.
func (c *AnalysisConfig) EffectivePairings() []domain.Pairing {
	if len(c.Pairings) > 0 {
		return slices.Clone(c.Pairings)
	}
	if slices.Equal(c.Channels, domain.QuaternionChannels) {
		return domain.DefaultPairings()
	}
	return domain.AllPairings(c.Channels)
}

// ThresholdChannels returns the distinct second channels of the effective
// pairings, in first-use order. Only these need derived thresholds.
func (c *AnalysisConfig) ThresholdChannels() []string {
	var out []string
	for _, p := range c.EffectivePairings() {
		if !slices.Contains(out, p.Second) {
			out = append(out, p.Second)
		}
	}
	return out
}

// concurrency returns the effective repetition concurrency limit.
func (c *AnalysisConfig) concurrency() int {
	if c.Execution.MaxConcurrency > 0 {
		return c.Execution.MaxConcurrency
	}
	return runtime.NumCPU()
}
