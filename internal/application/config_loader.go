package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-nns/internal/domain"
	"github.com/ahrav/go-nns/internal/ports"
)

// ConfigLoader provides YAML configuration parsing, validation, and caching
// for analyses, turning declarative YAML into ready-to-run BatchAggregators.
// Use ConfigLoader to load analyses from files or readers while benefiting
// from SHA256-based caching and comprehensive validation.
type ConfigLoader struct {
	// validator performs struct field validation and custom validation
	// rules for analysis configurations.
	validator *validator.Validate
	// unitRegistry provides factory methods for creating scoring units.
	unitRegistry ports.UnitRegistry
	// opts are applied to every BatchAggregator the loader builds.
	opts []BatchOption
	// cache stores compiled aggregators indexed by SHA256 hash of the
	// normalized configuration. Cached aggregators are immutable.
	cache map[string]*BatchAggregator
	// cacheMu provides thread-safe access to the cache map.
	cacheMu sync.RWMutex
	// sf prevents duplicate compilation when multiple goroutines
	// request the same configuration simultaneously.
	sf singleflight.Group
}

// NewConfigLoader creates a new loader with validation capabilities and an
// empty cache. The options are passed to every BatchAggregator it builds.
// NewConfigLoader returns an error if validator registration fails.
func NewConfigLoader(unitRegistry ports.UnitRegistry, opts ...BatchOption) (*ConfigLoader, error) {
	v, err := newConfigValidator()
	if err != nil {
		return nil, err
	}

	return &ConfigLoader{
		validator:    v,
		unitRegistry: unitRegistry,
		opts:         opts,
		cache:        make(map[string]*BatchAggregator),
	}, nil
}

// load is the common implementation for loading aggregators from byte data,
// utilizing singleflight to prevent duplicate compilation and SHA256-based
// caching for efficiency.
func (cl *ConfigLoader) load(data []byte) (*BatchAggregator, error) {
	config, err := cl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Hash the normalized config, not the raw bytes.
	hash, err := calculateConfigHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := cl.sf.Do(hash, func() (any, error) {
		if batch, ok := cl.getCached(hash); ok {
			return batch, nil
		}

		if err := cl.ValidateConfig(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}

		batch, err := NewBatchAggregator(config, cl.unitRegistry, cl.opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to build aggregator: %w", err)
		}

		cl.storeCached(hash, batch)
		return batch, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*BatchAggregator), nil
}

// LoadFromFile loads an analysis configuration from a YAML file and builds
// its BatchAggregator.
func (cl *ConfigLoader) LoadFromFile(_ context.Context, path string) (*BatchAggregator, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ports.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return cl.load(data)
}

// LoadFromReader loads an analysis configuration from an io.Reader.
func (cl *ConfigLoader) LoadFromReader(_ context.Context, r io.Reader) (*BatchAggregator, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	return cl.load(data)
}

// parseYAML unmarshals YAML into an AnalysisConfig using strict decoding so
// configuration typos are not silently ignored. Omitted sections keep the
// values of DefaultAnalysisConfig.
func (cl *ConfigLoader) parseYAML(data []byte) (*AnalysisConfig, error) {
	config := DefaultAnalysisConfig()
	config.Pairings = nil

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return config, nil
}

// ValidateConfig performs struct field validation and semantic validation
// of relationships between configuration elements.
func (cl *ConfigLoader) ValidateConfig(config *AnalysisConfig) error {
	return validateAnalysisConfig(cl.validator, config)
}

func validateAnalysisConfig(v *validator.Validate, config *AnalysisConfig) error {
	if err := v.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}

	if err := validateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}

	return nil
}

// validateSemantics enforces rules that struct tags cannot express: unique
// channel names, and pairings that reference two distinct known channels
// without repeating. Names are compared case-folded, as trajectories
// resolve them.
func validateSemantics(config *AnalysisConfig) error {
	verr := domain.NewValidationError("AnalysisConfig")

	// Channels resolve case-folded, so "a" and "A" name the same column.
	known := make(map[string]string, len(config.Channels))
	for _, ch := range config.Channels {
		key := domain.FoldChannel(ch)
		if prev, dup := known[key]; dup {
			verr.AddError(fmt.Sprintf("duplicate channel %q (same as %q)", ch, prev))
			continue
		}
		known[key] = ch
	}

	seen := make(map[domain.Pairing]struct{})
	for _, p := range config.EffectivePairings() {
		key := domain.FoldPairing(p)
		if _, ok := known[key.First]; !ok {
			verr.AddError(fmt.Sprintf("pairing %s references unknown channel %q", p.Label(), p.First))
		}
		if _, ok := known[key.Second]; !ok {
			verr.AddError(fmt.Sprintf("pairing %s references unknown channel %q", p.Label(), p.Second))
		}
		if key.First == key.Second {
			verr.AddError(fmt.Sprintf("pairing %s uses the same channel twice", p.Label()))
		}
		if _, dup := seen[key]; dup {
			verr.AddError(fmt.Sprintf("duplicate pairing %s", p.Label()))
		}
		seen[key] = struct{}{}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// calculateConfigHash computes the SHA256 hash of a normalized config so
// semantically identical configurations share a cache entry regardless of
// whitespace or key ordering differences.
func calculateConfigHash(config *AnalysisConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

// getCached returns a previously built aggregator for the hash, if any.
func (cl *ConfigLoader) getCached(hash string) (*BatchAggregator, bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()

	batch, ok := cl.cache[hash]
	return batch, ok
}

// storeCached records an aggregator under its configuration hash.
func (cl *ConfigLoader) storeCached(hash string, batch *BatchAggregator) {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache[hash] = batch
}

// ClearCache removes all cached aggregators, forcing subsequent loads to
// rebuild from source.
func (cl *ConfigLoader) ClearCache() {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache = make(map[string]*BatchAggregator)
}

// channelNamePattern restricts channel names to identifiers usable as CSV
// headers and metric label values.
var channelNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,31}$`)

// newConfigValidator returns a validator with the custom analysis rules registered.
func newConfigValidator() (*validator.Validate, error) {
	v := validator.New()

	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return nil, fmt.Errorf("failed to register semver validator: %w", err)
	}
	if err := v.RegisterValidation("channelname", validateChannelName); err != nil {
		return nil, fmt.Errorf("failed to register channelname validator: %w", err)
	}

	return v, nil
}

// defaultValidator backs validation of configs built in code.
var defaultValidator = sync.OnceValues(newConfigValidator)

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3 && major >= 0 && minor >= 0 && patch >= 0
}

// validateChannelName checks a channel name against channelNamePattern.
func validateChannelName(fl validator.FieldLevel) bool {
	return channelNamePattern.MatchString(fl.Field().String())
}
