// Package config loads the store's configuration from environment
// variables (STM_-prefixed), optionally overlaid by a YAML file,
// following this codebase's env-var-first configuration convention.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/stm/pkg/decay"
)

// DecayConfig selects and parameterizes the decay model.
type DecayConfig struct {
	Model        string  `yaml:"model"` // "exponential" | "power_law" | "two_component"
	Beta         float64 `yaml:"beta"`
	HalfLifeDays float64 `yaml:"half_life_days"`
	Alpha        float64 `yaml:"alpha"`
	FastLambda   float64 `yaml:"fast_lambda"`
	SlowLambda   float64 `yaml:"slow_lambda"`
	FastWeight   float64 `yaml:"fast_weight"`
}

// ThresholdConfig carries the forget/promote/urgent cutoffs.
type ThresholdConfig struct {
	Forget            float64 `yaml:"forget"`
	Promote           float64 `yaml:"promote"`
	PromoteUseCount   int     `yaml:"promote_use_count"`
	PromoteWindowDays float64 `yaml:"promote_window_days"`
	Urgent            float64 `yaml:"urgent"`
}

// StorageConfig locates the JSONL storage directory.
type StorageConfig struct {
	Root string `yaml:"root"`
}

// VaultConfig locates the external long-term markdown vault.
type VaultConfig struct {
	Path    string `yaml:"path"`
	Enabled bool   `yaml:"enabled"`
}

// EmbeddingConfig toggles optional embedding generation.
type EmbeddingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
}

// ActivationConfig bounds the activation hot path.
type ActivationConfig struct {
	MaxMemories         int     `yaml:"max_memories"`
	ActivationThreshold float64 `yaml:"activation_threshold"`
	EnableSpreading     bool    `yaml:"enable_spreading"`
	DeadlineMillis      int     `yaml:"deadline_millis"`
}

// ClusteringConfig parameterizes the cluster detector.
type ClusteringConfig struct {
	LinkThreshold float64 `yaml:"link_threshold"`
	MinSize       int     `yaml:"min_size"`
	MaxSize       int     `yaml:"max_size"`
	SemanticHi    float64 `yaml:"semantic_hi"`
}

// Config is the full, injected configuration value. Nothing in the
// core reads the environment directly; only LoadFromEnv does.
type Config struct {
	Decay      DecayConfig      `yaml:"decay"`
	Thresholds ThresholdConfig  `yaml:"thresholds"`
	Storage    StorageConfig    `yaml:"storage"`
	Vault      VaultConfig      `yaml:"vault"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Activation ActivationConfig `yaml:"activation"`
	Clustering ClusteringConfig `yaml:"clustering"`
}

// Default returns a Config with the spec's stated defaults.
func Default() Config {
	return Config{
		Decay: DecayConfig{Model: "exponential", Beta: 0.6, HalfLifeDays: 3, Alpha: 1.0, FastLambda: 0, SlowLambda: 0, FastWeight: 0.5},
		Thresholds: ThresholdConfig{
			Forget: 0.05, Promote: 0.8, PromoteUseCount: 5, PromoteWindowDays: 7, Urgent: 0.10,
		},
		Storage:    StorageConfig{Root: "./stm-data"},
		Vault:      VaultConfig{Path: "", Enabled: false},
		Embedding:  EmbeddingConfig{Enabled: false, Model: ""},
		Activation: ActivationConfig{MaxMemories: 10, ActivationThreshold: 0.3, EnableSpreading: true, DeadlineMillis: 50},
		Clustering: ClusteringConfig{LinkThreshold: 0.83, MinSize: 2, MaxSize: 12, SemanticHi: 0.88},
	}
}

// LoadFromEnv starts from Default() and overlays STM_-prefixed
// environment variables.
func LoadFromEnv() Config {
	c := Default()
	overlayString(&c.Decay.Model, "STM_DECAY_MODEL")
	overlayFloat(&c.Decay.Beta, "STM_DECAY_BETA")
	overlayFloat(&c.Decay.HalfLifeDays, "STM_DECAY_HALF_LIFE_DAYS")
	overlayFloat(&c.Decay.Alpha, "STM_DECAY_ALPHA")
	overlayFloat(&c.Decay.FastLambda, "STM_DECAY_FAST_LAMBDA")
	overlayFloat(&c.Decay.SlowLambda, "STM_DECAY_SLOW_LAMBDA")
	overlayFloat(&c.Decay.FastWeight, "STM_DECAY_FAST_WEIGHT")

	overlayFloat(&c.Thresholds.Forget, "STM_THRESHOLD_FORGET")
	overlayFloat(&c.Thresholds.Promote, "STM_THRESHOLD_PROMOTE")
	overlayInt(&c.Thresholds.PromoteUseCount, "STM_THRESHOLD_PROMOTE_USE_COUNT")
	overlayFloat(&c.Thresholds.PromoteWindowDays, "STM_THRESHOLD_PROMOTE_WINDOW_DAYS")
	overlayFloat(&c.Thresholds.Urgent, "STM_THRESHOLD_URGENT")

	overlayString(&c.Storage.Root, "STM_STORAGE_ROOT")
	overlayString(&c.Vault.Path, "STM_VAULT_PATH")
	overlayBool(&c.Vault.Enabled, "STM_VAULT_ENABLED")
	overlayBool(&c.Embedding.Enabled, "STM_EMBEDDING_ENABLED")
	overlayString(&c.Embedding.Model, "STM_EMBEDDING_MODEL")

	overlayInt(&c.Activation.MaxMemories, "STM_ACTIVATION_MAX_MEMORIES")
	overlayFloat(&c.Activation.ActivationThreshold, "STM_ACTIVATION_THRESHOLD")
	overlayBool(&c.Activation.EnableSpreading, "STM_ACTIVATION_ENABLE_SPREADING")
	overlayInt(&c.Activation.DeadlineMillis, "STM_ACTIVATION_DEADLINE_MILLIS")

	return c
}

// LoadFromYAML overlays the YAML document at path onto base.
func LoadFromYAML(base Config, path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &base); err != nil {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}
	return base, nil
}

// Validate checks every field with a stated constraint, joining all
// violations rather than failing on the first.
func (c Config) Validate() error {
	var errs []error
	switch c.Decay.Model {
	case "exponential", "power_law", "two_component":
	default:
		errs = append(errs, fmt.Errorf("decay.model: unknown model %q", c.Decay.Model))
	}
	if c.Decay.Beta < 0 {
		errs = append(errs, errors.New("decay.beta: must be >= 0"))
	}
	if c.Decay.HalfLifeDays <= 0 {
		errs = append(errs, errors.New("decay.half_life_days: must be > 0"))
	}
	if c.Thresholds.Forget < 0 || c.Thresholds.Forget > 1 {
		errs = append(errs, errors.New("thresholds.forget: must be in [0,1]"))
	}
	if c.Thresholds.Urgent < 0 || c.Thresholds.Urgent > 1 {
		errs = append(errs, errors.New("thresholds.urgent: must be in [0,1]"))
	}
	if c.Storage.Root == "" {
		errs = append(errs, errors.New("storage.root: must not be empty"))
	}
	if c.Activation.MaxMemories < 1 || c.Activation.MaxMemories > 100 {
		errs = append(errs, errors.New("activation.max_memories: must be in [1,100]"))
	}
	if c.Activation.ActivationThreshold < 0 || c.Activation.ActivationThreshold > 1 {
		errs = append(errs, errors.New("activation.activation_threshold: must be in [0,1]"))
	}
	return errors.Join(errs...)
}

// DecayParams converts the configured DecayConfig into decay.Params.
// For the exponential model Lambda is derived from HalfLifeDays;
// FastLambda/SlowLambda are passed through as configured, not derived.
func (c Config) DecayParams() decay.Params {
	p := decay.Params{
		Beta:         c.Decay.Beta,
		Alpha:        c.Decay.Alpha,
		HalfLifeDays: c.Decay.HalfLifeDays,
		FastLambda:   c.Decay.FastLambda,
		SlowLambda:   c.Decay.SlowLambda,
		FastWeight:   c.Decay.FastWeight,
	}
	switch c.Decay.Model {
	case "power_law":
		p.Model = decay.ModelPowerLaw
	case "two_component":
		p.Model = decay.ModelTwoComponent
	default:
		p.Model = decay.ModelExponential
		p.Lambda = decay.LambdaFromHalfLife(c.Decay.HalfLifeDays)
	}
	return p
}

// Thresholds converts the configured ThresholdConfig into decay.Thresholds.
func (c Config) Thresholds() decay.Thresholds {
	return decay.Thresholds{
		Forget:            c.Thresholds.Forget,
		Promote:           c.Thresholds.Promote,
		PromoteUseCount:   c.Thresholds.PromoteUseCount,
		PromoteWindowDays: c.Thresholds.PromoteWindowDays,
		Urgent:            c.Thresholds.Urgent,
	}
}

func overlayString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func overlayBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v == "true" || v == "1"
	}
}

func overlayFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func overlayInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
