package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/clustering"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/matching"
)

// Config holds the engine's static settings.
type Config struct {
	// Matching defaults
	DefaultMatchThreshold float64 `yaml:"default_match_threshold"`
	DefaultTopK           int     `yaml:"default_top_k"`
	ParallelPairs         int     `yaml:"parallel_pairs"`

	// Clustering threshold band accepted from callers
	MinClusterThreshold float64 `yaml:"min_cluster_threshold"`
	MaxClusterThreshold float64 `yaml:"max_cluster_threshold"`

	// Labels
	BroadThreshold  float64 `yaml:"broad_threshold"`
	LabelSampleSize int     `yaml:"label_sample_size"`
	LabelTokens     int     `yaml:"label_tokens"`
	LabelMaxLength  int     `yaml:"label_max_length"`

	// Display
	LargeThemeSize   int `yaml:"large_theme_size"`
	DisplayItemLimit int `yaml:"display_item_limit"` // 0 = all members
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	label := clustering.DefaultOptions()
	return Config{
		DefaultMatchThreshold: 0.75,
		DefaultTopK:           10,
		ParallelPairs:         matching.DefaultParallelPairs,
		MinClusterThreshold:   0.3,
		MaxClusterThreshold:   0.99,
		BroadThreshold:        label.BroadThreshold,
		LabelSampleSize:       label.SampleSize,
		LabelTokens:           label.MaxTokens,
		LabelMaxLength:        label.MaxLength,
		LargeThemeSize:        5,
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read engine config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse engine config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	switch {
	case !inUnit(c.DefaultMatchThreshold):
		return fmt.Errorf("default_match_threshold must be within [0, 1], got %v", c.DefaultMatchThreshold)
	case c.DefaultTopK <= 0:
		return fmt.Errorf("default_top_k must be positive, got %d", c.DefaultTopK)
	case !inUnit(c.MinClusterThreshold) || !inUnit(c.MaxClusterThreshold) || c.MinClusterThreshold > c.MaxClusterThreshold:
		return fmt.Errorf("cluster threshold band [%v, %v] must lie within [0, 1]", c.MinClusterThreshold, c.MaxClusterThreshold)
	case c.LabelSampleSize <= 0 || c.LabelTokens <= 0:
		return fmt.Errorf("label_sample_size and label_tokens must be positive")
	case c.LargeThemeSize <= 0:
		return fmt.Errorf("large_theme_size must be positive, got %d", c.LargeThemeSize)
	case c.DisplayItemLimit < 0:
		return fmt.Errorf("display_item_limit must not be negative, got %d", c.DisplayItemLimit)
	}
	return nil
}

func (c Config) labelOptions() clustering.Options {
	return clustering.Options{
		BroadThreshold: c.BroadThreshold,
		SampleSize:     c.LabelSampleSize,
		MaxTokens:      c.LabelTokens,
		MaxLength:      c.LabelMaxLength,
	}
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }
