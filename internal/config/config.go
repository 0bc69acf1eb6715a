// Package config holds the extraction settings that used to be hardcoded in
// each script: mask lists, subject suffix, threshold, output naming and
// mask groups. Settings are read from YAML or TOML.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Placeholders replaced in Output.Pattern
const (
	RegionPlaceholder  = "{region}"
	SubjectPlaceholder = "{subject}"
)

// Ragged row policies for aggregate tables
const (
	RaggedKeep   = "keep"
	RaggedPad    = "pad"
	RaggedReject = "reject"
)

// Group is an ordered list of masks whose values are concatenated per subject
type Group struct {
	Name   string   `yaml:"name" toml:"name"`
	Output string   `yaml:"output" toml:"output"`
	Masks  []string `yaml:"masks" toml:"masks"`
}

// Config represents the extractor configuration
type Config struct {
	// MaskDir is the directory the mask files are resolved against
	MaskDir string `yaml:"maskDir" toml:"mask_dir"`

	// SubjectSuffix identifies subject scans while walking a directory tree
	SubjectSuffix string `yaml:"subjectSuffix" toml:"subject_suffix"`

	// Masks lists mask file names in iteration order
	Masks []string `yaml:"masks" toml:"masks"`

	// Threshold drops values with |v| <= Threshold. nil keeps every value.
	Threshold *float64 `yaml:"threshold,omitempty" toml:"threshold,omitempty"`

	// NoThreshold disables Threshold, for formats without a null value
	NoThreshold bool `yaml:"noThreshold,omitempty" toml:"no_threshold,omitempty"`

	Output struct {
		Dir     string `yaml:"dir" toml:"dir"`
		Pattern string `yaml:"pattern" toml:"pattern"`
		Npy     bool   `yaml:"npy" toml:"npy"`
	} `yaml:"output" toml:"output"`

	Groups []Group `yaml:"groups" toml:"groups"`

	Ragged struct {
		Policy string `yaml:"policy" toml:"policy"`
		Pad    string `yaml:"pad" toml:"pad"`
	} `yaml:"ragged" toml:"ragged"`

	// Workers bounds the number of subjects processed at once. 0 uses every CPU.
	Workers int `yaml:"workers" toml:"workers"`

	Logging struct {
		File    string `yaml:"file" toml:"file"`
		MaxSize int    `yaml:"maxSize" toml:"max_log_size"`
		MaxAge  int    `yaml:"maxAge" toml:"max_log_age"`
		Level   string `yaml:"level" toml:"level"`
	} `yaml:"logging" toml:"logging"`
}

var cingulumMasks = []string{
	"cingulum_cingulate_gyrus_L.nii.gz",
	"cingulum_cingulate_gyrus_R.nii.gz",
	"cingulum_hippocampus_L.nii.gz",
	"cingulum_hippocampus_R.nii.gz",
}

var corpusMasks = []string{
	"corpus_callosum_body.nii.gz",
	"corpus_callosum_genu.nii.gz",
	"corpus_callosum_splenium.nii.gz",
}

// DefaultConfig returns the TBSS cingulum / corpus callosum setup
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.MaskDir = "."
	cfg.SubjectSuffix = "_masked_FAskel.nii.gz"
	cfg.Masks = append(append([]string{}, cingulumMasks...), corpusMasks...)

	thr := 0.000001
	cfg.Threshold = &thr

	cfg.Output.Dir = "."
	cfg.Output.Pattern = "voxel_" + RegionPlaceholder + ".txt"

	cfg.Groups = []Group{
		{Name: "Cingulum", Output: "ADNI_Cingulum_Data.csv", Masks: append([]string{}, cingulumMasks...)},
		{Name: "Corpus", Output: "ADNI_Corpus_Data.csv", Masks: append([]string{}, corpusMasks...)},
	}

	cfg.Ragged.Policy = RaggedKeep
	cfg.Ragged.Pad = "NaN"

	cfg.Logging.MaxSize = 100
	cfg.Logging.MaxAge = 28
	cfg.Logging.Level = "info"

	return cfg
}

// LoadConfig reads a YAML (.yaml, .yml) or TOML (.toml) file on top of the defaults.
// A missing file yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration as YAML
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for values the extractor cannot run with
func (c *Config) Validate() error {
	if len(c.Masks) == 0 {
		return errors.New("no masks configured")
	}
	if c.SubjectSuffix == "" {
		return errors.New("subject suffix is empty")
	}
	if c.Threshold != nil && (*c.Threshold < 0 || math.IsNaN(*c.Threshold)) {
		return fmt.Errorf("threshold must be >= 0, got %v", *c.Threshold)
	}
	if !strings.Contains(c.Output.Pattern, RegionPlaceholder) {
		return fmt.Errorf("output pattern %q lacks %s", c.Output.Pattern, RegionPlaceholder)
	}

	switch c.Ragged.Policy {
	case RaggedKeep, RaggedReject:
	case RaggedPad:
		if _, err := c.PadValue(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown ragged policy %q", c.Ragged.Policy)
	}

	known := make(map[string]bool, len(c.Masks))
	for _, m := range c.Masks {
		if known[m] {
			return fmt.Errorf("mask %s listed twice", m)
		}
		known[m] = true
	}

	seen := make(map[string]bool, len(c.Groups))
	for _, g := range c.Groups {
		if g.Name == "" || g.Output == "" {
			return errors.New("group needs a name and an output file")
		}
		if seen[g.Name] {
			return fmt.Errorf("group %s listed twice", g.Name)
		}
		seen[g.Name] = true
		if len(g.Masks) == 0 {
			return fmt.Errorf("group %s has no masks", g.Name)
		}
		for _, m := range g.Masks {
			if !known[m] {
				return fmt.Errorf("group %s uses mask %s which is not in masks", g.Name, m)
			}
		}
	}

	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}

	return nil
}

// PadValue parses the sentinel used by the pad policy
func (c *Config) PadValue() (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(c.Ragged.Pad), 64)
	if err != nil {
		return 0, fmt.Errorf("bad pad value %q: %v", c.Ragged.Pad, err)
	}
	return v, nil
}

// Namer returns the output naming scheme: subject and region -> file path under Output.Dir
func (c *Config) Namer() func(subject, region string) string {
	dir := c.Output.Dir
	pattern := c.Output.Pattern
	return func(subject, region string) string {
		r := strings.NewReplacer(SubjectPlaceholder, subject, RegionPlaceholder, region)
		return filepath.Join(dir, r.Replace(pattern))
	}
}

// PerSubjectOutput reports whether region tables of different subjects get distinct paths
func (c *Config) PerSubjectOutput() bool {
	return strings.Contains(c.Output.Pattern, SubjectPlaceholder)
}

// ThresholdValue returns the threshold to apply, nil when thresholding is off
func (c *Config) ThresholdValue() *float64 {
	if c.NoThreshold || c.Threshold == nil {
		return nil
	}
	thr := *c.Threshold
	return &thr
}

// NumWorkers returns Workers, or the CPU count when unset
func (c *Config) NumWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
