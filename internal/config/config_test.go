package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if len(cfg.Masks) != 7 {
		t.Errorf("got %d masks, want 7", len(cfg.Masks))
	}
	if len(cfg.Groups) != 2 || len(cfg.Groups[0].Masks) != 4 || len(cfg.Groups[1].Masks) != 3 {
		t.Errorf("unexpected groups: %+v", cfg.Groups)
	}
	if thr := cfg.ThresholdValue(); thr == nil || *thr != 0.000001 {
		t.Errorf("unexpected threshold: %v", thr)
	}
	if cfg.Workers != 0 {
		t.Errorf("default workers should be left to run time, got %d", cfg.Workers)
	}
	if cfg.NumWorkers() != runtime.NumCPU() {
		t.Errorf("workers: got %d, want %d", cfg.NumWorkers(), runtime.NumCPU())
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SubjectSuffix != "_masked_FAskel.nii.gz" {
		t.Errorf("expected defaults, got suffix %q", cfg.SubjectSuffix)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "faroi.yaml", `
subjectSuffix: _FA.nii.gz
masks: [a.nii.gz, b.nii.gz]
threshold: 0.2
output:
  dir: out
  pattern: "roi_{region}.csv"
groups:
  - name: AB
    output: ab.csv
    masks: [a.nii.gz, b.nii.gz]
ragged:
  policy: pad
  pad: "-1"
workers: 3
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SubjectSuffix != "_FA.nii.gz" || len(cfg.Masks) != 2 || cfg.Workers != 3 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if thr := cfg.ThresholdValue(); thr == nil || *thr != 0.2 {
		t.Errorf("threshold: got %v, want 0.2", thr)
	}
	if pad, err := cfg.PadValue(); err != nil || pad != -1 {
		t.Errorf("pad: got %v (%v), want -1", pad, err)
	}
	if got, want := cfg.Namer()("s1", "a"), filepath.Join("out", "roi_a.csv"); got != want {
		t.Errorf("Namer: got %q, want %q", got, want)
	}
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "faroi.toml", `
subject_suffix = "_FA.nii.gz"
masks = ["a.nii.gz"]
no_threshold = true

[output]
dir = "out"
pattern = "voxel_{region}.txt"

[[groups]]
name = "A"
output = "a.csv"
masks = ["a.nii.gz"]

[logging]
file = "faroi.log"
max_log_size = 10
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ThresholdValue() != nil {
		t.Errorf("threshold should be disabled")
	}
	if len(cfg.Groups) != 1 || cfg.Groups[0].Name != "A" {
		t.Errorf("unexpected groups: %+v", cfg.Groups)
	}
	if cfg.Logging.File != "faroi.log" || cfg.Logging.MaxSize != 10 {
		t.Errorf("unexpected logging: %+v", cfg.Logging)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(c *Config)
		errSub string
	}{
		{"no masks", func(c *Config) { c.Masks = nil }, "no masks"},
		{"negative threshold", func(c *Config) { v := -1.0; c.Threshold = &v }, "threshold"},
		{"bad pattern", func(c *Config) { c.Output.Pattern = "out.txt" }, "lacks"},
		{"bad policy", func(c *Config) { c.Ragged.Policy = "truncate" }, "unknown ragged policy"},
		{"bad pad", func(c *Config) { c.Ragged.Policy = RaggedPad; c.Ragged.Pad = "x" }, "bad pad value"},
		{"unknown group mask", func(c *Config) { c.Groups[0].Masks = []string{"other.nii.gz"} }, "not in masks"},
		{"duplicate mask", func(c *Config) { c.Masks = append(c.Masks, c.Masks[0]) }, "listed twice"},
		{"empty group", func(c *Config) { c.Groups[1].Masks = nil }, "has no masks"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tc.errSub)
			}
			if !strings.Contains(err.Error(), tc.errSub) {
				t.Errorf("got %q, want it to contain %q", err, tc.errSub)
			}
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "faroi.yaml")
	cfg := DefaultConfig()
	cfg.Workers = 2

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Workers != 2 || len(loaded.Masks) != len(cfg.Masks) || loaded.Groups[1].Output != cfg.Groups[1].Output {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestNamer(t *testing.T) {
	cases := []struct {
		pattern    string
		want       string
		perSubject bool
	}{
		{"voxel_{region}.txt", filepath.Join("out", "voxel_body.txt"), false},
		{"{subject}_{region}.csv", filepath.Join("out", "ADNI_1_body.csv"), true},
		{"{subject}/voxel_{region}.txt", filepath.Join("out", "ADNI_1", "voxel_body.txt"), true},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		cfg.Output.Dir = "out"
		cfg.Output.Pattern = tc.pattern
		if err := cfg.Validate(); err != nil {
			t.Fatalf("%s: %v", tc.pattern, err)
		}
		if got := cfg.Namer()("ADNI_1", "body"); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.pattern, got, tc.want)
		}
		if cfg.PerSubjectOutput() != tc.perSubject {
			t.Errorf("%s: PerSubjectOutput = %v, want %v", tc.pattern, cfg.PerSubjectOutput(), tc.perSubject)
		}
	}

	// substituted names are not scanned for placeholders again
	cfg := DefaultConfig()
	cfg.Output.Dir = "out"
	cfg.Output.Pattern = "{subject}_{region}.txt"
	if got, want := cfg.Namer()("{region}", "body"), filepath.Join("out", "{region}_body.txt"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
