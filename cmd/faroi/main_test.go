package main

import (
	"strings"
	"testing"

	"github.com/KyungWonPark/faroi/internal/config"
)

func TestCheckExtractArgs(t *testing.T) {
	cfg := config.DefaultConfig()

	if err := checkExtractArgs(cfg, 1); err != nil {
		t.Errorf("one subject: %v", err)
	}
	err := checkExtractArgs(cfg, 2)
	if err == nil || !strings.Contains(err.Error(), config.SubjectPlaceholder) {
		t.Errorf("two subjects with a shared pattern: got %v", err)
	}

	cfg.Output.Pattern = "{subject}_voxel_{region}.txt"
	if err := checkExtractArgs(cfg, 2); err != nil {
		t.Errorf("per-subject pattern: %v", err)
	}
}
