// Package config_test provides tests for configuration loading and validation.
package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/atlas-desktop/mia-core/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected the default configuration to validate, got %v", err)
	}
}

func TestLoadWithNoFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("expected loading with no file to succeed, got %v", err)
	}
	if cfg.HTTPAddr != "localhost:8080" {
		t.Errorf("expected default http addr, got %s", cfg.HTTPAddr)
	}
	if len(cfg.Symbols) == 0 {
		t.Error("expected the default symbol list to be populated")
	}
}

func TestLoadMissingFileIsNotFatal(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Errorf("expected a missing config file to be tolerated, got %v", err)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mia.yaml")
	content := "http_addr: \"0.0.0.0:9090\"\nsymbols:\n  - ES_FUT_CME\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("expected loading the file to succeed, got %v", err)
	}
	if cfg.HTTPAddr != "0.0.0.0:9090" {
		t.Errorf("expected http_addr override to apply, got %s", cfg.HTTPAddr)
	}
	if len(cfg.Symbols) != 1 || cfg.Symbols[0] != "ES_FUT_CME" {
		t.Errorf("expected symbols override to apply, got %v", cfg.Symbols)
	}
}

func TestValidateRejectsUnbalancedWeights(t *testing.T) {
	cfg := config.Default()
	cfg.BattleNavaleWeight = 0.9
	cfg.MenthorQWeight = 0.9
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation to reject weights that do not sum to 1")
	}
}

func TestValidateRejectsEmptySymbols(t *testing.T) {
	cfg := config.Default()
	cfg.Symbols = nil
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation to reject an empty symbol list")
	}
}

func TestValidateRejectsNonPositivePorts(t *testing.T) {
	cfg := config.Default()
	cfg.Router.ESPort = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation to reject a non-positive router port")
	}
}
