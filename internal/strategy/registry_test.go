// Package strategy_test provides tests for the pattern-strategy registry.
package strategy_test

import (
	"testing"

	"github.com/atlas-desktop/mia-core/internal/strategy"
	"go.uber.org/zap"
)

func TestNewRegistryHasAllSixteenPatterns(t *testing.T) {
	r := strategy.NewRegistry(zap.NewNop())
	all := r.All()
	if len(all) != 16 {
		t.Fatalf("expected 16 registered pattern strategies, got %d", len(all))
	}

	seen := make(map[string]bool)
	for _, s := range all {
		if seen[s.Name()] {
			t.Errorf("duplicate strategy name in registry: %s", s.Name())
		}
		seen[s.Name()] = true
		if s.Name() == "" {
			t.Error("expected every strategy to have a non-empty name")
		}
	}
}

func TestRegisterReplacesInPlaceWithoutReordering(t *testing.T) {
	r := strategy.NewRegistry(zap.NewNop())
	before := r.All()
	firstName := before[0].Name()

	// Re-registering the first strategy by name must not move it.
	r.Register(before[0])

	after := r.All()
	if len(after) != len(before) {
		t.Fatalf("expected re-registering an existing strategy not to change the count, got %d vs %d", len(after), len(before))
	}
	if after[0].Name() != firstName {
		t.Errorf("expected re-registering to preserve original position, got %s at index 0", after[0].Name())
	}
}
