package strategy

import (
	"strings"
	"testing"

	"github.com/textforge/humanizer-back/internal/domain"
)

func TestResolveExplicitName(t *testing.T) {
	engine := NewEngine()
	name, err := engine.Resolve(domain.StrategyCasual, domain.StyleProfile{})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if name != domain.StrategyCasual {
		t.Fatalf("explicit name must pass through, got %s", name)
	}
}

func TestResolveRejectsUnknown(t *testing.T) {
	engine := NewEngine()
	if _, err := engine.Resolve("pirate", domain.StyleProfile{}); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}

func TestResolveAutoByTone(t *testing.T) {
	engine := NewEngine()

	cases := map[domain.Tone]domain.StrategyName{
		domain.ToneCasual:   domain.StrategyCasual,
		domain.ToneAcademic: domain.StrategyAcademic,
		domain.ToneNeutral:  domain.StrategyProfessional,
	}
	for tone, want := range cases {
		got, err := engine.Resolve(domain.StrategyAuto, domain.StyleProfile{Tone: tone})
		if err != nil {
			t.Fatalf("resolve auto for %s: %v", tone, err)
		}
		if got != want {
			t.Fatalf("tone %s resolved to %s, want %s", tone, got, want)
		}
	}

	got, err := engine.Resolve(domain.StrategyAuto, domain.StyleProfile{Tone: domain.ToneFormal, Formality: 0.85})
	if err != nil {
		t.Fatalf("resolve auto formal: %v", err)
	}
	if got != domain.StrategyAcademic {
		t.Fatalf("high formality should resolve academic, got %s", got)
	}
}

func TestCasualContractsAndPreservesCase(t *testing.T) {
	engine := NewEngine()
	out, err := engine.Apply(domain.StrategyCasual, "Do not worry. It is fine.", 1, domain.ChunkContext{})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !strings.Contains(out, "Don't worry") {
		t.Fatalf("expected contraction with case preserved, got %q", out)
	}
	if !strings.Contains(out, "It's fine") {
		t.Fatalf("expected it is -> it's, got %q", out)
	}
}

func TestLevelGatesHigherTiers(t *testing.T) {
	engine := NewEngine()
	text := "We will utilize the tool."

	low, err := engine.Apply(domain.StrategyCasual, text, 1, domain.ChunkContext{})
	if err != nil {
		t.Fatalf("apply level 1: %v", err)
	}
	if !strings.Contains(low, "utilize") {
		t.Fatalf("level 1 must not reach vocabulary tier, got %q", low)
	}

	high, err := engine.Apply(domain.StrategyCasual, text, 3, domain.ChunkContext{})
	if err != nil {
		t.Fatalf("apply level 3: %v", err)
	}
	if !strings.Contains(high, "use") || strings.Contains(high, "utilize") {
		t.Fatalf("level 3 should replace utilize, got %q", high)
	}
}

func TestStrategiesLeavePlaceholdersIntact(t *testing.T) {
	engine := NewEngine()
	text := "However, the value ⟦P0⟧ must survive. It is important."

	for _, name := range []domain.StrategyName{domain.StrategyCasual, domain.StrategyProfessional, domain.StrategyAcademic} {
		out, err := engine.Apply(name, text, 5, domain.ChunkContext{})
		if err != nil {
			t.Fatalf("apply %s: %v", name, err)
		}
		if !strings.Contains(out, "⟦P0⟧") {
			t.Fatalf("strategy %s altered placeholder token: %q", name, out)
		}
	}
}

func TestApplyRejectsOutOfRangeLevel(t *testing.T) {
	engine := NewEngine()
	if _, err := engine.Apply(domain.StrategyCasual, "text", 0, domain.ChunkContext{}); err == nil {
		t.Fatalf("expected error for level 0")
	}
	if _, err := engine.Apply(domain.StrategyCasual, "text", 6, domain.ChunkContext{}); err == nil {
		t.Fatalf("expected error for level 6")
	}
}

func TestCountModifiedSentences(t *testing.T) {
	before := []string{"One.", "Two.", "Three."}
	after := []string{"One.", "Deux.", "Three."}
	if got := CountModifiedSentences(before, after); got != 1 {
		t.Fatalf("expected 1 modified sentence, got %d", got)
	}
}
