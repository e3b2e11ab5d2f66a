package protect

import (
	"strings"
	"testing"

	"github.com/textforge/humanizer-back/internal/domain"
)

func TestParseFindsDelimitedSegments(t *testing.T) {
	text := "Intro text [[keep this exact]] middle {{and this}} end."
	segments := Parse(text, nil)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Original != "[[keep this exact]]" {
		t.Fatalf("unexpected first segment: %q", segments[0].Original)
	}
	if segments[0].Inner != "keep this exact" {
		t.Fatalf("unexpected inner content: %q", segments[0].Inner)
	}
	if text[segments[0].Start:segments[0].End] != segments[0].Original {
		t.Fatalf("segment offsets do not slice back to original")
	}
	if segments[1].Start <= segments[0].End {
		t.Fatalf("segments not ordered by offset")
	}
}

func TestParseIgnoresUnclosedDelimiter(t *testing.T) {
	segments := Parse("open [[never closed", nil)
	if len(segments) != 0 {
		t.Fatalf("expected no segments, got %d", len(segments))
	}
}

func TestRebaseShiftsOffsets(t *testing.T) {
	segments := []domain.ProtectedSegment{
		{Original: "[[a]]", Inner: "a", Start: 10, End: 15},
		{Original: "[[b]]", Inner: "b", Start: 40, End: 45},
	}
	local := Rebase(segments, 8, 20)
	if len(local) != 1 {
		t.Fatalf("expected 1 segment in range, got %d", len(local))
	}
	if local[0].Start != 2 || local[0].End != 7 {
		t.Fatalf("unexpected rebased offsets: %d..%d", local[0].Start, local[0].End)
	}
}

func TestMaskAndRestoreRoundTrip(t *testing.T) {
	text := "Before [[secret value]] after."
	segments := Parse(text, nil)

	masked, tokens := Mask(text, segments)
	if strings.Contains(masked, "secret value") {
		t.Fatalf("masked text still contains protected content: %q", masked)
	}
	if len(tokens) != 1 {
		t.Fatalf("expected 1 token, got %d", len(tokens))
	}

	restored, err := Restore(masked, tokens)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if restored != text {
		t.Fatalf("round trip mismatch: %q != %q", restored, text)
	}
}

func TestRestoreReportsMissingToken(t *testing.T) {
	_, err := Restore("token was deleted", map[string]string{"⟦P0⟧": "[[x]]"})
	if err == nil {
		t.Fatalf("expected error for missing placeholder")
	}
}
