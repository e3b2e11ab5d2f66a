package continuity

import (
	"regexp"
	"sort"
	"strings"

	"github.com/textforge/humanizer-back/internal/analysis"
	"github.com/textforge/humanizer-back/internal/domain"
)

const (
	DefaultTailSentences = 3
	maxThemes            = 10
	maxKeyTerms          = 20
)

var (
	attributionPattern = regexp.MustCompile(`"([^"]+)"\s*,?\s*(?:said|asked|replied|whispered|shouted|murmured)\s+([A-Z][a-z]+)`)

	contentStopwords = map[string]struct{}{
		"about": {}, "after": {}, "again": {}, "because": {}, "before": {},
		"being": {}, "between": {}, "could": {}, "every": {}, "first": {},
		"other": {}, "their": {}, "there": {}, "these": {}, "thing": {},
		"think": {}, "those": {}, "through": {}, "under": {}, "where": {},
		"which": {}, "while": {}, "would": {}, "should": {}, "still": {},
	}
)

// Preserver threads narrative and stylistic continuity from chunk to chunk.
// The style profile is computed once per job and shared read-only.
type Preserver struct {
	analyzer    *analysis.Analyzer
	profile     domain.StyleProfile
	contentType domain.ContentType
	tail        int
}

func NewPreserver(analyzer *analysis.Analyzer, profile domain.StyleProfile, contentType domain.ContentType, tailSentences int) *Preserver {
	if tailSentences <= 0 {
		tailSentences = DefaultTailSentences
	}
	return &Preserver{
		analyzer:    analyzer,
		profile:     profile,
		contentType: contentType,
		tail:        tailSentences,
	}
}

func (p *Preserver) Profile() domain.StyleProfile {
	return p.profile
}

// Accumulator carries the theme/key-term/voice state of a single job across
// chunks. Not safe for concurrent use; the orchestrator enriches chunks in
// index order before dispatching them.
type Accumulator struct {
	themeCounts map[string]int
	termCounts  map[string]int
	themes      []string
	terms       []string
	voices      map[string]string
	narrator    string
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		themeCounts: make(map[string]int),
		termCounts:  make(map[string]int),
		voices:      make(map[string]string),
	}
}

// Snapshot returns copies of the accumulated state for embedding into a
// checkpoint or chunk context.
func (a *Accumulator) Snapshot() ([]string, []string, map[string]string, string) {
	themes := append([]string(nil), a.themes...)
	terms := append([]string(nil), a.terms...)
	var voices map[string]string
	if len(a.voices) > 0 {
		voices = make(map[string]string, len(a.voices))
		for name, sample := range a.voices {
			voices[name] = sample
		}
	}
	return themes, terms, voices, a.narrator
}

// Restore seeds the accumulator from a checkpointed chunk context.
func (a *Accumulator) Restore(ctx domain.ChunkContext) {
	for _, theme := range ctx.Themes {
		if a.themeCounts[theme] == 0 {
			a.themeCounts[theme] = 3
			a.themes = append(a.themes, theme)
		}
	}
	for _, term := range ctx.KeyTerms {
		if a.termCounts[term] == 0 {
			a.termCounts[term] = 2
			a.terms = append(a.terms, term)
		}
	}
	for name, sample := range ctx.CharacterVoices {
		a.voices[name] = sample
	}
	if ctx.NarratorVoice != "" {
		a.narrator = ctx.NarratorVoice
	}
}

// Enrich fills chunk.Context with continuity state: the tail sentences of the
// previous chunk's source text (not its rewritten text, so drift cannot
// compound), accumulated themes and key terms, and the shared profile. It
// then absorbs the chunk's own source into the accumulator for its successor.
func (p *Preserver) Enrich(chunk *domain.TransformChunk, prev *domain.TransformChunk, acc *Accumulator) {
	ctx := &chunk.Context
	if prev != nil {
		sentences := p.analyzer.ExtractSentences(prev.Text)
		if len(sentences) > p.tail {
			sentences = sentences[len(sentences)-p.tail:]
		}
		ctx.PreviousSentences = append([]string(nil), sentences...)
	}

	themes, terms, voices, narrator := acc.Snapshot()
	ctx.Themes = themes
	ctx.KeyTerms = terms
	ctx.CharacterVoices = voices
	ctx.NarratorVoice = narrator
	profile := p.profile
	ctx.Profile = &profile

	p.absorb(chunk.Text, acc)
}

func (p *Preserver) absorb(text string, acc *Accumulator) {
	words := strings.Fields(text)

	for _, word := range words {
		normalized := strings.ToLower(strings.Trim(word, ".,;:!?\"'()[]"))
		if len(normalized) < 5 {
			continue
		}
		if _, stop := contentStopwords[normalized]; stop {
			continue
		}
		acc.themeCounts[normalized]++
		if acc.themeCounts[normalized] == 3 && len(acc.themes) < maxThemes {
			acc.themes = append(acc.themes, normalized)
		}
	}

	for i, word := range words {
		trimmed := strings.Trim(word, ".,;:!?\"'()[]")
		if len(trimmed) < 2 || trimmed[0] < 'A' || trimmed[0] > 'Z' {
			continue
		}
		if i == 0 || strings.ContainsAny(words[i-1], ".!?") {
			continue // sentence-initial capitalization, not a proper noun
		}
		acc.termCounts[trimmed]++
		if acc.termCounts[trimmed] == 2 && len(acc.terms) < maxKeyTerms {
			acc.terms = append(acc.terms, trimmed)
		}
	}
	sort.Strings(acc.terms)

	if p.contentType == domain.ContentFiction {
		for _, match := range attributionPattern.FindAllStringSubmatch(text, -1) {
			name := match[2]
			if _, seen := acc.voices[name]; !seen {
				acc.voices[name] = match[1]
			}
		}
		if acc.narrator == "" {
			acc.narrator = detectNarrator(words)
		}
	}
}

func detectNarrator(words []string) string {
	firstPerson := 0
	thirdPerson := 0
	for _, word := range words {
		switch strings.ToLower(strings.Trim(word, ".,;:!?\"'")) {
		case "i", "me", "my", "mine":
			firstPerson++
		case "he", "she", "they", "his", "her", "them":
			thirdPerson++
		}
	}
	switch {
	case firstPerson == 0 && thirdPerson == 0:
		return ""
	case firstPerson >= thirdPerson:
		return "first-person"
	default:
		return "third-person"
	}
}
