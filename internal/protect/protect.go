package protect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/textforge/humanizer-back/internal/domain"
)

// DefaultDelimiters are the delimiter pairs recognized when a request does
// not configure its own.
var DefaultDelimiters = []domain.DelimiterPair{
	{Open: "[[", Close: "]]"},
	{Open: "{{", Close: "}}"},
	{Open: "```", Close: "```"},
}

// Parse scans text for protected spans wrapped in the configured delimiter
// pairs and returns them ordered by start offset. Offsets are byte positions
// in the original document and include the delimiters.
func Parse(text string, delimiters []domain.DelimiterPair) []domain.ProtectedSegment {
	if len(delimiters) == 0 {
		delimiters = DefaultDelimiters
	}

	segments := make([]domain.ProtectedSegment, 0)
	for _, pair := range delimiters {
		if pair.Open == "" || pair.Close == "" {
			continue
		}
		cursor := 0
		for {
			start := strings.Index(text[cursor:], pair.Open)
			if start < 0 {
				break
			}
			start += cursor
			innerStart := start + len(pair.Open)
			end := strings.Index(text[innerStart:], pair.Close)
			if end < 0 {
				break
			}
			end += innerStart
			segments = append(segments, domain.ProtectedSegment{
				Original: text[start : end+len(pair.Close)],
				Inner:    text[innerStart:end],
				Start:    start,
				End:      end + len(pair.Close),
			})
			cursor = end + len(pair.Close)
		}
	}

	sort.Slice(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})
	return dropOverlapping(segments)
}

// dropOverlapping keeps the earliest segment when spans from different
// delimiter pairs intersect.
func dropOverlapping(segments []domain.ProtectedSegment) []domain.ProtectedSegment {
	out := segments[:0]
	lastEnd := -1
	for _, segment := range segments {
		if segment.Start < lastEnd {
			continue
		}
		out = append(out, segment)
		lastEnd = segment.End
	}
	return out
}

// Rebase returns the segments fully contained in [chunkStart, chunkEnd) with
// offsets shifted to chunk-local coordinates. Segments extending past either
// edge are dropped: a chunk cannot mask a span it only partially holds. The
// splitter keeps spanned sentences together, so every parsed segment lands
// whole in at least one chunk.
func Rebase(segments []domain.ProtectedSegment, chunkStart, chunkEnd int) []domain.ProtectedSegment {
	out := make([]domain.ProtectedSegment, 0)
	for _, segment := range segments {
		if segment.Start < chunkStart || segment.End > chunkEnd {
			continue
		}
		rebased := segment
		rebased.Start -= chunkStart
		rebased.End -= chunkStart
		out = append(out, rebased)
	}
	return out
}

// Mask replaces every protected segment in text with an opaque placeholder
// token and returns the masked text plus the token→original mapping. Segment
// offsets must be local to text. Tokens use non-ASCII brackets so rewriting
// heuristics, which operate on words and punctuation, pass them through.
func Mask(text string, segments []domain.ProtectedSegment) (string, map[string]string) {
	if len(segments) == 0 {
		return text, nil
	}

	tokens := make(map[string]string, len(segments))
	builder := strings.Builder{}
	cursor := 0
	for index, segment := range segments {
		if segment.Start < cursor || segment.End > len(text) {
			continue
		}
		token := fmt.Sprintf("⟦P%d⟧", index)
		builder.WriteString(text[cursor:segment.Start])
		builder.WriteString(token)
		tokens[token] = segment.Original
		cursor = segment.End
	}
	builder.WriteString(text[cursor:])
	return builder.String(), tokens
}

// Restore substitutes every placeholder token back with its original span.
// Returns an error if a token disappeared from the rewritten text, which
// means a strategy violated the protected-content contract.
func Restore(text string, tokens map[string]string) (string, error) {
	for token, original := range tokens {
		if !strings.Contains(text, token) {
			return "", fmt.Errorf("protected placeholder %q missing from rewritten text", token)
		}
		text = strings.Replace(text, token, original, 1)
	}
	return text, nil
}
