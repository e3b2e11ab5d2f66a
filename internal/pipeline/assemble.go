package pipeline

import (
	"strings"
	"unicode"

	"github.com/textforge/humanizer-back/internal/domain"
)

// overlapSimilarity is the token-Jaccard score above which a leading
// sentence of a chunk is treated as a restatement of the previous chunk's
// tail and dropped during assembly.
const overlapSimilarity = 0.8

// assemble joins rewritten chunks back into one document. Adjacent chunks
// share overlap sentences from splitting; leading sentences of a chunk that
// closely match the previous chunk's tail are dropped so each overlap
// appears exactly once. Chapter transitions keep a paragraph break,
// everything else joins with a single space.
func (o *Orchestrator) assemble(chunks []*domain.TransformChunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var builder strings.Builder
	var prev *domain.TransformChunk
	for _, chunk := range chunks {
		text := strings.TrimSpace(chunkOutput(chunk))
		if text == "" {
			continue
		}
		if prev == nil {
			builder.WriteString(text)
			prev = chunk
			continue
		}

		text = o.trimOverlap(chunkOutput(prev), text)
		if text == "" {
			prev = chunk
			continue
		}
		if chunk.ChapterIndex != prev.ChapterIndex {
			builder.WriteString("\n\n")
		} else {
			builder.WriteString(" ")
		}
		builder.WriteString(text)
		prev = chunk
	}
	return builder.String()
}

func chunkOutput(chunk *domain.TransformChunk) string {
	if chunk.Rewritten != "" {
		return chunk.Rewritten
	}
	return chunk.Text
}

// trimOverlap drops up to OverlapSentences leading sentences of text that
// match a sentence in the tail of the previous chunk's output. Matching is
// fuzzy: rewriting may have altered the overlap region in both copies.
func (o *Orchestrator) trimOverlap(prevText, text string) string {
	limit := o.config.OverlapSentences
	if limit <= 0 {
		return strings.TrimSpace(text)
	}

	prevSentences := o.analyzer.ExtractSentences(prevText)
	if len(prevSentences) > limit {
		prevSentences = prevSentences[len(prevSentences)-limit:]
	}
	sentences := o.analyzer.ExtractSentences(text)

	drop := 0
	for drop < len(sentences) && drop < limit {
		if !matchesAny(sentences[drop], prevSentences) {
			break
		}
		drop++
	}
	if drop == 0 {
		return strings.TrimSpace(text)
	}
	if drop >= len(sentences) {
		return ""
	}

	// Cut at the surviving sentence's position in the raw text so internal
	// whitespace downstream of the cut is preserved.
	idx := strings.Index(text, sentences[drop])
	if idx < 0 {
		return strings.TrimSpace(strings.Join(sentences[drop:], " "))
	}
	return strings.TrimSpace(text[idx:])
}

func matchesAny(sentence string, candidates []string) bool {
	for _, candidate := range candidates {
		if tokenJaccard(sentence, candidate) >= overlapSimilarity {
			return true
		}
	}
	return false
}

// tokenJaccard measures word-set similarity between two sentences, ignoring
// case and punctuation.
func tokenJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for token := range setA {
		if setB[token] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, field := range strings.Fields(text) {
		token := strings.ToLower(strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		}))
		if token != "" {
			set[token] = true
		}
	}
	return set
}

func joinAssembled(head, tail string) string {
	head = strings.TrimSpace(head)
	tail = strings.TrimSpace(tail)
	switch {
	case head == "":
		return tail
	case tail == "":
		return head
	default:
		return head + " " + tail
	}
}
