package analysis

import (
	"math"
	"strings"
	"unicode"

	"github.com/textforge/humanizer-back/internal/domain"
)

// CalculateMetrics computes language-agnostic text statistics. Perplexity is
// a proxy built from word-length spread and rare-word ratio, not a model
// score; it only needs to move in the same direction as the real thing.
func (a *Analyzer) CalculateMetrics(text string) domain.TextMetrics {
	words := strings.Fields(text)
	sentences := a.ExtractSentences(text)

	metrics := domain.TextMetrics{
		WordCount:     len(words),
		SentenceCount: len(sentences),
	}
	if len(words) == 0 {
		return metrics
	}

	lengths := make([]float64, 0, len(sentences))
	for _, sentence := range sentences {
		lengths = append(lengths, float64(len(strings.Fields(sentence))))
	}
	mean, variance := meanVariance(lengths)
	metrics.AvgSentenceLength = mean
	if mean > 0 {
		metrics.Burstiness = math.Sqrt(variance) / mean
	}

	seen := make(map[string]int, len(words))
	totalRunes := 0
	longWords := 0
	for _, word := range words {
		normalized := normalizeWord(word)
		if normalized == "" {
			continue
		}
		seen[normalized]++
		totalRunes += len([]rune(normalized))
		if len([]rune(normalized)) >= 8 {
			longWords++
		}
	}
	if len(words) > 0 {
		metrics.LexicalDiversity = float64(len(seen)) / float64(len(words))
	}

	rare := 0
	for _, count := range seen {
		if count == 1 {
			rare++
		}
	}
	avgWordLen := float64(totalRunes) / float64(len(words))
	rareRatio := float64(rare) / float64(len(words))
	longRatio := float64(longWords) / float64(len(words))
	metrics.Perplexity = 10 + avgWordLen*4 + rareRatio*30 + longRatio*20

	return metrics
}

func meanVariance(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, value := range values {
		diff := value - mean
		variance += diff * diff
	}
	return mean, variance / float64(len(values))
}

func normalizeWord(word string) string {
	return strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}))
}
