package analysis

import (
	"sort"
	"strings"

	"github.com/textforge/humanizer-back/internal/domain"
)

var (
	formalMarkers = []string{
		"furthermore", "moreover", "consequently", "nevertheless", "therefore",
		"accordingly", "notwithstanding", "henceforth", "whereby", "hereinafter",
	}
	casualMarkers = []string{
		"gonna", "wanna", "kinda", "sorta", "yeah", "okay", "stuff", "pretty much",
		"a lot", "really", "basically", "anyway",
	}
	contractionSuffixes = []string{"n't", "'re", "'ve", "'ll", "'d", "'m"}
)

// BuildStyleProfile computes the shared, read-only style profile of a whole
// document. Called once per job, before chunking.
func (a *Analyzer) BuildStyleProfile(text string) domain.StyleProfile {
	words := strings.Fields(text)
	sentenceList := a.ExtractSentences(text)

	profile := domain.StyleProfile{}
	if len(words) == 0 {
		profile.Tone = domain.ToneNeutral
		return profile
	}

	lengths := make([]float64, 0, len(sentenceList))
	for _, sentence := range sentenceList {
		lengths = append(lengths, float64(len(strings.Fields(sentence))))
	}
	profile.AvgSentenceLength, profile.SentenceLengthVariance = meanVariance(lengths)

	lower := strings.ToLower(text)
	formalHits := 0
	for _, marker := range formalMarkers {
		formalHits += strings.Count(lower, marker)
	}
	casualHits := 0
	for _, marker := range casualMarkers {
		casualHits += strings.Count(lower, marker)
	}
	contractions := 0
	for _, word := range words {
		for _, suffix := range contractionSuffixes {
			if strings.HasSuffix(strings.ToLower(word), suffix) {
				contractions++
				break
			}
		}
	}

	per1000 := func(count int) float64 {
		return float64(count) * 1000 / float64(len(words))
	}
	profile.Formality = clamp01(0.5 + per1000(formalHits)*0.04 - per1000(casualHits+contractions)*0.03)

	longWords := 0
	totalRunes := 0
	for _, word := range words {
		normalized := normalizeWord(word)
		totalRunes += len([]rune(normalized))
		if len([]rune(normalized)) >= 8 {
			longWords++
		}
	}
	avgLen := float64(totalRunes) / float64(len(words))
	profile.VocabularyComplexity = clamp01(avgLen/10 + float64(longWords)/float64(len(words)))

	profile.FrequentPhrases = frequentBigrams(words, 5)

	switch {
	case profile.Formality >= 0.7 && profile.VocabularyComplexity >= 0.5:
		profile.Tone = domain.ToneAcademic
	case profile.Formality >= 0.6:
		profile.Tone = domain.ToneFormal
	case profile.Formality <= 0.4:
		profile.Tone = domain.ToneCasual
	default:
		profile.Tone = domain.ToneNeutral
	}

	return profile
}

func frequentBigrams(words []string, limit int) []string {
	counts := make(map[string]int)
	for i := 0; i+1 < len(words); i++ {
		first := normalizeWord(words[i])
		second := normalizeWord(words[i+1])
		if len(first) < 3 || len(second) < 3 {
			continue
		}
		counts[first+" "+second]++
	}

	type pair struct {
		phrase string
		count  int
	}
	pairs := make([]pair, 0, len(counts))
	for phrase, count := range counts {
		if count >= 3 {
			pairs = append(pairs, pair{phrase: phrase, count: count})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count == pairs[j].count {
			return pairs[i].phrase < pairs[j].phrase
		}
		return pairs[i].count > pairs[j].count
	})

	out := make([]string, 0, limit)
	for _, item := range pairs {
		out = append(out, item.phrase)
		if len(out) == limit {
			break
		}
	}
	return out
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
