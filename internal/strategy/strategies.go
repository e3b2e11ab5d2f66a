package strategy

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/textforge/humanizer-back/internal/domain"
)

// rule is a precompiled case-insensitive word/phrase substitution that
// preserves leading capitalization of the matched text.
type rule struct {
	pattern *regexp.Regexp
	repl    string
}

func compileRules(pairs map[string]string) []rule {
	keys := make([]string, 0, len(pairs))
	for key := range pairs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rules := make([]rule, 0, len(keys))
	for _, key := range keys {
		rules = append(rules, rule{
			pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(key) + `\b`),
			repl:    pairs[key],
		})
	}
	return rules
}

func applyRules(text string, tiers [][]rule, level int) string {
	if level > len(tiers) {
		level = len(tiers)
	}
	for i := 0; i < level; i++ {
		for _, r := range tiers[i] {
			text = r.pattern.ReplaceAllStringFunc(text, func(match string) string {
				return matchCase(match, r.repl)
			})
		}
	}
	return text
}

func matchCase(match, repl string) string {
	if match == "" || repl == "" {
		return repl
	}
	first := []rune(match)[0]
	if unicode.IsUpper(first) {
		runes := []rune(repl)
		runes[0] = unicode.ToUpper(runes[0])
		return string(runes)
	}
	return repl
}

var contractionTable = map[string]string{
	"do not":   "don't",
	"does not": "doesn't",
	"did not":  "didn't",
	"is not":   "isn't",
	"are not":  "aren't",
	"was not":  "wasn't",
	"were not": "weren't",
	"cannot":   "can't",
	"will not": "won't",
	"it is":    "it's",
	"that is":  "that's",
	"we are":   "we're",
	"they are": "they're",
	"you are":  "you're",
	"I am":     "I'm",
	"have not": "haven't",
	"has not":  "hasn't",
	"let us":   "let's",
}

var expansionTable = map[string]string{
	"don't":   "do not",
	"doesn't": "does not",
	"didn't":  "did not",
	"isn't":   "is not",
	"aren't":  "are not",
	"wasn't":  "was not",
	"weren't": "were not",
	"can't":   "cannot",
	"won't":   "will not",
	"it's":    "it is",
	"that's":  "that is",
	"we're":   "we are",
	"they're": "they are",
	"you're":  "you are",
	"I'm":     "I am",
	"haven't": "have not",
	"hasn't":  "has not",
	"let's":   "let us",
}

// casualStrategy loosens formal prose: contractions, plain transitions,
// everyday vocabulary. Higher levels apply more substitution tiers.
type casualStrategy struct{}

var casualTiers = [][]rule{
	compileRules(contractionTable),
	compileRules(map[string]string{
		"however":      "but",
		"therefore":    "so",
		"in addition":  "also",
		"furthermore":  "plus",
		"nevertheless": "still",
		"consequently": "so",
	}),
	compileRules(map[string]string{
		"utilize":       "use",
		"approximately": "about",
		"purchase":      "buy",
		"commence":      "start",
		"assistance":    "help",
		"sufficient":    "enough",
	}),
	compileRules(map[string]string{
		"individuals": "people",
		"children":    "kids",
		"extremely":   "really",
		"numerous":    "lots of",
	}),
	compileRules(map[string]string{
		"immediately": "right away",
		"in order to": "to",
		"attempt":     "try",
	}),
}

func (casualStrategy) Name() domain.StrategyName { return domain.StrategyCasual }

func (casualStrategy) Apply(text string, level int, _ domain.ChunkContext) (string, error) {
	return applyRules(text, casualTiers, level), nil
}

// professionalStrategy evens prose out toward business register.
type professionalStrategy struct{}

var professionalTiers = [][]rule{
	compileRules(expansionTable),
	compileRules(map[string]string{
		"but":    "however",
		"so":     "therefore",
		"also":   "additionally",
		"plus":   "in addition",
		"anyway": "in any case",
	}),
	compileRules(map[string]string{
		"buy":   "purchase",
		"get":   "obtain",
		"help":  "assistance",
		"big":   "significant",
		"a lot": "considerably",
	}),
	compileRules(map[string]string{
		"start": "initiate",
		"end":   "conclude",
		"show":  "demonstrate",
		"need":  "require",
	}),
	compileRules(map[string]string{
		"about":  "approximately",
		"enough": "sufficient",
		"soon":   "promptly",
	}),
}

func (professionalStrategy) Name() domain.StrategyName { return domain.StrategyProfessional }

func (professionalStrategy) Apply(text string, level int, _ domain.ChunkContext) (string, error) {
	return applyRules(text, professionalTiers, level), nil
}

// academicStrategy pushes toward scholarly register with hedging and formal
// connectives.
type academicStrategy struct{}

var academicTiers = [][]rule{
	compileRules(expansionTable),
	compileRules(map[string]string{
		"but":     "however",
		"so":      "consequently",
		"also":    "furthermore",
		"because": "given that",
		"besides": "moreover",
	}),
	compileRules(map[string]string{
		"use":   "employ",
		"shows": "demonstrates",
		"asks":  "raises the question of",
		"look":  "examine",
		"find":  "identify",
	}),
	compileRules(map[string]string{
		"clearly":   "evidently",
		"obviously": "it appears that",
		"always":    "consistently",
		"never":     "at no point",
	}),
	compileRules(map[string]string{
		"think":   "posit",
		"idea":    "notion",
		"problem": "challenge",
	}),
}

func (academicStrategy) Name() domain.StrategyName { return domain.StrategyAcademic }

func (academicStrategy) Apply(text string, level int, _ domain.ChunkContext) (string, error) {
	return applyRules(text, academicTiers, level), nil
}

// CountModifiedSentences compares original and rewritten sentence lists and
// counts positions whose text changed. Used for result reporting.
func CountModifiedSentences(before, after []string) int {
	modified := 0
	limit := len(before)
	if len(after) < limit {
		limit = len(after)
	}
	for i := 0; i < limit; i++ {
		if strings.TrimSpace(before[i]) != strings.TrimSpace(after[i]) {
			modified++
		}
	}
	if len(after) > limit {
		modified += len(after) - limit
	}
	return modified
}
