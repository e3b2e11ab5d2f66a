package analysis

import (
	"regexp"
	"strings"

	"github.com/textforge/humanizer-back/internal/domain"
)

var (
	dialoguePattern = regexp.MustCompile(`"[^"]{2,}"\s*(,?\s*)?(said|asked|replied|whispered|shouted|murmured)`)
	citationPattern = regexp.MustCompile(`\(([A-Z][a-z]+(?:\s+(?:et al\.|&\s*[A-Z][a-z]+))?,?\s+\d{4})\)|\[\d+\]`)
	codePattern     = regexp.MustCompile("```|\\bfunc\\b|\\bclass\\b|\\breturn\\b|[a-z]+\\([a-z_,\\s]*\\)\\s*[{;]")

	academicTerms  = []string{"hypothesis", "methodology", "findings", "literature", "empirical", "abstract", "conclusion"}
	businessTerms  = []string{"revenue", "stakeholder", "quarterly", "roadmap", "deliverable", "kpi", "synergy", "meeting"}
	technicalTerms = []string{"server", "database", "algorithm", "configure", "deploy", "implementation", "protocol", "interface"}

	stopwords = map[string][]string{
		"en": {" the ", " and ", " of ", " to ", " is ", " that ", " with "},
		"pt": {" de ", " que ", " não ", " uma ", " com ", " para ", " os "},
		"es": {" el ", " los ", " las ", " una ", " pero ", " como ", " por "},
		"fr": {" le ", " les ", " des ", " une ", " est ", " dans ", " pour "},
	}
)

// DetectContentType classifies the document into a coarse category driving
// automatic strategy selection.
func (a *Analyzer) DetectContentType(text string) domain.ContentType {
	lower := strings.ToLower(text)
	words := len(strings.Fields(text))
	if words == 0 {
		return domain.ContentGeneral
	}

	if dialoguePattern.MatchString(text) {
		return domain.ContentFiction
	}
	if codePattern.MatchString(text) && countTerms(lower, technicalTerms) >= 2 {
		return domain.ContentTechnical
	}
	if citationPattern.MatchString(text) || countTerms(lower, academicTerms) >= 3 {
		return domain.ContentAcademic
	}
	if countTerms(lower, businessTerms) >= 3 {
		return domain.ContentBusiness
	}
	if countTerms(lower, technicalTerms) >= 3 {
		return domain.ContentTechnical
	}

	profile := a.BuildStyleProfile(text)
	if profile.Tone == domain.ToneCasual {
		return domain.ContentCasual
	}
	return domain.ContentGeneral
}

// DetectLanguage guesses the dominant language by stopword frequency. Coarse
// on purpose: the pipeline only needs a hint for reporting and tokenizer
// selection.
func (a *Analyzer) DetectLanguage(text string) string {
	lower := " " + strings.ToLower(text) + " "

	best := "en"
	bestScore := 0
	for language, markers := range stopwords {
		score := 0
		for _, marker := range markers {
			score += strings.Count(lower, marker)
		}
		if score > bestScore {
			best = language
			bestScore = score
		}
	}
	return best
}

func countTerms(lower string, terms []string) int {
	hits := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	return hits
}
