package analysis

import (
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"github.com/textforge/humanizer-back/internal/domain"
)

var ErrEmptyText = errors.New("text is empty")

// sentenceEnders is the fallback splitter used when the punkt tokenizer is
// unavailable or the text is not English.
var sentenceEnders = regexp.MustCompile(`([.!?]+["')\]]*)(\s+|$)`)

// Report is the outcome of a full-document analysis pass.
type Report struct {
	Valid            bool
	ValidationErrors []string
	ContentType      domain.ContentType
	Language         string
	Metrics          domain.TextMetrics
}

// Analyzer provides sentence extraction, word counting, text metrics and
// style profiling over raw text. Safe for concurrent use.
type Analyzer struct {
	tokenizerOnce sync.Once
	tokenizer     *sentences.DefaultSentenceTokenizer
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze validates the text and computes its coarse classification and
// metrics in one pass.
func (a *Analyzer) Analyze(text string) (Report, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Report{Valid: false, ValidationErrors: []string{"text is empty"}}, ErrEmptyText
	}

	report := Report{
		Valid:       true,
		ContentType: a.DetectContentType(text),
		Language:    a.DetectLanguage(text),
		Metrics:     a.CalculateMetrics(text),
	}
	return report, nil
}

// ExtractSentences returns the ordered sentences of text. Whitespace inside
// sentences is preserved; leading/trailing whitespace per sentence is not.
func (a *Analyzer) ExtractSentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	a.tokenizerOnce.Do(func() {
		tokenizer, err := english.NewSentenceTokenizer(nil)
		if err == nil {
			a.tokenizer = tokenizer
		}
	})

	if a.tokenizer != nil {
		tokenized := a.tokenizer.Tokenize(text)
		out := make([]string, 0, len(tokenized))
		for _, sentence := range tokenized {
			cleaned := strings.TrimSpace(sentence.Text)
			if cleaned != "" {
				out = append(out, cleaned)
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	return fallbackSentences(text)
}

func fallbackSentences(text string) []string {
	marked := sentenceEnders.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		cleaned := strings.TrimSpace(part)
		if cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

// CountWords counts whitespace-delimited tokens.
func (a *Analyzer) CountWords(text string) int {
	return len(strings.Fields(text))
}
