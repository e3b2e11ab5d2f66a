package splitter

import (
	"regexp"
	"strings"

	"github.com/textforge/humanizer-back/internal/analysis"
	"github.com/textforge/humanizer-back/internal/domain"
	"github.com/textforge/humanizer-back/internal/protect"
)

const (
	DefaultMaxWords         = 10000
	DefaultOverlapSentences = 3
)

// chapterPattern matches heading-style boundaries at line start: explicit
// chapter/part/section/book markers and markdown headings.
var chapterPattern = regexp.MustCompile(`(?mi)^\s{0,3}(?:(?:chapter|part|section|book)\b[^\n]*|#{1,6}\s+[^\n]+)$`)

type Config struct {
	MaxWords         int
	OverlapSentences int
}

// Splitter divides raw text into ordered, possibly overlapping chunks. The
// concatenation of chunk spans covers the original text; adjacent spans
// intersect only in the trailing overlap sentences of the earlier chunk.
type Splitter struct {
	analyzer *analysis.Analyzer
	config   Config
}

func New(analyzer *analysis.Analyzer, config Config) *Splitter {
	if config.MaxWords <= 0 {
		config.MaxWords = DefaultMaxWords
	}
	if config.OverlapSentences < 0 {
		config.OverlapSentences = DefaultOverlapSentences
	}
	return &Splitter{analyzer: analyzer, config: config}
}

// Split chunks text and attaches the protected segments whose spans fall
// inside each chunk, rebased to chunk-local coordinates. maxWords <= 0 uses
// the configured default. Index and TotalChunks are stamped only once the
// full set is known.
func (s *Splitter) Split(text string, protected []domain.ProtectedSegment, maxWords int) []*domain.TransformChunk {
	if maxWords <= 0 {
		maxWords = s.config.MaxWords
	}

	var chunks []*domain.TransformChunk
	if s.analyzer.CountWords(text) <= maxWords {
		chunks = []*domain.TransformChunk{s.wholeChunk(text, 0, -1)}
	} else {
		chunks = s.splitLarge(text, protected, maxWords)
	}

	for _, chunk := range chunks {
		chunk.Context.Protected = protect.Rebase(protected, chunk.Start, chunk.End)
	}
	stamp(chunks)
	return chunks
}

// Resplit subdivides a single oversized chunk into smaller chunks with the
// given word target, preserving document offsets, chapter tag and protected
// segments. The caller renumbers the resulting full set.
func (s *Splitter) Resplit(chunk *domain.TransformChunk, maxWords int) []*domain.TransformChunk {
	if maxWords <= 0 || chunk.WordCount <= maxWords {
		return []*domain.TransformChunk{chunk}
	}

	parts := s.splitByWords(chunk.Text, chunk.Start, chunk.ChapterIndex, maxWords, chunk.Context.Protected)
	for _, part := range parts {
		part.Context.Protected = protect.Rebase(chunk.Context.Protected, part.Start-chunk.Start, part.End-chunk.Start)
	}
	return parts
}

func (s *Splitter) splitLarge(text string, protected []domain.ProtectedSegment, maxWords int) []*domain.TransformChunk {
	boundaries := chapterPattern.FindAllStringIndex(text, -1)
	// a heading inside a protected span is content, not a boundary
	kept := boundaries[:0]
	for _, boundary := range boundaries {
		if !crossesProtected(protected, boundary[0]) {
			kept = append(kept, boundary)
		}
	}
	boundaries = kept
	if len(boundaries) < 2 {
		return s.splitByWords(text, 0, -1, maxWords, localizeSegments(protected, 0, len(text)))
	}

	chunks := make([]*domain.TransformChunk, 0, len(boundaries)+1)
	emit := func(start, end, chapter int) {
		section := text[start:end]
		if strings.TrimSpace(section) == "" {
			return
		}
		if s.analyzer.CountWords(section) <= maxWords {
			chunks = append(chunks, s.wholeChunk(section, start, chapter))
			return
		}
		chunks = append(chunks, s.splitByWords(section, start, chapter, maxWords, localizeSegments(protected, start, end))...)
	}

	if boundaries[0][0] > 0 {
		emit(0, boundaries[0][0], -1)
	}
	for i, boundary := range boundaries {
		end := len(text)
		if i+1 < len(boundaries) {
			end = boundaries[i+1][0]
		}
		emit(boundary[0], end, i)
	}
	return chunks
}

type sentenceSpan struct {
	start int
	end   int
	words int
}

func (s *Splitter) locateSentences(text string) []sentenceSpan {
	sentences := s.analyzer.ExtractSentences(text)
	spans := make([]sentenceSpan, 0, len(sentences))
	cursor := 0
	for _, sentence := range sentences {
		offset := strings.Index(text[cursor:], sentence)
		if offset < 0 {
			continue
		}
		start := cursor + offset
		end := start + len(sentence)
		spans = append(spans, sentenceSpan{
			start: start,
			end:   end,
			words: len(strings.Fields(sentence)),
		})
		cursor = end
	}
	return spans
}

// splitByWords accumulates whole sentences until the next one would exceed
// maxWords, then opens the following chunk pre-seeded with the trailing
// overlap sentences of the one just closed. A single sentence larger than
// maxWords is emitted whole rather than split mid-sentence, and sentences
// spanned by one protected segment travel together the same way: a chunk
// boundary inside a protected span would leave it maskable by neither side.
// protected offsets are local to text.
func (s *Splitter) splitByWords(text string, base, chapter, maxWords int, protected []domain.ProtectedSegment) []*domain.TransformChunk {
	spans := s.locateSentences(text)
	if len(spans) == 0 {
		return []*domain.TransformChunk{s.wholeChunk(text, base, chapter)}
	}
	groups := groupSentences(spans, protected)

	chunks := make([]*domain.TransformChunk, 0, 4)
	emit := func(firstGroup, lastGroup int) {
		start := spans[groups[firstGroup].first].start
		end := spans[groups[lastGroup].last].end
		section := text[start:end]
		chunks = append(chunks, &domain.TransformChunk{
			Text:         section,
			Start:        base + start,
			End:          base + end,
			WordCount:    len(strings.Fields(section)),
			ChapterIndex: chapter,
			Status:       domain.ChunkStatusPending,
		})
	}

	first := 0
	acc := 0
	for i := range groups {
		if acc > 0 && acc+groups[i].words > maxWords {
			emit(first, i-1)
			// walk the overlap back in whole groups, but never seed more
			// sentences than reassembly is allowed to drop again
			next := i
			budget := s.config.OverlapSentences
			for next-1 > first {
				size := groups[next-1].last - groups[next-1].first + 1
				if size > budget {
					break
				}
				budget -= size
				next--
			}
			first = next
			acc = 0
			for j := first; j < i; j++ {
				acc += groups[j].words
			}
		}
		acc += groups[i].words
	}
	emit(first, len(groups)-1)
	return chunks
}

// sentenceGroup is a run of consecutive sentence spans treated as one
// indivisible splitting unit.
type sentenceGroup struct {
	first int
	last  int
	words int
}

// groupSentences merges consecutive sentences crossed by the same protected
// segment into one group; every other sentence is its own group. A segment
// crosses when it starts before the later sentence and ends after the earlier
// one, which also covers segments reaching into the whitespace between them.
func groupSentences(spans []sentenceSpan, protected []domain.ProtectedSegment) []sentenceGroup {
	groups := make([]sentenceGroup, 0, len(spans))
	for i, span := range spans {
		if i > 0 && segmentJoins(protected, spans[i-1].end, span.start) {
			joined := &groups[len(groups)-1]
			joined.last = i
			joined.words += span.words
			continue
		}
		groups = append(groups, sentenceGroup{first: i, last: i, words: span.words})
	}
	return groups
}

func segmentJoins(segments []domain.ProtectedSegment, prevEnd, nextStart int) bool {
	for _, segment := range segments {
		if segment.Start < nextStart && segment.End > prevEnd {
			return true
		}
	}
	return false
}

// crossesProtected reports whether any segment straddles the given offset.
func crossesProtected(segments []domain.ProtectedSegment, offset int) bool {
	for _, segment := range segments {
		if segment.Start < offset && segment.End > offset {
			return true
		}
	}
	return false
}

// localizeSegments shifts the segments intersecting [start, end) into
// coordinates local to that window. Partial intersections are kept: the
// grouping logic needs to see spans that reach past a window edge.
func localizeSegments(segments []domain.ProtectedSegment, start, end int) []domain.ProtectedSegment {
	out := make([]domain.ProtectedSegment, 0)
	for _, segment := range segments {
		if segment.End <= start || segment.Start >= end {
			continue
		}
		shifted := segment
		shifted.Start -= start
		shifted.End -= start
		out = append(out, shifted)
	}
	return out
}

func (s *Splitter) wholeChunk(text string, base, chapter int) *domain.TransformChunk {
	return &domain.TransformChunk{
		Text:         text,
		Start:        base,
		End:          base + len(text),
		WordCount:    s.analyzer.CountWords(text),
		ChapterIndex: chapter,
		Status:       domain.ChunkStatusPending,
	}
}

func stamp(chunks []*domain.TransformChunk) {
	for i, chunk := range chunks {
		chunk.Index = i
		chunk.TotalChunks = len(chunks)
	}
}

// Stamp renumbers a chunk set after external modification (resume sub-jobs,
// adaptive resplitting).
func Stamp(chunks []*domain.TransformChunk) {
	stamp(chunks)
}
