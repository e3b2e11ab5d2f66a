package domain

import (
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusAnalyzing  JobStatus = "analyzing"
	JobStatusChunking   JobStatus = "chunking"
	JobStatusProcessing JobStatus = "processing"
	JobStatusAssembling JobStatus = "assembling"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusPaused     JobStatus = "paused"
	JobStatusCancelled  JobStatus = "cancelled"
)

type ChunkStatus string

const (
	ChunkStatusPending    ChunkStatus = "pending"
	ChunkStatusProcessing ChunkStatus = "processing"
	ChunkStatusCompleted  ChunkStatus = "completed"
	ChunkStatusFailed     ChunkStatus = "failed"
)

type StrategyName string

const (
	StrategyAuto         StrategyName = "auto"
	StrategyCasual       StrategyName = "casual"
	StrategyProfessional StrategyName = "professional"
	StrategyAcademic     StrategyName = "academic"
)

// ContentType is the coarse document category detected before chunking.
type ContentType string

const (
	ContentFiction   ContentType = "fiction"
	ContentAcademic  ContentType = "academic"
	ContentBusiness  ContentType = "business"
	ContentTechnical ContentType = "technical"
	ContentCasual    ContentType = "casual"
	ContentGeneral   ContentType = "general"
)

type Tone string

const (
	ToneFormal   Tone = "formal"
	ToneCasual   Tone = "casual"
	ToneNeutral  Tone = "neutral"
	ToneAcademic Tone = "academic"
)

// DelimiterPair marks the open/close markers of a protected span.
type DelimiterPair struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// TransformRequest is the immutable input of a transformation job.
type TransformRequest struct {
	Text         string          `json:"text"`
	Level        int             `json:"level"`
	Strategy     StrategyName    `json:"strategy"`
	Delimiters   []DelimiterPair `json:"delimiters,omitempty"`
	LanguageHint string          `json:"language_hint,omitempty"`
	UserID       string          `json:"user_id,omitempty"`
	ProjectID    string          `json:"project_id,omitempty"`
	Resumable    bool            `json:"resumable,omitempty"`
}

// ProtectedSegment is a span of the original text that must survive
// transformation byte-identical, delimiters included.
type ProtectedSegment struct {
	Original string `json:"original"`
	Inner    string `json:"inner"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

// StyleProfile holds document-wide statistics computed once before chunking.
// It is shared read-only by every chunk of a job.
type StyleProfile struct {
	Formality              float64  `json:"formality"`
	VocabularyComplexity   float64  `json:"vocabulary_complexity"`
	AvgSentenceLength      float64  `json:"avg_sentence_length"`
	SentenceLengthVariance float64  `json:"sentence_length_variance"`
	FrequentPhrases        []string `json:"frequent_phrases,omitempty"`
	Tone                   Tone     `json:"tone"`
}

// ChunkContext carries continuity state from the previous chunk by index.
type ChunkContext struct {
	PreviousSentences []string           `json:"previous_sentences,omitempty"`
	CharacterVoices   map[string]string  `json:"character_voices,omitempty"`
	NarratorVoice     string             `json:"narrator_voice,omitempty"`
	Themes            []string           `json:"themes,omitempty"`
	KeyTerms          []string           `json:"key_terms,omitempty"`
	Profile           *StyleProfile      `json:"profile,omitempty"`
	Protected         []ProtectedSegment `json:"protected,omitempty"`
}

// TransformChunk is the unit of rewriting work. Start/End are byte offsets
// into the original document; with overlap enabled, adjacent spans intersect
// in the trailing overlap sentences of the earlier chunk.
type TransformChunk struct {
	Index        int           `json:"index"`
	TotalChunks  int           `json:"total_chunks"`
	Text         string        `json:"text"`
	Rewritten    string        `json:"rewritten,omitempty"`
	Start        int           `json:"start"`
	End          int           `json:"end"`
	WordCount    int           `json:"word_count"`
	ChapterIndex int           `json:"chapter_index"` // -1 when no chapter structure
	Status       ChunkStatus   `json:"status"`
	Context      ChunkContext  `json:"context"`
	Duration     time.Duration `json:"duration"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// TextMetrics are language-agnostic statistics computed before and after
// transformation.
type TextMetrics struct {
	Perplexity        float64 `json:"perplexity"`
	Burstiness        float64 `json:"burstiness"`
	LexicalDiversity  float64 `json:"lexical_diversity"`
	AvgSentenceLength float64 `json:"avg_sentence_length"`
	SentenceCount     int     `json:"sentence_count"`
	WordCount         int     `json:"word_count"`
}

// ProgressUpdate is a point-in-time snapshot of a running job.
type ProgressUpdate struct {
	JobID       string         `json:"job_id"`
	Status      JobStatus      `json:"status"`
	Progress    float64        `json:"progress"`
	ChunksDone  int            `json:"chunks_done"`
	TotalChunks int            `json:"total_chunks"`
	WordsDone   int            `json:"words_done"`
	TotalWords  int            `json:"total_words"`
	ETA         *time.Duration `json:"eta,omitempty"` // nil until a chunk completed
	Phase       string         `json:"phase,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// ResumableJobState is a checkpoint of a paused or periodically snapshotted
// job. Consumed exactly once by resume.
type ResumableJobState struct {
	JobID         string           `json:"job_id"`
	Request       TransformRequest `json:"request"`
	Processed     []TransformChunk `json:"processed"`
	Pending       []TransformChunk `json:"pending"`
	Context       ChunkContext     `json:"context"`
	AssembledText string           `json:"assembled_text"`
	RemainingText string           `json:"remaining_text"`
	CheckpointAt  time.Time        `json:"checkpoint_at"`
	Elapsed       time.Duration    `json:"elapsed"`

	// Totals carried over from runs before this checkpoint's sub-run, so a
	// job paused more than once still reports progress against the whole
	// document.
	PriorChunks    int `json:"prior_chunks,omitempty"`
	PriorWords     int `json:"prior_words,omitempty"`
	PriorProtected int `json:"prior_protected,omitempty"`
}

// TransformResult is the terminal output of a completed job.
type TransformResult struct {
	JobID               string        `json:"job_id"`
	Text                string        `json:"text"`
	MetricsBefore       TextMetrics   `json:"metrics_before"`
	MetricsAfter        TextMetrics   `json:"metrics_after"`
	ModificationPercent float64       `json:"modification_percent"`
	SentencesModified   int           `json:"sentences_modified"`
	DetectionScore      float64       `json:"detection_score"`
	DetectionFallback   bool          `json:"detection_fallback,omitempty"`
	ProcessingTime      time.Duration `json:"processing_time"`
	ChunksProcessed     int           `json:"chunks_processed"`
	TotalChunks         int           `json:"total_chunks"`
	Strategy            StrategyName  `json:"strategy"`
	Level               int           `json:"level"`
	ProtectedPreserved  int           `json:"protected_preserved"`
	ContentType         ContentType   `json:"content_type"`
	Language            string        `json:"language"`
}
