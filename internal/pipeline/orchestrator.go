package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/textforge/humanizer-back/internal/analysis"
	"github.com/textforge/humanizer-back/internal/continuity"
	"github.com/textforge/humanizer-back/internal/detect"
	"github.com/textforge/humanizer-back/internal/domain"
	"github.com/textforge/humanizer-back/internal/progress"
	"github.com/textforge/humanizer-back/internal/repository"
	"github.com/textforge/humanizer-back/internal/splitter"
	"github.com/textforge/humanizer-back/internal/strategy"
)

var (
	ErrValidation     = errors.New("invalid transform request")
	ErrTransformation = errors.New("transformation failed")
	ErrPaused         = errors.New("job paused")
	ErrCancelled      = errors.New("job cancelled")
)

type Config struct {
	MaxChunkWords         int
	OverlapSentences      int
	Parallelism           int
	ProgressIntervalWords int
	ProgressBuffer        int
	CheckpointEvery       int
	MemoryCheckEvery      int
	MemoryThreshold       float64
	MinChunkWords         int
	TailSentences         int
	PassThreshold         float64
}

func (c Config) withDefaults() Config {
	if c.MaxChunkWords <= 0 {
		c.MaxChunkWords = splitter.DefaultMaxWords
	}
	if c.OverlapSentences < 0 {
		c.OverlapSentences = splitter.DefaultOverlapSentences
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 3
	}
	if c.ProgressIntervalWords <= 0 {
		c.ProgressIntervalWords = progress.DefaultIntervalWords
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = 10
	}
	if c.MemoryCheckEvery <= 0 {
		c.MemoryCheckEvery = 5
	}
	if c.MemoryThreshold <= 0 || c.MemoryThreshold > 1 {
		c.MemoryThreshold = 0.80
	}
	if c.MinChunkWords <= 0 {
		c.MinChunkWords = 1000
	}
	if c.TailSentences <= 0 {
		c.TailSentences = continuity.DefaultTailSentences
	}
	if c.PassThreshold <= 0 {
		c.PassThreshold = 75
	}
	return c
}

const (
	signalNone int32 = iota
	signalPause
	signalCancel
)

type jobState struct {
	id      string
	tracker *progress.Tracker

	signal atomic.Int32
	paused chan struct{} // closed once the pause checkpoint is stored
	done   chan struct{} // closed when the run loop exits
}

// Orchestrator drives transformation jobs end to end: validate, analyze,
// split, rewrite chunk by chunk, assemble. It owns the job lifecycle
// including pause/resume/cancel. The active-job registry and the checkpoint
// repository are the only cross-job state.
type Orchestrator struct {
	config      Config
	analyzer    *analysis.Analyzer
	splitter    *splitter.Splitter
	engine      *strategy.Engine
	scorer      *detect.Scorer
	checkpoints repository.CheckpointRepository
	logger      *log.Logger

	mu     sync.Mutex
	active map[string]*jobState
}

func NewOrchestrator(
	config Config,
	analyzer *analysis.Analyzer,
	engine *strategy.Engine,
	scorer *detect.Scorer,
	checkpoints repository.CheckpointRepository,
	logger *log.Logger,
) *Orchestrator {
	config = config.withDefaults()
	return &Orchestrator{
		config:   config,
		analyzer: analyzer,
		splitter: splitter.New(analyzer, splitter.Config{
			MaxWords:         config.MaxChunkWords,
			OverlapSentences: config.OverlapSentences,
		}),
		engine:      engine,
		scorer:      scorer,
		checkpoints: checkpoints,
		logger:      logger,
		active:      make(map[string]*jobState),
	}
}

// resumeSeed carries the already-processed half of a resumed job into the
// fresh sub-run over the remaining text.
type resumeSeed struct {
	assembled     string
	originalText  string
	prevChunks    int
	prevWords     int
	prevProtected int
	prevElapsed   time.Duration
	context       domain.ChunkContext
}

// Transform runs a whole job synchronously. Progress updates, when a
// non-nil channel is given, are forwarded without blocking: a full channel
// drops updates rather than stalling the pipeline.
func (o *Orchestrator) Transform(ctx context.Context, req domain.TransformRequest, updates chan<- domain.ProgressUpdate) (*domain.TransformResult, error) {
	return o.Run(ctx, uuid.NewString(), req, updates)
}

// Run is Transform with a caller-chosen job id, used by the service layer
// to correlate job records.
func (o *Orchestrator) Run(ctx context.Context, jobID string, req domain.TransformRequest, updates chan<- domain.ProgressUpdate) (*domain.TransformResult, error) {
	if req.Strategy == "" {
		req.Strategy = domain.StrategyAuto
	}
	if err := o.validate(req); err != nil {
		return nil, err
	}

	job, err := o.register(jobID, updates)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, job, req, resumeSeed{})
}

// Pause signals the job to stop at the next chunk boundary and returns once
// the checkpoint is stored. If the job reaches a terminal state before the
// boundary, Pause returns nil and no checkpoint exists; the caller already
// holds (or will receive) the final result.
func (o *Orchestrator) Pause(ctx context.Context, jobID string) error {
	job, ok := o.lookup(jobID)
	if !ok {
		return repository.ErrNotFound
	}
	job.signal.CompareAndSwap(signalNone, signalPause)

	select {
	case <-job.paused:
		return nil
	case <-job.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel signals the job to stop at the next chunk boundary and discards all
// of its state. A cancelled job cannot be resumed.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	job, ok := o.lookup(jobID)
	if !ok {
		// a paused job can still be cancelled: dropping its checkpoint is
		// all that is left to do
		if err := o.checkpoints.Delete(ctx, jobID); err == nil {
			return nil
		}
		return repository.ErrNotFound
	}
	job.signal.CompareAndSwap(signalNone, signalCancel)

	select {
	case <-job.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resume consumes the stored checkpoint exactly once and runs the remaining
// text as a fresh sub-job, prepending the previously assembled output and
// aggregating processing time and chunk counts.
func (o *Orchestrator) Resume(ctx context.Context, jobID string, updates chan<- domain.ProgressUpdate) (*domain.TransformResult, error) {
	state, err := o.checkpoints.Load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := o.checkpoints.Delete(ctx, jobID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	seed := resumeSeed{
		assembled:     state.AssembledText,
		originalText:  state.Request.Text,
		prevChunks:    state.PriorChunks + len(state.Processed),
		prevWords:     state.PriorWords,
		prevProtected: state.PriorProtected,
		prevElapsed:   state.Elapsed,
		context:       state.Context,
	}
	for _, chunk := range state.Processed {
		seed.prevWords += chunk.WordCount
		seed.prevProtected += len(chunk.Context.Protected)
	}

	if strings.TrimSpace(state.RemainingText) == "" {
		return o.finishWithoutRemainder(ctx, state, seed)
	}

	subReq := state.Request
	subReq.Text = state.RemainingText
	if err := o.validate(subReq); err != nil {
		return nil, err
	}

	job, err := o.register(jobID, updates)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, job, subReq, seed)
}

// Status returns a live snapshot for active jobs or a synthesized one for
// paused jobs. Unknown ids yield repository.ErrNotFound.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (*domain.ProgressUpdate, error) {
	if job, ok := o.lookup(jobID); ok {
		snapshot := job.tracker.Snapshot()
		return &snapshot, nil
	}

	state, err := o.checkpoints.Load(ctx, jobID)
	if err != nil {
		return nil, err
	}

	// prior totals cover runs before the checkpoint's own sub-run, so a
	// twice-paused job still reports against the whole document
	wordsDone, totalWords := state.PriorWords, state.PriorWords
	for _, chunk := range state.Processed {
		wordsDone += chunk.WordCount
		totalWords += chunk.WordCount
	}
	for _, chunk := range state.Pending {
		totalWords += chunk.WordCount
	}
	update := domain.ProgressUpdate{
		JobID:       state.JobID,
		Status:      domain.JobStatusPaused,
		ChunksDone:  state.PriorChunks + len(state.Processed),
		TotalChunks: state.PriorChunks + len(state.Processed) + len(state.Pending),
		WordsDone:   wordsDone,
		TotalWords:  totalWords,
		Phase:       "paused",
		Timestamp:   state.CheckpointAt,
	}
	if totalWords > 0 {
		update.Progress = float64(wordsDone) * 100 / float64(totalWords)
	}
	return &update, nil
}

// Validate checks a request without running it, so callers can reject bad
// input before creating a job record.
func (o *Orchestrator) Validate(req domain.TransformRequest) error {
	if req.Strategy == "" {
		req.Strategy = domain.StrategyAuto
	}
	return o.validate(req)
}

func (o *Orchestrator) validate(req domain.TransformRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("%w: text is empty", ErrValidation)
	}
	if req.Level < strategy.MinLevel || req.Level > strategy.MaxLevel {
		return fmt.Errorf("%w: level %d outside [%d,%d]", ErrValidation, req.Level, strategy.MinLevel, strategy.MaxLevel)
	}
	if !o.engine.Known(req.Strategy) {
		return fmt.Errorf("%w: unknown strategy %q", ErrValidation, req.Strategy)
	}
	for _, pair := range req.Delimiters {
		if (pair.Open == "") != (pair.Close == "") {
			return fmt.Errorf("%w: delimiter pair must set both open and close", ErrValidation)
		}
	}
	return nil
}

func (o *Orchestrator) register(jobID string, updates chan<- domain.ProgressUpdate) (*jobState, error) {
	job := &jobState{
		id:      jobID,
		tracker: progress.NewTracker(jobID, o.config.ProgressIntervalWords, o.config.ProgressBuffer),
		paused:  make(chan struct{}),
		done:    make(chan struct{}),
	}

	o.mu.Lock()
	if _, exists := o.active[jobID]; exists {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: job %s already active", ErrValidation, jobID)
	}
	o.active[jobID] = job
	o.mu.Unlock()

	if updates != nil {
		go func() {
			for update := range job.tracker.Updates() {
				select {
				case updates <- update:
				default:
				}
			}
		}()
	}
	return job, nil
}

func (o *Orchestrator) unregister(job *jobState) {
	o.mu.Lock()
	delete(o.active, job.id)
	o.mu.Unlock()
}

func (o *Orchestrator) lookup(jobID string) (*jobState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	job, ok := o.active[jobID]
	return job, ok
}
