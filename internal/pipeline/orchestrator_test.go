package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/textforge/humanizer-back/internal/analysis"
	"github.com/textforge/humanizer-back/internal/detect"
	"github.com/textforge/humanizer-back/internal/domain"
	"github.com/textforge/humanizer-back/internal/repository"
	"github.com/textforge/humanizer-back/internal/strategy"
)

type identityStrategy struct{}

func (identityStrategy) Name() domain.StrategyName { return "identity" }

func (identityStrategy) Apply(text string, _ int, _ domain.ChunkContext) (string, error) {
	return text, nil
}

// gateStrategy blocks every chunk on a shared gate so tests can hold a job
// mid-flight while they pause or cancel it.
type gateStrategy struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGateStrategy() *gateStrategy {
	return &gateStrategy{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gateStrategy) Name() domain.StrategyName { return "gate" }

func (g *gateStrategy) Apply(text string, _ int, _ domain.ChunkContext) (string, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return text, nil
}

// stagedGate lets a test block the n-th Apply call overall, so a job can be
// held and paused at a chosen chunk across runs.
type stagedGate struct {
	mu      sync.Mutex
	applied int
	entered map[int]chan struct{}
	gates   map[int]chan struct{}
}

func newStagedGate() *stagedGate {
	return &stagedGate{
		entered: make(map[int]chan struct{}),
		gates:   make(map[int]chan struct{}),
	}
}

func (g *stagedGate) Name() domain.StrategyName { return "staged" }

func (g *stagedGate) holdAt(n int) (entered, release chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entered = make(chan struct{})
	release = make(chan struct{})
	g.entered[n] = entered
	g.gates[n] = release
	return entered, release
}

func (g *stagedGate) Apply(text string, _ int, _ domain.ChunkContext) (string, error) {
	g.mu.Lock()
	g.applied++
	entered := g.entered[g.applied]
	gate := g.gates[g.applied]
	g.mu.Unlock()
	if entered != nil {
		close(entered)
	}
	if gate != nil {
		<-gate
	}
	return text, nil
}

func newTestOrchestrator(checkpoints repository.CheckpointRepository, extra ...strategy.Strategy) *Orchestrator {
	engine := strategy.NewEngine()
	for _, s := range extra {
		engine.Register(s)
	}
	return NewOrchestrator(
		Config{
			MaxChunkWords:    30,
			OverlapSentences: 2,
			Parallelism:      1,
			MemoryThreshold:  0.99,
			MinChunkWords:    10,
		},
		analysis.NewAnalyzer(),
		engine,
		detect.NewScorer(detect.ScorerConfig{}),
		checkpoints,
		nil,
	)
}

func docWithSentences(n int) string {
	var builder strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			builder.WriteString(" ")
		}
		fmt.Fprintf(&builder, "Sentence number%d carries marker token%d in this line.", i, i)
	}
	return builder.String()
}

func normalizeWords(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func TestTransformIdentityRoundTrip(t *testing.T) {
	orch := newTestOrchestrator(repository.NewMemoryCheckpointRepository(), identityStrategy{})
	text := docWithSentences(20)

	result, err := orch.Run(context.Background(), "job-rt", domain.TransformRequest{
		Text:     text,
		Level:    3,
		Strategy: "identity",
	}, nil)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if result.TotalChunks < 2 {
		t.Fatalf("expected multiple chunks, got %d", result.TotalChunks)
	}
	if normalizeWords(result.Text) != normalizeWords(text) {
		t.Fatalf("identity round trip altered the document:\nwant %q\ngot  %q", normalizeWords(text), normalizeWords(result.Text))
	}
	if result.MetricsAfter.WordCount != result.MetricsBefore.WordCount {
		t.Fatalf("word count changed: before=%d after=%d", result.MetricsBefore.WordCount, result.MetricsAfter.WordCount)
	}
}

func TestTransformValidation(t *testing.T) {
	orch := newTestOrchestrator(repository.NewMemoryCheckpointRepository())

	cases := []domain.TransformRequest{
		{Text: "   ", Level: 3, Strategy: domain.StrategyCasual},
		{Text: "Fine text here.", Level: 0, Strategy: domain.StrategyCasual},
		{Text: "Fine text here.", Level: 9, Strategy: domain.StrategyCasual},
		{Text: "Fine text here.", Level: 3, Strategy: "nonexistent"},
		{Text: "Fine text here.", Level: 3, Strategy: domain.StrategyCasual, Delimiters: []domain.DelimiterPair{{Open: "[["}}},
	}
	for i, req := range cases {
		if _, err := orch.Transform(context.Background(), req, nil); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestTransformPreservesProtectedSegments(t *testing.T) {
	orch := newTestOrchestrator(repository.NewMemoryCheckpointRepository())
	text := "We cannot utilize the API without auth. " +
		"The token [[sk-test-12345 do not touch]] must remain intact. " +
		"Additionally we should not demonstrate anything else here."

	result, err := orch.Transform(context.Background(), domain.TransformRequest{
		Text:     text,
		Level:    5,
		Strategy: domain.StrategyCasual,
	}, nil)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if !strings.Contains(result.Text, "[[sk-test-12345 do not touch]]") {
		t.Fatalf("protected segment lost or altered: %q", result.Text)
	}
	if result.ProtectedPreserved != 1 {
		t.Fatalf("expected 1 protected segment, got %d", result.ProtectedPreserved)
	}
	if result.SentencesModified == 0 {
		t.Fatalf("expected casual strategy to modify unprotected sentences")
	}
}

func TestTransformProtectedSegmentAcrossChunkBreak(t *testing.T) {
	orch := newTestOrchestrator(repository.NewMemoryCheckpointRepository())
	// the locked span holds a sentence boundary and sits right where the
	// word budget splits the document
	locked := "[[gamma cannot delta. Epsilon zeta eta theta iota mu nu]]"
	text := docWithSentences(3) +
		" The vault " + locked + " stays sealed exactly as written. " +
		"We continue with marker omega1 in this line. " +
		"We continue with marker omega2 in this line. " +
		"We continue with marker omega3 in this line."

	result, err := orch.Transform(context.Background(), domain.TransformRequest{
		Text:     text,
		Level:    5,
		Strategy: domain.StrategyCasual,
	}, nil)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if result.TotalChunks < 2 {
		t.Fatalf("expected the document to split, got %d chunks", result.TotalChunks)
	}
	if got := strings.Count(result.Text, locked); got != 1 {
		t.Fatalf("protected span must survive exactly once, found %d in %q", got, result.Text)
	}
}

func TestPauseResumeProducesSameOutput(t *testing.T) {
	text := docWithSentences(24)

	straight := newTestOrchestrator(repository.NewMemoryCheckpointRepository(), identityStrategy{})
	want, err := straight.Run(context.Background(), "job-straight", domain.TransformRequest{
		Text:     text,
		Level:    3,
		Strategy: "identity",
	}, nil)
	if err != nil {
		t.Fatalf("straight run failed: %v", err)
	}

	gate := newGateStrategy()
	checkpoints := repository.NewMemoryCheckpointRepository()
	orch := newTestOrchestrator(checkpoints, gate)

	runErr := make(chan error, 1)
	go func() {
		_, err := orch.Run(context.Background(), "job-pause", domain.TransformRequest{
			Text:      text,
			Level:     3,
			Strategy:  "gate",
			Resumable: true,
		}, nil)
		runErr <- err
	}()

	<-gate.started
	pauseErr := make(chan error, 1)
	go func() {
		pauseErr <- orch.Pause(context.Background(), "job-pause")
	}()
	time.Sleep(50 * time.Millisecond) // let Pause set the signal
	close(gate.release)

	if err := <-runErr; !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused from paused run, got %v", err)
	}
	if err := <-pauseErr; err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	update, err := orch.Status(context.Background(), "job-pause")
	if err != nil {
		t.Fatalf("status of paused job failed: %v", err)
	}
	if update.Status != domain.JobStatusPaused {
		t.Fatalf("expected paused status, got %s", update.Status)
	}
	if update.ChunksDone == 0 || update.ChunksDone >= update.TotalChunks {
		t.Fatalf("expected partial progress, got %d/%d", update.ChunksDone, update.TotalChunks)
	}

	result, err := orch.Resume(context.Background(), "job-pause", nil)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if normalizeWords(result.Text) != normalizeWords(want.Text) {
		t.Fatalf("resumed output differs from uninterrupted output:\nwant %q\ngot  %q", normalizeWords(want.Text), normalizeWords(result.Text))
	}
	if result.MetricsBefore.WordCount != want.MetricsBefore.WordCount {
		t.Fatalf("resumed metrics cover %d words, want %d", result.MetricsBefore.WordCount, want.MetricsBefore.WordCount)
	}

	// checkpoint is consumed exactly once
	if _, err := orch.Resume(context.Background(), "job-pause", nil); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second resume, got %v", err)
	}
}

func TestStatusAfterSecondPauseCoversWholeDocument(t *testing.T) {
	gate := newStagedGate()
	checkpoints := repository.NewMemoryCheckpointRepository()
	orch := newTestOrchestrator(checkpoints, gate)
	text := docWithSentences(24)

	pauseAt := func(entered, release chan struct{}, resume bool) *domain.ProgressUpdate {
		runErr := make(chan error, 1)
		go func() {
			var err error
			if resume {
				_, err = orch.Resume(context.Background(), "job-twice", nil)
			} else {
				_, err = orch.Run(context.Background(), "job-twice", domain.TransformRequest{
					Text:      text,
					Level:     3,
					Strategy:  "staged",
					Resumable: true,
				}, nil)
			}
			runErr <- err
		}()
		<-entered
		pauseErr := make(chan error, 1)
		go func() {
			pauseErr <- orch.Pause(context.Background(), "job-twice")
		}()
		time.Sleep(50 * time.Millisecond) // let Pause set the signal
		close(release)

		if err := <-runErr; !errors.Is(err, ErrPaused) {
			t.Fatalf("expected ErrPaused, got %v", err)
		}
		if err := <-pauseErr; err != nil {
			t.Fatalf("pause failed: %v", err)
		}
		update, err := orch.Status(context.Background(), "job-twice")
		if err != nil {
			t.Fatalf("status of paused job failed: %v", err)
		}
		return update
	}

	entered, release := gate.holdAt(3)
	first := pauseAt(entered, release, false)
	if first.ChunksDone < 3 {
		t.Fatalf("expected at least 3 chunks done at first pause, got %d", first.ChunksDone)
	}

	entered, release = gate.holdAt(4)
	second := pauseAt(entered, release, true)
	if second.ChunksDone <= first.ChunksDone {
		t.Fatalf("second pause reports %d chunks done, first already reported %d", second.ChunksDone, first.ChunksDone)
	}
	if second.WordsDone <= first.WordsDone {
		t.Fatalf("second pause reports %d words done, first already reported %d", second.WordsDone, first.WordsDone)
	}
	if second.TotalChunks <= second.ChunksDone {
		t.Fatalf("expected remaining work after second pause: %d/%d", second.ChunksDone, second.TotalChunks)
	}
}

func TestCancelDiscardsJob(t *testing.T) {
	gate := newGateStrategy()
	checkpoints := repository.NewMemoryCheckpointRepository()
	orch := newTestOrchestrator(checkpoints, gate)

	runErr := make(chan error, 1)
	go func() {
		_, err := orch.Run(context.Background(), "job-cancel", domain.TransformRequest{
			Text:      docWithSentences(24),
			Level:     3,
			Strategy:  "gate",
			Resumable: true,
		}, nil)
		runErr <- err
	}()

	<-gate.started
	cancelErr := make(chan error, 1)
	go func() {
		cancelErr <- orch.Cancel(context.Background(), "job-cancel")
	}()
	time.Sleep(50 * time.Millisecond)
	close(gate.release)

	if err := <-runErr; !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if err := <-cancelErr; err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := checkpoints.Load(context.Background(), "job-cancel"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected no checkpoint after cancel, got %v", err)
	}
	if _, err := orch.Status(context.Background(), "job-cancel"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after cancel, got %v", err)
	}
}

func TestTransformCompletesWhenScorerUnavailable(t *testing.T) {
	// ScorerConfig without a base URL always falls back; the job must still
	// finish with a flagged default score.
	orch := newTestOrchestrator(repository.NewMemoryCheckpointRepository())

	result, err := orch.Transform(context.Background(), domain.TransformRequest{
		Text:     "We cannot utilize this. We must not demonstrate that. Therefore we facilitate nothing.",
		Level:    4,
		Strategy: domain.StrategyProfessional,
	}, nil)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if !result.DetectionFallback {
		t.Fatalf("expected fallback detection score")
	}
	if result.DetectionScore <= 0 {
		t.Fatalf("expected a default detection score, got %f", result.DetectionScore)
	}
}

func TestProgressUpdatesAreMonotonic(t *testing.T) {
	orch := newTestOrchestrator(repository.NewMemoryCheckpointRepository(), identityStrategy{})
	updates := make(chan domain.ProgressUpdate, 256)

	_, err := orch.Run(context.Background(), "job-progress", domain.TransformRequest{
		Text:     docWithSentences(20),
		Level:    3,
		Strategy: "identity",
	}, updates)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond) // let the forwarder drain

	var collected []domain.ProgressUpdate
	for {
		select {
		case update := <-updates:
			collected = append(collected, update)
			continue
		default:
		}
		break
	}
	if len(collected) == 0 {
		t.Fatalf("expected progress updates")
	}
	lastProgress := -1.0
	for _, update := range collected {
		if update.Progress < lastProgress {
			t.Fatalf("progress went backwards: %f after %f", update.Progress, lastProgress)
		}
		lastProgress = update.Progress
	}
	final := collected[len(collected)-1]
	if final.Status != domain.JobStatusCompleted {
		t.Fatalf("expected final update to be completed, got %s", final.Status)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	orch := newTestOrchestrator(repository.NewMemoryCheckpointRepository())
	if _, err := orch.Status(context.Background(), "nope"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssembleChapterBreaks(t *testing.T) {
	orch := newTestOrchestrator(repository.NewMemoryCheckpointRepository())
	chunks := []*domain.TransformChunk{
		{Text: "First chapter ends here.", ChapterIndex: 0, Rewritten: "First chapter ends here."},
		{Text: "Second chapter starts now.", ChapterIndex: 1, Rewritten: "Second chapter starts now."},
	}
	got := orch.assemble(chunks)
	if !strings.Contains(got, "here.\n\nSecond") {
		t.Fatalf("expected paragraph break between chapters, got %q", got)
	}
}

func TestTrimOverlapDropsFuzzyDuplicates(t *testing.T) {
	orch := newTestOrchestrator(repository.NewMemoryCheckpointRepository())
	prev := "Something else entirely. The quick brown fox jumps over the lazy dog today."
	next := "The quick brown fox jumps over the lazy dog today. A completely new sentence follows."

	got := orch.trimOverlap(prev, next)
	if strings.Contains(got, "quick brown fox") {
		t.Fatalf("expected overlap sentence dropped, got %q", got)
	}
	if !strings.Contains(got, "completely new sentence") {
		t.Fatalf("expected remainder kept, got %q", got)
	}
}
