package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/textforge/humanizer-back/internal/continuity"
	"github.com/textforge/humanizer-back/internal/domain"
	"github.com/textforge/humanizer-back/internal/protect"
	"github.com/textforge/humanizer-back/internal/splitter"
	"github.com/textforge/humanizer-back/internal/strategy"
)

// run is the job state machine: analyzing -> chunking -> processing ->
// assembling -> completed. Pause and cancel signals are honored at batch
// boundaries only, so a chunk is never left half rewritten.
func (o *Orchestrator) run(ctx context.Context, job *jobState, req domain.TransformRequest, seed resumeSeed) (*domain.TransformResult, error) {
	started := time.Now()
	tracker := job.tracker
	defer func() {
		o.unregister(job)
		tracker.Close()
		close(job.done)
	}()

	tracker.UpdateStatus(domain.JobStatusAnalyzing, "analyzing document")
	report, err := o.analyzer.Analyze(req.Text)
	if err != nil {
		tracker.UpdateStatus(domain.JobStatusFailed, "analysis failed")
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	profile := o.analyzer.BuildStyleProfile(req.Text)
	resolved, err := o.engine.Resolve(req.Strategy, profile)
	if err != nil {
		tracker.UpdateStatus(domain.JobStatusFailed, "strategy resolution failed")
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	language := report.Language
	if req.LanguageHint != "" {
		language = req.LanguageHint
	}

	tracker.UpdateStatus(domain.JobStatusChunking, "splitting document")
	protected := protect.Parse(req.Text, req.Delimiters)
	chunkTarget := o.config.MaxChunkWords
	chunks := o.splitter.Split(req.Text, protected, chunkTarget)
	tracker.Init(report.Metrics.WordCount, len(chunks))

	if o.logger != nil {
		o.logger.Printf("pipeline: job started job_id=%s chunks=%d words=%d strategy=%s level=%d",
			job.id, len(chunks), report.Metrics.WordCount, resolved, req.Level)
	}

	preserver := continuity.NewPreserver(o.analyzer, profile, report.ContentType, o.config.TailSentences)
	acc := continuity.NewAccumulator()
	acc.Restore(seed.context)

	tracker.UpdateStatus(domain.JobStatusProcessing, "rewriting chunks")
	processed := 0
	lastCheckpoint := 0
	lastMemCheck := 0
	for processed < len(chunks) {
		switch job.signal.Load() {
		case signalCancel:
			_ = o.checkpoints.Delete(ctx, job.id)
			tracker.UpdateStatus(domain.JobStatusCancelled, "cancelled")
			if o.logger != nil {
				o.logger.Printf("pipeline: job cancelled job_id=%s chunks_done=%d", job.id, processed)
			}
			return nil, ErrCancelled
		case signalPause:
			if err := o.checkpoint(ctx, job, req, chunks, processed, acc, seed, started); err != nil {
				tracker.UpdateStatus(domain.JobStatusFailed, "checkpoint failed")
				return nil, fmt.Errorf("%w: checkpoint: %v", ErrTransformation, err)
			}
			tracker.UpdateStatus(domain.JobStatusPaused, "paused")
			close(job.paused)
			if o.logger != nil {
				o.logger.Printf("pipeline: job paused job_id=%s chunks_done=%d", job.id, processed)
			}
			return nil, ErrPaused
		}
		if err := ctx.Err(); err != nil {
			tracker.UpdateStatus(domain.JobStatusCancelled, "context cancelled")
			return nil, err
		}

		end := processed + o.config.Parallelism
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[processed:end]

		// Context is seeded in index order before dispatch: previous
		// sentences come from the prior chunk's source text, so enrichment
		// never has to wait for an out-of-order rewrite.
		for offset, chunk := range batch {
			var prev *domain.TransformChunk
			if processed+offset > 0 {
				prev = chunks[processed+offset-1]
			}
			preserver.Enrich(chunk, prev, acc)
			tracker.StartChunk(chunk.Index)
		}

		var wg sync.WaitGroup
		for _, chunk := range batch {
			wg.Add(1)
			go func(c *domain.TransformChunk) {
				defer wg.Done()
				o.processChunk(c, resolved, req.Level)
			}(chunk)
		}
		wg.Wait()

		for _, chunk := range batch {
			if chunk.Status == domain.ChunkStatusFailed {
				tracker.FailChunk(chunk, chunk.ErrorMessage)
				if o.logger != nil {
					o.logger.Printf("pipeline: chunk failed job_id=%s chunk=%d error=%s", job.id, chunk.Index, chunk.ErrorMessage)
				}
				return nil, fmt.Errorf("%w: chunk %d: %s", ErrTransformation, chunk.Index, chunk.ErrorMessage)
			}
			tracker.CompleteChunk(chunk)
		}
		processed = end

		if req.Resumable && processed/o.config.CheckpointEvery > lastCheckpoint && processed < len(chunks) {
			lastCheckpoint = processed / o.config.CheckpointEvery
			if err := o.checkpoint(ctx, job, req, chunks, processed, acc, seed, started); err != nil && o.logger != nil {
				o.logger.Printf("pipeline: periodic checkpoint failed job_id=%s error=%v", job.id, err)
			}
		}

		if processed/o.config.MemoryCheckEvery > lastMemCheck && processed < len(chunks) {
			lastMemCheck = processed / o.config.MemoryCheckEvery
			if memoryUtilization() > o.config.MemoryThreshold {
				chunkTarget = o.relieve(chunkTarget)
				chunks = o.resplitPending(chunks, processed, chunkTarget)
				tracker.SetTotalChunks(len(chunks))
				if o.logger != nil {
					o.logger.Printf("pipeline: memory pressure, chunk target lowered job_id=%s target_words=%d chunks=%d",
						job.id, chunkTarget, len(chunks))
				}
			}
		}
	}

	tracker.UpdateStatus(domain.JobStatusAssembling, "assembling output")
	final := o.assemble(chunks)
	if seed.assembled != "" {
		final = joinAssembled(seed.assembled, final)
	}

	originalText := req.Text
	metricsBefore := report.Metrics
	if seed.originalText != "" {
		originalText = seed.originalText
		metricsBefore = o.analyzer.CalculateMetrics(originalText)
	}
	metricsAfter := o.analyzer.CalculateMetrics(final)

	beforeSentences := o.analyzer.ExtractSentences(originalText)
	afterSentences := o.analyzer.ExtractSentences(final)
	modifiedCount := strategy.CountModifiedSentences(beforeSentences, afterSentences)
	modificationPercent := 0.0
	if len(beforeSentences) > 0 {
		modificationPercent = float64(modifiedCount) * 100 / float64(len(beforeSentences))
	}

	detection := o.scorer.Score(ctx, final, o.config.PassThreshold)

	result := &domain.TransformResult{
		JobID:               job.id,
		Text:                final,
		MetricsBefore:       metricsBefore,
		MetricsAfter:        metricsAfter,
		ModificationPercent: modificationPercent,
		SentencesModified:   modifiedCount,
		DetectionScore:      detection.Score,
		DetectionFallback:   detection.Fallback,
		ProcessingTime:      seed.prevElapsed + time.Since(started),
		ChunksProcessed:     seed.prevChunks + len(chunks),
		TotalChunks:         seed.prevChunks + len(chunks),
		Strategy:            resolved,
		Level:               req.Level,
		ProtectedPreserved:  seed.prevProtected + len(protected),
		ContentType:         report.ContentType,
		Language:            language,
	}

	tracker.UpdateStatus(domain.JobStatusCompleted, "completed")
	if o.logger != nil {
		o.logger.Printf("pipeline: job completed job_id=%s chunks=%d duration=%s detection_score=%.1f",
			job.id, result.ChunksProcessed, result.ProcessingTime.Round(time.Millisecond), detection.Score)
	}
	return result, nil
}

// processChunk rewrites one chunk in isolation: mask protected spans, apply
// the strategy, restore, then verify every protected segment survived
// byte-identical.
func (o *Orchestrator) processChunk(chunk *domain.TransformChunk, name domain.StrategyName, level int) {
	chunkStart := time.Now()
	chunk.Status = domain.ChunkStatusProcessing

	masked, tokens := protect.Mask(chunk.Text, chunk.Context.Protected)
	rewritten, err := o.engine.Apply(name, masked, level, chunk.Context)
	if err == nil {
		rewritten, err = protect.Restore(rewritten, tokens)
	}
	if err == nil {
		for _, segment := range chunk.Context.Protected {
			if !strings.Contains(rewritten, segment.Original) {
				err = fmt.Errorf("protected segment lost: %q", segment.Original)
				break
			}
		}
	}

	chunk.Duration = time.Since(chunkStart)
	if err != nil {
		chunk.Status = domain.ChunkStatusFailed
		chunk.ErrorMessage = err.Error()
		return
	}
	chunk.Rewritten = rewritten
	chunk.Status = domain.ChunkStatusCompleted
}

// checkpoint stores everything resume needs: the output assembled so far and
// the untouched remainder of the source text. Remaining text is re-split on
// resume, so pending chunks are stored for status reporting only.
func (o *Orchestrator) checkpoint(ctx context.Context, job *jobState, req domain.TransformRequest, chunks []*domain.TransformChunk, processed int, acc *continuity.Accumulator, seed resumeSeed, started time.Time) error {
	assembled := o.assemble(chunks[:processed])
	if seed.assembled != "" {
		assembled = joinAssembled(seed.assembled, assembled)
	}

	remaining := req.Text
	if processed > 0 {
		remaining = req.Text[chunks[processed-1].End:]
	}
	if processed == len(chunks) {
		remaining = ""
	}

	themes, terms, voices, narrator := acc.Snapshot()
	state := &domain.ResumableJobState{
		JobID:          job.id,
		Request:        originalRequest(req, seed),
		PriorChunks:    seed.prevChunks,
		PriorWords:     seed.prevWords,
		PriorProtected: seed.prevProtected,
		Processed:      derefChunks(chunks[:processed]),
		Pending:        derefChunks(chunks[processed:]),
		Context: domain.ChunkContext{
			Themes:          themes,
			KeyTerms:        terms,
			CharacterVoices: voices,
			NarratorVoice:   narrator,
		},
		AssembledText: assembled,
		RemainingText: remaining,
		CheckpointAt:  time.Now(),
		Elapsed:       seed.prevElapsed + time.Since(started),
	}
	return o.checkpoints.Save(ctx, state)
}

// originalRequest keeps the full-document request in the checkpoint so a
// twice-paused job still reports metrics against the whole source.
func originalRequest(req domain.TransformRequest, seed resumeSeed) domain.TransformRequest {
	if seed.originalText != "" {
		req.Text = seed.originalText
	}
	return req
}

// finishWithoutRemainder closes out a checkpoint whose every chunk was
// already processed before the pause landed.
func (o *Orchestrator) finishWithoutRemainder(ctx context.Context, state *domain.ResumableJobState, seed resumeSeed) (*domain.TransformResult, error) {
	final := state.AssembledText
	profile := o.analyzer.BuildStyleProfile(state.Request.Text)
	resolved, err := o.engine.Resolve(state.Request.Strategy, profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	beforeSentences := o.analyzer.ExtractSentences(state.Request.Text)
	afterSentences := o.analyzer.ExtractSentences(final)
	modifiedCount := strategy.CountModifiedSentences(beforeSentences, afterSentences)
	modificationPercent := 0.0
	if len(beforeSentences) > 0 {
		modificationPercent = float64(modifiedCount) * 100 / float64(len(beforeSentences))
	}
	detection := o.scorer.Score(ctx, final, o.config.PassThreshold)

	return &domain.TransformResult{
		JobID:               state.JobID,
		Text:                final,
		MetricsBefore:       o.analyzer.CalculateMetrics(state.Request.Text),
		MetricsAfter:        o.analyzer.CalculateMetrics(final),
		ModificationPercent: modificationPercent,
		SentencesModified:   modifiedCount,
		DetectionScore:      detection.Score,
		DetectionFallback:   detection.Fallback,
		ProcessingTime:      seed.prevElapsed,
		ChunksProcessed:     seed.prevChunks,
		TotalChunks:         seed.prevChunks,
		Strategy:            resolved,
		Level:               state.Request.Level,
		ProtectedPreserved:  seed.prevProtected,
		ContentType:         o.analyzer.DetectContentType(state.Request.Text),
		Language:            o.analyzer.DetectLanguage(state.Request.Text),
	}, nil
}

// resplitPending re-splits not-yet-processed chunks that exceed the lowered
// word target and renumbers the whole sequence. Processed chunks keep their
// positions, so indexes stay stable for everything already reported.
func (o *Orchestrator) resplitPending(chunks []*domain.TransformChunk, processed, target int) []*domain.TransformChunk {
	out := make([]*domain.TransformChunk, 0, len(chunks))
	out = append(out, chunks[:processed]...)
	changed := false
	for _, chunk := range chunks[processed:] {
		if chunk.WordCount > target {
			parts := o.splitter.Resplit(chunk, target)
			if len(parts) > 1 {
				changed = true
				out = append(out, parts...)
				continue
			}
		}
		out = append(out, chunk)
	}
	if !changed {
		return chunks
	}
	splitter.Stamp(out)
	return out
}

func derefChunks(chunks []*domain.TransformChunk) []domain.TransformChunk {
	out := make([]domain.TransformChunk, len(chunks))
	for i, chunk := range chunks {
		out[i] = *chunk
	}
	return out
}
