package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/textforge/humanizer-back/internal/domain"
	"github.com/textforge/humanizer-back/internal/pipeline"
	"github.com/textforge/humanizer-back/internal/repository"
	"github.com/textforge/humanizer-back/internal/strategy"
)

const defaultJobTimeout = 30 * time.Minute

// TransformService wraps the pipeline with job-record bookkeeping: every
// transformation, synchronous or submitted, leaves a persisted record of how
// it ended.
type TransformService struct {
	pipeline   *pipeline.Orchestrator
	jobs       repository.JobsRepository
	jobTimeout time.Duration
	logger     *log.Logger
}

func NewTransformService(orchestrator *pipeline.Orchestrator, jobs repository.JobsRepository, jobTimeout time.Duration, logger *log.Logger) *TransformService {
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	return &TransformService{
		pipeline:   orchestrator,
		jobs:       jobs,
		jobTimeout: jobTimeout,
		logger:     logger,
	}
}

// Transform runs a job synchronously and returns its result. The job record
// is created before the run and finalized after, so failures stay auditable.
func (s *TransformService) Transform(ctx context.Context, req domain.TransformRequest) (*domain.TransformResult, error) {
	if err := s.pipeline.Validate(req); err != nil {
		return nil, err
	}

	record := s.newRecord(req)
	if err := s.jobs.CreateJob(ctx, record); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	result, err := s.pipeline.Run(ctx, record.ID, req, nil)
	s.finalize(record, result, err)
	return result, err
}

// Submit starts a job in the background and returns its pending record
// immediately. Validation errors surface synchronously so callers get a
// rejection instead of a failed job.
func (s *TransformService) Submit(ctx context.Context, req domain.TransformRequest) (*domain.JobRecord, error) {
	if err := s.pipeline.Validate(req); err != nil {
		return nil, err
	}

	record := s.newRecord(req)
	if err := s.jobs.CreateJob(ctx, record); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	// the goroutine's finalize mutates record, so the caller gets a snapshot
	// taken before the run starts
	snapshot := record.Clone()
	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		result, err := s.pipeline.Run(runCtx, record.ID, req, nil)
		s.finalize(record, result, err)
	}()
	return snapshot, nil
}

// GetJob returns the stored record, including the marshaled result for
// completed jobs.
func (s *TransformService) GetJob(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	return s.jobs.GetJob(ctx, jobID)
}

// Progress reports live progress for running jobs and checkpoint-derived
// progress for paused ones.
func (s *TransformService) Progress(ctx context.Context, jobID string) (*domain.ProgressUpdate, error) {
	return s.pipeline.Status(ctx, jobID)
}

// Pause stops a running job at the next chunk boundary and records the
// paused status.
func (s *TransformService) Pause(ctx context.Context, jobID string) error {
	return s.pipeline.Pause(ctx, jobID)
}

// Resume restarts a paused job in the background. The existing job record is
// moved back to processing and finalized when the resumed run ends.
func (s *TransformService) Resume(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	record, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	// the pipeline's view is authoritative: a live tracker means the job is
	// still running, no checkpoint means there is nothing to resume
	update, err := s.pipeline.Status(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: job %s has no checkpoint to resume", pipeline.ErrValidation, jobID)
		}
		return nil, err
	}
	if update.Status != domain.JobStatusPaused {
		return nil, fmt.Errorf("%w: job %s is %s, not paused", pipeline.ErrValidation, jobID, update.Status)
	}

	record.Status = domain.JobStatusProcessing
	record.UpdatedAt = time.Now().UTC()
	if err := s.jobs.UpdateJob(ctx, record); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}

	snapshot := record.Clone()
	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		result, err := s.pipeline.Resume(runCtx, jobID, nil)
		if errors.Is(err, repository.ErrNotFound) {
			// a concurrent resume consumed the checkpoint first; its run
			// owns the record now
			return
		}
		s.finalize(record, result, err)
	}()
	return snapshot, nil
}

// Cancel stops a job (running or paused) and records the cancelled status.
func (s *TransformService) Cancel(ctx context.Context, jobID string) error {
	if err := s.pipeline.Cancel(ctx, jobID); err != nil {
		return err
	}

	record, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil
	}
	if record.Status == domain.JobStatusPending || record.Status == domain.JobStatusProcessing || record.Status == domain.JobStatusPaused {
		record.Status = domain.JobStatusCancelled
		record.UpdatedAt = time.Now().UTC()
		if uerr := s.jobs.UpdateJob(ctx, record); uerr != nil && s.logger != nil {
			s.logger.Printf("service: cancel record update failed job_id=%s error=%v", jobID, uerr)
		}
	}
	return nil
}

// ReprocessBelowThreshold reruns the original text one increment more
// aggressively when the live detection score misses the threshold. Fallback
// scores never trigger a rerun: re-spending a whole pipeline pass on a made-up
// number helps nobody.
func (s *TransformService) ReprocessBelowThreshold(ctx context.Context, req domain.TransformRequest, result *domain.TransformResult, threshold float64) (*domain.TransformResult, error) {
	if result == nil {
		return nil, fmt.Errorf("%w: no result to reprocess", pipeline.ErrValidation)
	}
	if result.DetectionFallback || result.DetectionScore >= threshold {
		return result, nil
	}
	if result.Level >= strategy.MaxLevel {
		return result, nil
	}

	req.Level = result.Level + 1
	req.Strategy = result.Strategy
	if s.logger != nil {
		s.logger.Printf("service: reprocessing below threshold job_id=%s score=%.1f threshold=%.1f new_level=%d",
			result.JobID, result.DetectionScore, threshold, req.Level)
	}
	return s.Transform(ctx, req)
}

func (s *TransformService) newRecord(req domain.TransformRequest) *domain.JobRecord {
	now := time.Now().UTC()
	strategyName := req.Strategy
	if strategyName == "" {
		strategyName = domain.StrategyAuto
	}
	return &domain.JobRecord{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		Strategy:  strategyName,
		Level:     req.Level,
		Status:    domain.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *TransformService) finalize(record *domain.JobRecord, result *domain.TransformResult, err error) {
	record.UpdatedAt = time.Now().UTC()
	switch {
	case err == nil:
		record.Status = domain.JobStatusCompleted
		if result != nil {
			record.Strategy = result.Strategy
			if payload, merr := json.Marshal(result); merr == nil {
				record.Result = payload
			}
		}
	case errors.Is(err, pipeline.ErrPaused):
		record.Status = domain.JobStatusPaused
	case errors.Is(err, pipeline.ErrCancelled):
		record.Status = domain.JobStatusCancelled
	default:
		record.Status = domain.JobStatusFailed
		record.ErrorMessage = err.Error()
	}

	if uerr := s.jobs.UpdateJob(context.Background(), record); uerr != nil && s.logger != nil {
		s.logger.Printf("service: job record update failed job_id=%s error=%v", record.ID, uerr)
	}
}
