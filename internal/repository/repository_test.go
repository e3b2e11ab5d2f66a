package repository

import (
	"context"
	"testing"
	"time"

	"github.com/textforge/humanizer-back/internal/domain"
)

func TestMemoryJobsRepositoryLifecycle(t *testing.T) {
	repo := NewMemoryJobsRepository()
	ctx := context.Background()

	job := &domain.JobRecord{
		ID:        "job-1",
		Strategy:  domain.StrategyCasual,
		Level:     3,
		Status:    domain.JobStatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	job.Status = domain.JobStatusCompleted
	if err := repo.UpdateJob(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	loaded, err := repo.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", loaded.Status)
	}

	if _, err := repo.GetJob(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.UpdateJob(ctx, &domain.JobRecord{ID: "missing"}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestMemoryJobsRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryJobsRepository()
	ctx := context.Background()

	job := &domain.JobRecord{ID: "job-1", Status: domain.JobStatusPending}
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	loaded, _ := repo.GetJob(ctx, "job-1")
	loaded.Status = domain.JobStatusFailed

	again, _ := repo.GetJob(ctx, "job-1")
	if again.Status != domain.JobStatusPending {
		t.Fatalf("repository leaked internal state")
	}
}

func TestMemoryCheckpointRepositoryLifecycle(t *testing.T) {
	repo := NewMemoryCheckpointRepository()
	ctx := context.Background()

	state := &domain.ResumableJobState{
		JobID:         "job-1",
		AssembledText: "partial output",
		Processed:     []domain.TransformChunk{{Index: 0, Status: domain.ChunkStatusCompleted}},
		Pending:       []domain.TransformChunk{{Index: 1}},
		CheckpointAt:  time.Now().UTC(),
	}
	if err := repo.Save(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := repo.Load(ctx, "job-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.AssembledText != "partial output" || len(loaded.Processed) != 1 {
		t.Fatalf("unexpected state: %+v", loaded)
	}

	if err := repo.Delete(ctx, "job-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Load(ctx, "job-1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, "job-1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}
