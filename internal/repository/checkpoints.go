package repository

import (
	"context"
	"sync"

	"github.com/textforge/humanizer-back/internal/domain"
)

// CheckpointRepository stores ResumableJobState snapshots keyed by job id.
// Load does not consume the checkpoint; resume deletes it explicitly after a
// successful load so the consume-exactly-once semantic stays visible at the
// call site.
type CheckpointRepository interface {
	Save(ctx context.Context, state *domain.ResumableJobState) error
	Load(ctx context.Context, jobID string) (*domain.ResumableJobState, error)
	Delete(ctx context.Context, jobID string) error
}

// MemoryCheckpointRepository keeps checkpoints in process memory. Pause
// state is lost on restart; use the Redis implementation when resumability
// must survive the process.
type MemoryCheckpointRepository struct {
	mu     sync.RWMutex
	states map[string]*domain.ResumableJobState
}

func NewMemoryCheckpointRepository() *MemoryCheckpointRepository {
	return &MemoryCheckpointRepository{
		states: make(map[string]*domain.ResumableJobState),
	}
}

func (r *MemoryCheckpointRepository) Save(_ context.Context, state *domain.ResumableJobState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[state.JobID] = cloneState(state)
	return nil
}

func (r *MemoryCheckpointRepository) Load(_ context.Context, jobID string) (*domain.ResumableJobState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.states[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneState(state), nil
}

func (r *MemoryCheckpointRepository) Delete(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.states[jobID]; !ok {
		return ErrNotFound
	}
	delete(r.states, jobID)
	return nil
}

func cloneState(state *domain.ResumableJobState) *domain.ResumableJobState {
	if state == nil {
		return nil
	}
	clone := *state
	clone.Processed = append([]domain.TransformChunk(nil), state.Processed...)
	clone.Pending = append([]domain.TransformChunk(nil), state.Pending...)
	return &clone
}
