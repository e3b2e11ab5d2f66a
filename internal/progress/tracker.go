package progress

import (
	"strconv"
	"sync"
	"time"

	"github.com/textforge/humanizer-back/internal/domain"
)

const (
	DefaultIntervalWords = 10000
	DefaultBuffer        = 64
)

// Tracker computes progress snapshots for one job and pushes them onto a
// bounded channel at a word-count cadence. Consumers drain Updates; a full
// buffer drops the update rather than blocking the pipeline, so a slow or
// absent consumer can never stall or abort a job.
type Tracker struct {
	mu sync.Mutex

	jobID  string
	status domain.JobStatus
	phase  string

	totalWords  int
	totalChunks int
	wordsDone   int
	chunksDone  int

	durations   []time.Duration
	sinceNotify int
	interval    int

	updates chan domain.ProgressUpdate
	closed  bool
}

func NewTracker(jobID string, intervalWords, buffer int) *Tracker {
	if intervalWords <= 0 {
		intervalWords = DefaultIntervalWords
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Tracker{
		jobID:    jobID,
		status:   domain.JobStatusPending,
		interval: intervalWords,
		updates:  make(chan domain.ProgressUpdate, buffer),
	}
}

// Updates is the stream callers drain. Closed when the job reaches a
// terminal state.
func (t *Tracker) Updates() <-chan domain.ProgressUpdate {
	return t.updates
}

func (t *Tracker) Init(totalWords, totalChunks int) {
	t.mu.Lock()
	t.totalWords = totalWords
	t.totalChunks = totalChunks
	t.mu.Unlock()
}

// SetTotalChunks adjusts the chunk total after adaptive resplitting. Word
// totals are unaffected, so progress stays monotone.
func (t *Tracker) SetTotalChunks(total int) {
	t.mu.Lock()
	t.totalChunks = total
	t.mu.Unlock()
}

func (t *Tracker) StartChunk(index int) {
	t.mu.Lock()
	t.phase = "processing chunk " + strconv.Itoa(index)
	t.mu.Unlock()
}

// CompleteChunk records a finished chunk and publishes a snapshot once the
// configured number of words has accumulated since the last push. On very
// large documents this bounds update volume to roughly one per interval
// regardless of chunk granularity.
func (t *Tracker) CompleteChunk(chunk *domain.TransformChunk) {
	t.mu.Lock()
	t.chunksDone++
	t.wordsDone += chunk.WordCount
	t.sinceNotify += chunk.WordCount
	t.durations = append(t.durations, chunk.Duration)

	notify := t.sinceNotify >= t.interval
	if notify {
		t.sinceNotify = 0
	}
	update := t.snapshotLocked()
	t.mu.Unlock()

	if notify {
		t.publish(update)
	}
}

// FailChunk always publishes: a failure is about to become the job's
// terminal state and must not be throttled away.
func (t *Tracker) FailChunk(chunk *domain.TransformChunk, reason string) {
	t.mu.Lock()
	t.status = domain.JobStatusFailed
	t.phase = "chunk " + strconv.Itoa(chunk.Index) + " failed: " + reason
	update := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(update)
}

// UpdateStatus records a phase transition and publishes it unthrottled;
// status changes are rare and callers want to see all of them.
func (t *Tracker) UpdateStatus(status domain.JobStatus, phase string) {
	t.mu.Lock()
	t.status = status
	if phase != "" {
		t.phase = phase
	}
	update := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(update)
}

func (t *Tracker) Snapshot() domain.ProgressUpdate {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Close ends the update stream. Safe to call once, after the job reached a
// terminal state.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.updates)
	}
}

func (t *Tracker) snapshotLocked() domain.ProgressUpdate {
	update := domain.ProgressUpdate{
		JobID:       t.jobID,
		Status:      t.status,
		ChunksDone:  t.chunksDone,
		TotalChunks: t.totalChunks,
		WordsDone:   t.wordsDone,
		TotalWords:  t.totalWords,
		Phase:       t.phase,
		Timestamp:   time.Now().UTC(),
	}
	if t.totalWords > 0 {
		update.Progress = float64(t.wordsDone) * 100 / float64(t.totalWords)
		if update.Progress > 100 {
			update.Progress = 100
		}
	}
	if eta := t.estimateLocked(); eta >= 0 {
		value := eta
		update.ETA = &value
	}
	return update
}

// estimateLocked returns -1 until at least one chunk has completed.
func (t *Tracker) estimateLocked() time.Duration {
	if len(t.durations) == 0 {
		return -1
	}
	var total time.Duration
	for _, duration := range t.durations {
		total += duration
	}
	mean := total / time.Duration(len(t.durations))
	remaining := t.totalChunks - t.chunksDone
	if remaining < 0 {
		remaining = 0
	}
	return mean * time.Duration(remaining)
}

func (t *Tracker) publish(update domain.ProgressUpdate) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return
	}
	select {
	case t.updates <- update:
	default:
	}
}
