package domain

import (
	"encoding/json"
	"time"
)

// JobRecord is the persisted trace of a transform job: who submitted it, how
// it ended, and the marshaled TransformResult once the job completes.
type JobRecord struct {
	ID           string
	UserID       string
	ProjectID    string
	Strategy     StrategyName
	Level        int
	Status       JobStatus
	Result       json.RawMessage
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone returns an independent copy. Callers holding a record across
// goroutine boundaries must clone it; finalization mutates the original.
func (j *JobRecord) Clone() *JobRecord {
	if j == nil {
		return nil
	}
	clone := *j
	clone.Result = append(json.RawMessage(nil), j.Result...)
	return &clone
}
