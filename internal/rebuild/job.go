// Package rebuild orchestrates multi-source reindex jobs: creating them,
// running them as background tasks, tracking progress and cancelling
// them cooperatively at source boundaries.
package rebuild

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
)

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrUnknownSource    = errors.New("unknown source type")
	ErrNoSources        = errors.New("no source types requested")
	ErrOrchestratorDown = errors.New("orchestrator is shut down")
)

// JobState is a rebuild job's lifecycle state. Terminal states are
// final; re-querying them is idempotent.
type JobState string

const (
	JobPending   JobState = "PENDING"
	JobRunning   JobState = "RUNNING"
	JobCompleted JobState = "COMPLETED"
	JobFailed    JobState = "FAILED"
	JobCancelled JobState = "CANCELLED"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Job is one orchestrated rebuild. It is owned and mutated exclusively
// by the orchestrator until it reaches a terminal state.
type Job struct {
	ID          string
	TenantID    string
	Sources     []chunking.SourceType
	FullRebuild bool
	State       JobState

	ProgressCurrent int
	ProgressTotal   int

	DocumentsProcessed int
	DocumentsFailed    int
	ChunksIndexed      int
	ChunksSkipped      int
	SourcesFailed      int
	LastError          string

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// Clone returns a deep copy safe to hand to callers.
func (j *Job) Clone() *Job {
	cp := *j
	cp.Sources = append([]chunking.SourceType(nil), j.Sources...)
	return &cp
}

// Percentage returns progress as 0-100. An empty job reads as 0.
func (j *Job) Percentage() float64 {
	if j.ProgressTotal == 0 {
		return 0
	}
	return float64(j.ProgressCurrent) / float64(j.ProgressTotal) * 100
}

// JobStore persists rebuild jobs. Implementations must tolerate
// concurrent access from the orchestrator's background tasks.
type JobStore interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	UpdateJob(ctx context.Context, job *Job) error
	ListJobs(ctx context.Context, tenantID string) ([]*Job, error)
}

// MemoryJobStore is an in-process JobStore.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

var _ JobStore = (*MemoryJobStore)(nil)

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*Job)}
}

func (m *MemoryJobStore) CreateJob(ctx context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *MemoryJobStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

func (m *MemoryJobStore) UpdateJob(ctx context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return ErrJobNotFound
	}
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *MemoryJobStore) ListJobs(ctx context.Context, tenantID string) ([]*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Job
	for _, job := range m.jobs {
		if job.TenantID == tenantID {
			out = append(out, job.Clone())
		}
	}
	return out, nil
}
