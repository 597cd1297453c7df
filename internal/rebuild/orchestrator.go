package rebuild

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
	"github.com/fyrsmithlabs/indexd/internal/indexer"
	"github.com/fyrsmithlabs/indexd/internal/vectorstore"
)

// Progress is the caller-facing progress block of a status snapshot.
type Progress struct {
	Current    int
	Total      int
	Percentage float64
}

// Status is a point-in-time snapshot of a job.
type Status struct {
	JobID              string
	TenantID           string
	State              JobState
	Progress           Progress
	DocumentsProcessed int
	DocumentsFailed    int
	ChunksIndexed      int
	ChunksSkipped      int
	LastError          string
	CreatedAt          time.Time
	StartedAt          time.Time
	CompletedAt        time.Time
}

// Orchestrator runs rebuild jobs as independent background tasks. Each
// job gets its own cancellable context; in-flight handles live in an
// explicit registry on the orchestrator, never in package state.
type Orchestrator struct {
	registry *indexer.Registry
	jobs     JobStore
	logger   *zap.Logger
	tracer   trace.Tracer

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// NewOrchestrator wires the indexer registry and job store.
func NewOrchestrator(registry *indexer.Registry, jobs JobStore, logger *zap.Logger) (*Orchestrator, error) {
	if registry == nil {
		return nil, fmt.Errorf("indexer registry is required")
	}
	if jobs == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry: registry,
		jobs:     jobs,
		logger:   logger,
		tracer:   otel.Tracer("indexd.rebuild"),
		cancels:  make(map[string]context.CancelFunc),
	}, nil
}

// StartRebuild validates the request, persists a PENDING job and
// launches it in the background. Validation failures happen before any
// job row exists. Returns the job ID immediately.
func (o *Orchestrator) StartRebuild(ctx context.Context, tenantID string, sources []chunking.SourceType, fullRebuild bool) (string, error) {
	if err := vectorstore.ValidateTenantID(tenantID); err != nil {
		return "", err
	}
	if len(sources) == 0 {
		return "", ErrNoSources
	}
	for _, st := range sources {
		if !st.Valid() {
			return "", fmt.Errorf("%w: %q", ErrUnknownSource, st)
		}
		if !o.registry.Has(st) {
			return "", fmt.Errorf("%w: no indexer registered for %q", ErrUnknownSource, st)
		}
	}

	job := &Job{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		Sources:       append([]chunking.SourceType(nil), sources...),
		FullRebuild:   fullRebuild,
		State:         JobPending,
		ProgressTotal: len(sources),
		CreatedAt:     time.Now().UTC(),
	}
	if err := o.jobs.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("persisting job: %w", err)
	}

	// The job outlives the request: it runs on its own context, tied to
	// the orchestrator's lifetime rather than the caller's.
	jobCtx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		cancel()
		return "", ErrOrchestratorDown
	}
	o.cancels[job.ID] = cancel
	o.wg.Add(1)
	o.mu.Unlock()

	go o.run(jobCtx, job)
	return job.ID, nil
}

// GetStatus returns a snapshot of a job's state and counters.
func (o *Orchestrator) GetStatus(ctx context.Context, jobID string) (Status, error) {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return Status{}, err
	}
	return Status{
		JobID:    job.ID,
		TenantID: job.TenantID,
		State:    job.State,
		Progress: Progress{
			Current:    job.ProgressCurrent,
			Total:      job.ProgressTotal,
			Percentage: job.Percentage(),
		},
		DocumentsProcessed: job.DocumentsProcessed,
		DocumentsFailed:    job.DocumentsFailed,
		ChunksIndexed:      job.ChunksIndexed,
		ChunksSkipped:      job.ChunksSkipped,
		LastError:          job.LastError,
		CreatedAt:          job.CreatedAt,
		StartedAt:          job.StartedAt,
		CompletedAt:        job.CompletedAt,
	}, nil
}

// CancelJob requests cooperative cancellation of a non-terminal job.
// Returns false if the job is already terminal. Cancellation takes
// effect at the next source boundary; the current source finishes.
func (o *Orchestrator) CancelJob(ctx context.Context, jobID string) (bool, error) {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job.State.Terminal() {
		return false, nil
	}

	o.mu.Lock()
	cancel, ok := o.cancels[jobID]
	o.mu.Unlock()
	if ok {
		cancel()
		return true, nil
	}

	// PENDING job whose goroutine never started (e.g. created by a
	// previous process). Mark it cancelled directly.
	job.State = JobCancelled
	job.CompletedAt = time.Now().UTC()
	if err := o.jobs.UpdateJob(ctx, job); err != nil {
		return false, err
	}
	return true, nil
}

// Shutdown cancels every in-flight job and waits for their goroutines
// to drain.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	o.closed = true
	for _, cancel := range o.cancels {
		cancel()
	}
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *Orchestrator) run(ctx context.Context, job *Job) {
	defer o.wg.Done()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, job.ID)
		o.mu.Unlock()
	}()

	ctx, span := o.tracer.Start(ctx, "rebuild.run_job",
		trace.WithAttributes(
			attribute.String("job_id", job.ID),
			attribute.String("tenant", vectorstore.ScopeKey(job.TenantID)),
			attribute.Bool("full_rebuild", job.FullRebuild),
			attribute.Int("sources", len(job.Sources))))
	defer span.End()

	job.State = JobRunning
	job.StartedAt = time.Now().UTC()
	if err := o.persist(job); err != nil {
		o.fail(span, job, err)
		return
	}

	for _, st := range job.Sources {
		// Cancellation is checked only here: results of sources that
		// already completed are kept.
		if ctx.Err() != nil {
			o.finish(span, job, JobCancelled)
			return
		}

		idx, err := o.registry.Lookup(st)
		if err != nil {
			o.fail(span, job, err)
			return
		}

		result, err := o.runSource(ctx, idx, job)
		if err != nil {
			if ctx.Err() != nil {
				o.finish(span, job, JobCancelled)
				return
			}
			// One source failing does not abort the rest.
			job.SourcesFailed++
			job.LastError = fmt.Sprintf("%s: %v", st, err)
			o.logger.Error("source indexing failed",
				zap.String("job_id", job.ID),
				zap.String("source_type", string(st)),
				zap.Error(err))
		} else {
			job.DocumentsProcessed += result.DocumentsProcessed
			job.DocumentsFailed += result.DocumentsFailed
			job.ChunksIndexed += result.ChunksIndexed
			job.ChunksSkipped += result.ChunksSkipped
		}

		job.ProgressCurrent++
		if err := o.persist(job); err != nil {
			o.fail(span, job, err)
			return
		}
	}

	o.finish(span, job, JobCompleted)
}

func (o *Orchestrator) runSource(ctx context.Context, idx indexer.SourceIndexer, job *Job) (indexer.IndexingResult, error) {
	if job.FullRebuild {
		return idx.IndexFull(ctx, job.TenantID, true)
	}
	return idx.IndexIncremental(ctx, job.TenantID)
}

func (o *Orchestrator) persist(job *Job) error {
	// Persistence uses its own context: a cancelled job must still be
	// able to record its final state.
	return o.jobs.UpdateJob(context.Background(), job)
}

func (o *Orchestrator) finish(span trace.Span, job *Job, state JobState) {
	job.State = state
	job.CompletedAt = time.Now().UTC()
	if err := o.persist(job); err != nil {
		o.logger.Error("persisting terminal job state failed",
			zap.String("job_id", job.ID), zap.Error(err))
	}
	span.SetAttributes(
		attribute.String("state", string(state)),
		attribute.Int("documents.processed", job.DocumentsProcessed),
		attribute.Int("documents.failed", job.DocumentsFailed),
		attribute.Int("chunks.indexed", job.ChunksIndexed))
	if state != JobFailed {
		span.SetStatus(codes.Ok, "")
	}
	o.logger.Info("rebuild job finished",
		zap.String("job_id", job.ID),
		zap.String("state", string(state)),
		zap.Int("documents_processed", job.DocumentsProcessed),
		zap.Int("documents_failed", job.DocumentsFailed),
		zap.Int("chunks_indexed", job.ChunksIndexed))
}

func (o *Orchestrator) fail(span trace.Span, job *Job, err error) {
	job.LastError = err.Error()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	o.finish(span, job, JobFailed)
}
