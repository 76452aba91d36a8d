package job

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/texlate/texlate/engine/core"
	"github.com/texlate/texlate/pkg/logger"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrJobDuplicate = errors.New("job already registered")

	ErrInvalidDocumentID = errors.New("invalid document id")
)

type State string

const (
	StatePending   State = "pending"
	StateSlotWait  State = "slot_wait"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateReleased  State = "released"
)

// Job is a snapshot of one job's bookkeeping.
type Job struct {
	ID         string    `json:"job_id"`
	DocumentID string    `json:"document_id"`
	State      State     `json:"state"`
	Outcome    State     `json:"outcome,omitempty"`
	Admitted   bool      `json:"admitted"`
	Artifact   string    `json:"artifact,omitempty"`
	ErrorKind  core.Kind `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SlotReleaser returns the slot a job holds.
type SlotReleaser interface {
	Release(ctx context.Context, jobID string) (bool, error)
}

type entry struct {
	job     Job
	channel *LogChannel
}

// Registry tracks live jobs and their log channels. Released jobs move to a
// bounded history so their outcome stays queryable for a while.
type Registry struct {
	mu      sync.Mutex
	jobs    map[string]*entry
	slots   SlotReleaser
	history *lru.Cache[string, Job]
	now     func() time.Time
}

const defaultHistorySize = 256

func NewRegistry(slots SlotReleaser) *Registry {
	history, _ := lru.New[string, Job](defaultHistorySize)
	return &Registry{
		jobs:    make(map[string]*entry),
		slots:   slots,
		history: history,
		now:     time.Now,
	}
}

// Register creates a live job with a fresh log channel.
func (r *Registry) Register(jobID, documentID string) (*LogChannel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[jobID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrJobDuplicate, jobID)
	}
	now := r.now()
	ch := NewLogChannel()
	r.jobs[jobID] = &entry{
		job: Job{
			ID:         jobID,
			DocumentID: documentID,
			State:      StatePending,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		channel: ch,
	}
	return ch, nil
}

// Lookup returns the log channel and document of a live job.
func (r *Registry) Lookup(jobID string) (*LogChannel, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[jobID]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return e.channel, e.job.DocumentID, nil
}

// Status returns a live job, or the final record of a released one.
func (r *Registry) Status(jobID string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.jobs[jobID]; ok {
		return e.job, nil
	}
	if j, ok := r.history.Get(jobID); ok {
		return j, nil
	}
	return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
}

func (r *Registry) update(jobID string, fn func(*Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	fn(&e.job)
	e.job.UpdatedAt = r.now()
	return nil
}

func (r *Registry) SetState(jobID string, state State) error {
	return r.update(jobID, func(j *Job) { j.State = state })
}

// MarkAdmitted records that the job holds a slot.
func (r *Registry) MarkAdmitted(jobID string) error {
	return r.update(jobID, func(j *Job) { j.Admitted = true })
}

// Finish records the outcome of a job. A nil err means success.
func (r *Registry) Finish(jobID, artifact string, err error) error {
	return r.update(jobID, func(j *Job) {
		if err != nil {
			j.State = StateFailed
			j.ErrorKind = core.KindOf(err)
			j.Error = core.Message(err)
		} else {
			j.State = StateSucceeded
			j.Artifact = artifact
		}
		j.Outcome = j.State
	})
}

// Release closes the job's log channel, removes it from the live set and
// hands it to the slot releaser exactly once. Releasing an unknown or already
// released job is a no-op.
func (r *Registry) Release(ctx context.Context, jobID string) error {
	r.mu.Lock()
	e, ok := r.jobs[jobID]
	if ok {
		delete(r.jobs, jobID)
		e.job.State = StateReleased
		e.job.UpdatedAt = r.now()
		r.history.Add(jobID, e.job)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	// nothing the slot manager logs belongs to the job's output
	e.channel.Close()
	if r.slots == nil {
		return nil
	}
	// the releaser ignores jobs that never got a slot, so this runs for every
	// job, admitted or not
	if _, err := r.slots.Release(ctx, jobID); err != nil {
		logger.FromContext(ctx).Error("failed to release slot", "job_id", jobID, "error", err)
		return fmt.Errorf("releasing slot of %s: %w", jobID, err)
	}
	return nil
}

// Snapshot lists live jobs, oldest first.
func (r *Registry) Snapshot() []Job {
	r.mu.Lock()
	jobs := make([]Job, 0, len(r.jobs))
	for _, e := range r.jobs {
		jobs = append(jobs, e.job)
	}
	r.mu.Unlock()
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs
}

// Len is the number of live jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
