package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/streamplace/vod-api/video"
)

// JobState is the closed set of states a transcode job moves through.
// Succeeded and Failed are terminal; the only way out of them is creating a
// brand-new job.
type JobState string

const (
	// StateNotStarted is the synthetic state reported for a video that has
	// never had a transcode job.
	StateNotStarted JobState = "not_started"
	StateQueued     JobState = "queued"
	StateRunning    JobState = "running"
	StateSucceeded  JobState = "succeeded"
	StateFailed     JobState = "failed"
)

func (s JobState) IsValid() bool {
	switch s {
	case StateNotStarted, StateQueued, StateRunning, StateSucceeded, StateFailed:
		return true
	default:
		return false
	}
}

func (s JobState) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Job is a snapshot of one transcode job. The coordinator's worker goroutine
// is the only writer while a job is live; everyone else reads copies.
type Job struct {
	VideoID        string
	RequestID      string
	Qualities      []string
	State          JobState
	Progress       int
	Renditions     []video.Rendition
	MasterManifest string
	StartedAt      time.Time
	CompletedAt    time.Time
	Error          string
}

// JobStore is the durable-store collaborator contract. Each call is assumed
// atomic on its own; there is no transactional guarantee across calls.
type JobStore interface {
	SaveJob(ctx context.Context, job Job) error
	// LoadJob returns errors.ObjectNotFoundError when no job exists for the
	// video.
	LoadJob(ctx context.Context, videoID string) (Job, error)
}

// jobRun is the live, mutable record of an in-flight job. The mutex guards
// against a status read racing the worker's writes; no other goroutine ever
// mutates the job.
type jobRun struct {
	mu     sync.Mutex
	job    Job
	source video.SourceMedia
	outDir string
}

func (r *jobRun) snapshot() Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := r.job
	job.Qualities = append([]string(nil), r.job.Qualities...)
	job.Renditions = append([]video.Rendition(nil), r.job.Renditions...)
	return job
}

func (r *jobRun) update(mutate func(*Job)) Job {
	r.mu.Lock()
	mutate(&r.job)
	r.mu.Unlock()
	return r.snapshot()
}
