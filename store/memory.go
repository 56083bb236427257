package store

import (
	"context"
	"sync"

	caterrs "github.com/streamplace/vod-api/errors"
	"github.com/streamplace/vod-api/pipeline"
	"github.com/streamplace/vod-api/video"
)

// Memory is an in-process store for development and tests. Semantics match
// the Postgres implementation.
type Memory struct {
	mu     sync.Mutex
	jobs   map[string]pipeline.Job
	videos map[string]VideoRecord
}

func NewMemory() *Memory {
	return &Memory{
		jobs:   map[string]pipeline.Job{},
		videos: map[string]VideoRecord{},
	}
}

// SeedVideo registers a video record, standing in for the upload intake.
func (m *Memory) SeedVideo(rec VideoRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videos[rec.ID] = rec
}

func (m *Memory) SaveJob(ctx context.Context, job pipeline.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.Qualities = append([]string(nil), job.Qualities...)
	job.Renditions = append([]video.Rendition(nil), job.Renditions...)
	m.jobs[job.VideoID] = job
	return nil
}

func (m *Memory) LoadJob(ctx context.Context, videoID string) (pipeline.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[videoID]
	if !ok {
		return pipeline.Job{}, caterrs.ObjectNotFoundError
	}
	return job, nil
}

func (m *Memory) LoadVideo(ctx context.Context, videoID string) (VideoRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.videos[videoID]
	if !ok {
		return VideoRecord{}, caterrs.ObjectNotFoundError
	}
	return rec, nil
}

func (m *Memory) IncrementViews(ctx context.Context, videoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.videos[videoID]
	if !ok {
		return caterrs.ObjectNotFoundError
	}
	rec.Views++
	m.videos[videoID] = rec
	return nil
}
