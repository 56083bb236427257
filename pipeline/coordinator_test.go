package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	caterrs "github.com/streamplace/vod-api/errors"
	"github.com/streamplace/vod-api/transcode"
	"github.com/streamplace/vod-api/video"
)

type stubProber struct {
	err   error
	calls atomic.Int32
}

func (p *stubProber) ProbeFile(requestID, path string, ffProbeOptions ...string) (video.SourceInfo, error) {
	p.calls.Add(1)
	if p.err != nil {
		return video.SourceInfo{}, p.err
	}
	return video.SourceInfo{Duration: 60, Codec: "h264", Width: 1920, Height: 1080, FPS: 30}, nil
}

type stubEncoder struct {
	encode func(quality video.Quality, progress transcode.ProgressSink) error
	calls  atomic.Int32
}

func (e *stubEncoder) EncodeRendition(ctx context.Context, requestID string, source video.SourceMedia, outputDir string, quality video.Quality, progress transcode.ProgressSink) (video.Rendition, error) {
	e.calls.Add(1)
	if e.encode != nil {
		if err := e.encode(quality, progress); err != nil {
			return video.Rendition{}, err
		}
	}
	return video.Rendition{
		Name:             quality.Name,
		Width:            quality.Width,
		Height:           quality.Height,
		VideoBitrateKbps: quality.VideoBitrateKbps,
		AudioBitrateKbps: quality.AudioBitrateKbps,
		Codec:            "h264",
		ManifestPath:     filepath.Join(outputDir, quality.Name, "playlist.m3u8"),
	}, nil
}

type stubStore struct {
	mu    sync.Mutex
	jobs  map[string]Job
	saved []Job
}

func newStubStore() *stubStore {
	return &stubStore{jobs: map[string]Job{}}
}

func (s *stubStore) SaveJob(ctx context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.VideoID] = job
	s.saved = append(s.saved, job)
	return nil
}

func (s *stubStore) LoadJob(ctx context.Context, videoID string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[videoID]
	if !ok {
		return Job{}, caterrs.ObjectNotFoundError
	}
	return job, nil
}

func (s *stubStore) savedProgress() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.saved))
	for i, j := range s.saved {
		out[i] = j.Progress
	}
	return out
}

func testSource() video.SourceMedia {
	return video.SourceMedia{Path: "/tmp/source.mp4", SizeBytes: 1 << 20, MimeType: "video/mp4"}
}

func newTestCoordinator(t *testing.T, encoder transcode.Encoder, store JobStore) *Coordinator {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewCoordinator(ctx, &stubProber{}, encoder, store, t.TempDir(), 2, nil)
}

func waitForState(t *testing.T, c *Coordinator, videoID string, state JobState) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		var err error
		job, err = c.Status(context.Background(), videoID)
		return err == nil && job.State == state
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestStartTranscodeDoesNotBlock(t *testing.T) {
	barrier := make(chan struct{})
	encoder := &stubEncoder{encode: func(q video.Quality, progress transcode.ProgressSink) error {
		<-barrier
		progress(1)
		return nil
	}}
	store := newStubStore()
	coord := newTestCoordinator(t, encoder, store)

	job, err := coord.StartTranscode(context.Background(), "req1", "vid1", testSource(), []string{"720p"})
	require.NoError(t, err)
	require.Equal(t, StateQueued, job.State)
	require.Zero(t, job.Progress)

	waitForState(t, coord, "vid1", StateRunning)
	close(barrier)

	final := waitForState(t, coord, "vid1", StateSucceeded)
	require.Equal(t, 100, final.Progress)
	require.Len(t, final.Renditions, 1)
	require.FileExists(t, final.MasterManifest)
}

func TestProgressIsMonotonicAndEndsAtHundred(t *testing.T) {
	encoder := &stubEncoder{encode: func(q video.Quality, progress transcode.ProgressSink) error {
		for _, f := range []float64{0.2, 0.5, 0.9, 1} {
			progress(f)
		}
		return nil
	}}
	store := newStubStore()
	coord := newTestCoordinator(t, encoder, store)

	_, err := coord.StartTranscode(context.Background(), "req1", "vid1", testSource(), []string{"720p", "480p", "360p"})
	require.NoError(t, err)
	waitForState(t, coord, "vid1", StateSucceeded)

	progress := store.savedProgress()
	last := 0
	for _, p := range progress {
		require.GreaterOrEqual(t, p, last, "progress went backwards: %v", progress)
		last = p
	}
	require.Equal(t, 100, last)
}

func TestDuplicateStartReturnsJobConflict(t *testing.T) {
	barrier := make(chan struct{})
	encoder := &stubEncoder{encode: func(q video.Quality, progress transcode.ProgressSink) error {
		progress(0.5)
		<-barrier
		return nil
	}}
	store := newStubStore()
	coord := newTestCoordinator(t, encoder, store)

	_, err := coord.StartTranscode(context.Background(), "req1", "vid1", testSource(), []string{"720p"})
	require.NoError(t, err)
	running := waitForState(t, coord, "vid1", StateRunning)

	_, err = coord.StartTranscode(context.Background(), "req2", "vid1", testSource(), []string{"480p"})
	require.ErrorIs(t, err, caterrs.JobConflictError)

	// The original job is unaffected by the rejected start.
	after, err := coord.Status(context.Background(), "vid1")
	require.NoError(t, err)
	require.Equal(t, StateRunning, after.State)
	require.GreaterOrEqual(t, after.Progress, running.Progress)
	require.Equal(t, []string{"720p"}, after.Qualities)

	close(barrier)
	waitForState(t, coord, "vid1", StateSucceeded)

	// A terminal job does not block a new start.
	_, err = coord.StartTranscode(context.Background(), "req3", "vid1", testSource(), []string{"480p"})
	require.NoError(t, err)
}

func TestConflictingStartDoesNoProbeWork(t *testing.T) {
	barrier := make(chan struct{})
	encoder := &stubEncoder{encode: func(q video.Quality, progress transcode.ProgressSink) error {
		<-barrier
		return nil
	}}
	prober := &stubProber{}
	store := newStubStore()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	coord := NewCoordinator(ctx, prober, encoder, store, t.TempDir(), 1, nil)

	_, err := coord.StartTranscode(context.Background(), "req1", "vid1", testSource(), []string{"720p"})
	require.NoError(t, err)
	waitForState(t, coord, "vid1", StateRunning)

	_, err = coord.StartTranscode(context.Background(), "req2", "vid1", testSource(), []string{"720p"})
	require.ErrorIs(t, err, caterrs.JobConflictError)
	// The rejected start never reached the prober.
	require.Equal(t, int32(1), prober.calls.Load())

	close(barrier)
	waitForState(t, coord, "vid1", StateSucceeded)
}

func TestDefaultQualitySetIsThreadedAtConstruction(t *testing.T) {
	encoder := &stubEncoder{}
	store := newStubStore()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	coord := NewCoordinator(ctx, &stubProber{}, encoder, store, t.TempDir(), 1, []string{"480p"})

	job, err := coord.StartTranscode(context.Background(), "req1", "vid1", testSource(), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"480p"}, job.Qualities)

	final := waitForState(t, coord, "vid1", StateSucceeded)
	require.Len(t, final.Renditions, 1)
	require.Equal(t, "480p", final.Renditions[0].Name)
}

func TestProbeFailureAbortsJobCreation(t *testing.T) {
	encoder := &stubEncoder{}
	store := newStubStore()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	coord := NewCoordinator(ctx, &stubProber{err: video.NewProbeError(errors.New("no video stream found"))}, encoder, store, t.TempDir(), 1, nil)

	_, err := coord.StartTranscode(context.Background(), "req1", "vid1", testSource(), nil)
	require.True(t, video.IsProbeError(err))

	status, err := coord.Status(context.Background(), "vid1")
	require.NoError(t, err)
	require.Equal(t, StateNotStarted, status.State)
	require.Zero(t, encoder.calls.Load())
}

func TestEncodeFailureMarksWholeJobFailed(t *testing.T) {
	encoder := &stubEncoder{encode: func(q video.Quality, progress transcode.ProgressSink) error {
		if q.Name == "480p" {
			return fmt.Errorf("ffmpeg exit status 1")
		}
		return nil
	}}
	store := newStubStore()
	coord := newTestCoordinator(t, encoder, store)

	_, err := coord.StartTranscode(context.Background(), "req1", "vid1", testSource(), []string{"720p", "480p", "360p"})
	require.NoError(t, err)

	final := waitForState(t, coord, "vid1", StateFailed)
	require.Len(t, final.Renditions, 1)
	require.Empty(t, final.MasterManifest)
	// 360p was never attempted after the 480p failure.
	require.Equal(t, int32(2), encoder.calls.Load())

	// No master manifest may exist on disk after a partial failure.
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(final.Renditions[0].ManifestPath), "..", "master.m3u8"))
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestUnknownQualityIsSkipped(t *testing.T) {
	encoder := &stubEncoder{}
	store := newStubStore()
	coord := newTestCoordinator(t, encoder, store)

	_, err := coord.StartTranscode(context.Background(), "req1", "vid1", testSource(), []string{"720p", "999p", "360p"})
	require.NoError(t, err)

	final := waitForState(t, coord, "vid1", StateSucceeded)
	require.Len(t, final.Renditions, 2)
	require.Equal(t, "720p", final.Renditions[0].Name)
	require.Equal(t, "360p", final.Renditions[1].Name)
}

func TestAllQualitiesUnknownFailsJob(t *testing.T) {
	encoder := &stubEncoder{}
	store := newStubStore()
	coord := newTestCoordinator(t, encoder, store)

	_, err := coord.StartTranscode(context.Background(), "req1", "vid1", testSource(), []string{"999p"})
	require.NoError(t, err)

	final := waitForState(t, coord, "vid1", StateFailed)
	require.Zero(t, encoder.calls.Load())
	require.Contains(t, final.Error, "encoding ladder")
}

func TestTerminalSnapshotOutlivesRegistry(t *testing.T) {
	encoder := &stubEncoder{}
	store := newStubStore()
	coord := newTestCoordinator(t, encoder, store)

	_, err := coord.StartTranscode(context.Background(), "req1", "vid1", testSource(), []string{"360p"})
	require.NoError(t, err)
	waitForState(t, coord, "vid1", StateSucceeded)
	require.Zero(t, coord.InFlightJobs())

	// Status keeps serving the final snapshot from the store indefinitely.
	for i := 0; i < 3; i++ {
		job, err := coord.Status(context.Background(), "vid1")
		require.NoError(t, err)
		require.Equal(t, StateSucceeded, job.State)
		require.Equal(t, 100, job.Progress)
	}
}

func TestMasterManifestMatchesRenditionOrder(t *testing.T) {
	encoder := &stubEncoder{}
	store := newStubStore()
	coord := newTestCoordinator(t, encoder, store)

	_, err := coord.StartTranscode(context.Background(), "req1", "vid1", testSource(), []string{"360p", "720p"})
	require.NoError(t, err)
	final := waitForState(t, coord, "vid1", StateSucceeded)

	contents, err := os.ReadFile(final.MasterManifest)
	require.NoError(t, err)
	require.Equal(t, video.MasterManifest(final.Renditions), string(contents))
	require.Equal(t, "360p", final.Renditions[0].Name)
}

func TestAggregateProgress(t *testing.T) {
	require.Equal(t, 0, aggregateProgress(0, 3, 0))
	require.Equal(t, 17, aggregateProgress(0, 3, 0.5))
	require.Equal(t, 33, aggregateProgress(1, 3, 0))
	require.Equal(t, 50, aggregateProgress(1, 3, 0.5))
	require.Equal(t, 100, aggregateProgress(2, 3, 1))
	require.Equal(t, 100, aggregateProgress(0, 1, 1))
	require.Equal(t, 0, aggregateProgress(0, 0, 1))
	// Fractions outside [0,1] are clamped.
	require.Equal(t, 33, aggregateProgress(0, 3, 1.7))
	require.Equal(t, 0, aggregateProgress(0, 3, -0.2))
}
