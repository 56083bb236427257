package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/streamplace/vod-api/cache"
	caterrs "github.com/streamplace/vod-api/errors"
	"github.com/streamplace/vod-api/log"
	"github.com/streamplace/vod-api/metrics"
	"github.com/streamplace/vod-api/transcode"
	"github.com/streamplace/vod-api/video"
)

const queueCapacity = 256

// Coordinator owns the transcode job state machine. It should be called
// directly from the API handlers and never blocks on encoding: StartTranscode
// enqueues the job onto a fixed-size worker pool and returns a queued
// snapshot, and callers poll Status to observe completion.
type Coordinator struct {
	prober           video.Prober
	encoder          transcode.Encoder
	store            JobStore
	outputRoot       string
	defaultQualities []string

	queue chan *jobRun
	jobs  *cache.Cache[*jobRun]
}

// NewCoordinator starts maxConcurrentJobs workers that live until ctx is
// cancelled. Qualities for a single job are always encoded sequentially;
// maxConcurrentJobs only bounds how many videos transcode at once.
// defaultQualities applies to start requests that don't name a quality set;
// empty selects the ladder default.
func NewCoordinator(ctx context.Context, prober video.Prober, encoder transcode.Encoder, store JobStore, outputRoot string, maxConcurrentJobs int, defaultQualities []string) *Coordinator {
	if maxConcurrentJobs <= 0 {
		maxConcurrentJobs = 1
	}
	if len(defaultQualities) == 0 {
		defaultQualities = video.DefaultQualityNames
	}
	c := &Coordinator{
		prober:           prober,
		encoder:          encoder,
		store:            store,
		outputRoot:       outputRoot,
		defaultQualities: defaultQualities,
		queue:            make(chan *jobRun, queueCapacity),
		jobs:             cache.New[*jobRun](),
	}
	for i := 0; i < maxConcurrentJobs; i++ {
		go c.worker(ctx)
	}
	return c
}

// StartTranscode probes the source and enqueues a transcode job for videoID.
// A probe failure aborts job creation before any encoder is invoked. Returns
// JobConflictError, with no state change, when a job for the same video is
// already queued or running.
func (c *Coordinator) StartTranscode(ctx context.Context, requestID, videoID string, source video.SourceMedia, qualities []string) (Job, error) {
	if len(qualities) == 0 {
		qualities = c.defaultQualities
	}

	// Cheap pre-check so a conflicting start does no probing work.
	// StoreIfAbsent below stays the authoritative gate for the race window.
	if _, ok := c.jobs.Get(videoID); ok {
		return Job{}, caterrs.JobConflictError
	}

	info, err := c.prober.ProbeFile(requestID, source.Path)
	if err != nil {
		return Job{}, err
	}
	source.Info = info

	run := &jobRun{
		job: Job{
			VideoID:   videoID,
			RequestID: requestID,
			Qualities: append([]string(nil), qualities...),
			State:     StateQueued,
		},
		source: source,
		outDir: filepath.Join(c.outputRoot, videoID),
	}
	if !c.jobs.StoreIfAbsent(videoID, run) {
		return Job{}, caterrs.JobConflictError
	}

	snap := run.snapshot()
	if err := c.store.SaveJob(ctx, snap); err != nil {
		c.jobs.Remove(videoID)
		return Job{}, fmt.Errorf("failed to persist job: %w", err)
	}

	select {
	case c.queue <- run:
	default:
		c.jobs.Remove(videoID)
		return Job{}, fmt.Errorf("transcode queue is full")
	}

	metrics.Metrics.TranscodeJobsStarted.Inc()
	metrics.Metrics.TranscodeJobsInFlight.Inc()
	log.AddContext(requestID, "video_id", videoID)
	log.Log(requestID, "transcode job queued", "qualities", strings.Join(qualities, ","))
	return snap, nil
}

// Status returns a read-only snapshot of the job for videoID. Callable at any
// time: before any job exists it yields StateNotStarted, and after a terminal
// state it keeps returning the final snapshot from the store.
func (c *Coordinator) Status(ctx context.Context, videoID string) (Job, error) {
	if run, ok := c.jobs.Get(videoID); ok {
		return run.snapshot(), nil
	}
	job, err := c.store.LoadJob(ctx, videoID)
	if errors.Is(err, caterrs.ObjectNotFoundError) {
		return Job{VideoID: videoID, State: StateNotStarted}, nil
	}
	if err != nil {
		return Job{}, err
	}
	return job, nil
}

// InFlightJobs reports how many jobs are currently queued or running.
func (c *Coordinator) InFlightJobs() int {
	return c.jobs.Len()
}

func (c *Coordinator) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case run := <-c.queue:
			c.runJob(ctx, run)
		}
	}
}

// runJob drives one job from Running to a terminal state. It is the only
// writer to the job while it runs; progress and rendition updates are
// persisted as they happen.
func (c *Coordinator) runJob(ctx context.Context, run *jobRun) {
	defer func() {
		if rec := recover(); rec != nil {
			log.LogNoRequestID("panic in transcode worker, recovering", "err", rec)
			c.finishJob(ctx, run, fmt.Errorf("panic in transcode worker: %v", rec))
		}
	}()

	snap := run.update(func(j *Job) {
		j.State = StateRunning
		j.StartedAt = time.Now()
		j.Progress = 0
	})
	c.persist(ctx, snap)
	requestID := snap.RequestID

	if err := os.MkdirAll(run.outDir, 0755); err != nil {
		c.finishJob(ctx, run, fmt.Errorf("failed to create output dir: %w", err))
		return
	}

	total := len(snap.Qualities)
	for i, name := range snap.Qualities {
		quality, ok := video.QualityByName(name)
		if !ok {
			// Configuration concern, not a failure.
			log.Log(requestID, "unknown quality label, skipping", "quality", name)
			continue
		}

		index := i
		sink := func(fraction float64) {
			c.persist(ctx, run.update(func(j *Job) {
				if pct := aggregateProgress(index, total, fraction); pct > j.Progress {
					j.Progress = pct
				}
			}))
		}

		rendition, err := c.encoder.EncodeRendition(ctx, requestID, run.source, run.outDir, quality, sink)
		if err != nil {
			// Fatal to the whole job; no further qualities are attempted and
			// no master manifest is produced.
			log.LogError(requestID, "rendition encode failed", err, "quality", name)
			c.finishJob(ctx, run, err)
			return
		}
		c.persist(ctx, run.update(func(j *Job) {
			j.Renditions = append(j.Renditions, rendition)
		}))
	}

	snap = run.snapshot()
	if len(snap.Renditions) == 0 {
		c.finishJob(ctx, run, errors.New("no requested quality is part of the encoding ladder"))
		return
	}

	manifestPath, err := video.WriteMasterManifest(run.outDir, snap.Renditions)
	if err != nil {
		c.finishJob(ctx, run, err)
		return
	}
	run.update(func(j *Job) {
		j.MasterManifest = manifestPath
	})
	c.finishJob(ctx, run, nil)
}

func (c *Coordinator) finishJob(ctx context.Context, run *jobRun, jobErr error) {
	now := time.Now()
	snap := run.update(func(j *Job) {
		j.CompletedAt = now
		if jobErr != nil {
			j.State = StateFailed
			j.Error = jobErr.Error()
		} else {
			j.State = StateSucceeded
			j.Progress = 100
		}
	})
	c.persist(ctx, snap)
	c.jobs.Remove(snap.VideoID)

	success := jobErr == nil
	metrics.Metrics.TranscodeJobsInFlight.Dec()
	metrics.Metrics.TranscodeJobResults.WithLabelValues(strconv.FormatBool(success)).Inc()
	if !snap.StartedAt.IsZero() {
		metrics.Metrics.TranscodeJobDuration.Observe(now.Sub(snap.StartedAt).Seconds())
	}
	log.Log(snap.RequestID, "transcode job finished", "success", success, "state", snap.State)
}

func (c *Coordinator) persist(ctx context.Context, job Job) {
	if err := c.store.SaveJob(ctx, job); err != nil {
		log.LogError(job.RequestID, "failed to persist job", err, "video_id", job.VideoID, "state", job.State)
	}
}

// aggregateProgress folds a per-quality completion fraction into the overall
// percent. Each earlier quality contributes a full 1/total share, so the
// value advances across the run instead of resetting per quality.
func aggregateProgress(index, total int, fraction float64) int {
	if total <= 0 {
		return 0
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	pct := int(math.Round(100 * (float64(index) + fraction) / float64(total)))
	if pct > 100 {
		pct = 100
	}
	return pct
}
