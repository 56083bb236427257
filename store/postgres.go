package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	caterrs "github.com/streamplace/vod-api/errors"
	"github.com/streamplace/vod-api/pipeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS videos (
	id TEXT PRIMARY KEY,
	original_filename TEXT NOT NULL DEFAULT '',
	source_path TEXT NOT NULL,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	mime_type TEXT NOT NULL DEFAULT '',
	allowed_origins JSONB NOT NULL DEFAULT '[]',
	views BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS transcode_jobs (
	video_id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL DEFAULT '',
	qualities JSONB NOT NULL DEFAULT '[]',
	state TEXT NOT NULL,
	progress INT NOT NULL DEFAULT 0,
	renditions JSONB NOT NULL DEFAULT '[]',
	master_manifest TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	error TEXT NOT NULL DEFAULT ''
);`

type Postgres struct {
	db *sql.DB
}

func NewPostgres(connectionString string) (*Postgres, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgresWithDB wraps an existing connection, used by tests.
func NewPostgresWithDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the tables if they don't exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) SaveJob(ctx context.Context, job pipeline.Job) error {
	qualities, err := json.Marshal(job.Qualities)
	if err != nil {
		return fmt.Errorf("failed to marshal qualities: %w", err)
	}
	renditions, err := json.Marshal(job.Renditions)
	if err != nil {
		return fmt.Errorf("failed to marshal renditions: %w", err)
	}

	var startedAt, completedAt sql.NullTime
	if !job.StartedAt.IsZero() {
		startedAt = sql.NullTime{Time: job.StartedAt, Valid: true}
	}
	if !job.CompletedAt.IsZero() {
		completedAt = sql.NullTime{Time: job.CompletedAt, Valid: true}
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO transcode_jobs (video_id, request_id, qualities, state, progress, renditions, master_manifest, started_at, completed_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (video_id) DO UPDATE SET
			request_id = EXCLUDED.request_id,
			qualities = EXCLUDED.qualities,
			state = EXCLUDED.state,
			progress = EXCLUDED.progress,
			renditions = EXCLUDED.renditions,
			master_manifest = EXCLUDED.master_manifest,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			error = EXCLUDED.error`,
		job.VideoID, job.RequestID, qualities, string(job.State), job.Progress, renditions, job.MasterManifest, startedAt, completedAt, job.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (p *Postgres) LoadJob(ctx context.Context, videoID string) (pipeline.Job, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT video_id, request_id, qualities, state, progress, renditions, master_manifest, started_at, completed_at, error
		FROM transcode_jobs WHERE video_id = $1`, videoID)

	var (
		job                    pipeline.Job
		state                  string
		qualities, renditions  []byte
		startedAt, completedAt sql.NullTime
	)
	err := row.Scan(&job.VideoID, &job.RequestID, &qualities, &state, &job.Progress, &renditions, &job.MasterManifest, &startedAt, &completedAt, &job.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Job{}, caterrs.ObjectNotFoundError
	}
	if err != nil {
		return pipeline.Job{}, fmt.Errorf("failed to load job: %w", err)
	}

	job.State = pipeline.JobState(state)
	if err := json.Unmarshal(qualities, &job.Qualities); err != nil {
		return pipeline.Job{}, fmt.Errorf("failed to unmarshal qualities: %w", err)
	}
	if err := json.Unmarshal(renditions, &job.Renditions); err != nil {
		return pipeline.Job{}, fmt.Errorf("failed to unmarshal renditions: %w", err)
	}
	if startedAt.Valid {
		job.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = completedAt.Time
	}
	return job, nil
}

func (p *Postgres) LoadVideo(ctx context.Context, videoID string) (VideoRecord, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, original_filename, source_path, size_bytes, mime_type, allowed_origins, views
		FROM videos WHERE id = $1`, videoID)

	var (
		rec     VideoRecord
		origins []byte
	)
	err := row.Scan(&rec.ID, &rec.OriginalFilename, &rec.SourcePath, &rec.SizeBytes, &rec.MimeType, &origins, &rec.Views)
	if errors.Is(err, sql.ErrNoRows) {
		return VideoRecord{}, caterrs.ObjectNotFoundError
	}
	if err != nil {
		return VideoRecord{}, fmt.Errorf("failed to load video: %w", err)
	}
	if err := json.Unmarshal(origins, &rec.AllowedOrigins); err != nil {
		return VideoRecord{}, fmt.Errorf("failed to unmarshal allowed origins: %w", err)
	}
	return rec, nil
}

func (p *Postgres) IncrementViews(ctx context.Context, videoID string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE videos SET views = views + 1 WHERE id = $1`, videoID)
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check increment result: %w", err)
	}
	if affected == 0 {
		return caterrs.ObjectNotFoundError
	}
	return nil
}
