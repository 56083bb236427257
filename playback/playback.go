// Package playback gates access to transcoded HLS output. Every manifest
// request must present a valid capability token; segments are served as-is
// since their names are only discoverable through a gated manifest.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/streamplace/vod-api/config"
	caterrs "github.com/streamplace/vod-api/errors"
	"github.com/streamplace/vod-api/log"
	"github.com/streamplace/vod-api/metrics"
	"github.com/streamplace/vod-api/pipeline"
	"github.com/streamplace/vod-api/token"
)

// KeyParam is the query parameter carrying the capability token on manifest
// and variant URLs.
const KeyParam = "token"

type Request struct {
	RequestID string
	VideoID   string
	File      string
	Token     string
	Origin    string
}

type Response struct {
	Body        io.ReadCloser
	ContentType string
}

// JobStatus is the slice of the job orchestrator the gate needs.
type JobStatus interface {
	Status(ctx context.Context, videoID string) (pipeline.Job, error)
}

// ViewCounter records one playback start per master manifest request.
type ViewCounter interface {
	IncrementViews(ctx context.Context, videoID string) error
}

type Gate struct {
	codec      *token.Codec
	jobs       JobStatus
	views      ViewCounter
	storageDir string
}

func NewGate(codec *token.Codec, jobs JobStatus, views ViewCounter, storageDir string) *Gate {
	return &Gate{
		codec:      codec,
		jobs:       jobs,
		views:      views,
		storageDir: storageDir,
	}
}

// Handle serves one file from a video's HLS output tree. Manifests are
// authorized and rewritten so that every URI they reference carries the
// token; other files stream back untouched.
func (g *Gate) Handle(ctx context.Context, req Request) (*Response, error) {
	f, contentType, err := g.fetch(req.VideoID, req.File)
	if err != nil {
		return nil, err
	}

	if !IsManifest(req.File) {
		return &Response{Body: f, ContentType: contentType}, nil
	}
	// manifest bodies are fully consumed and re-encoded, unlike segments
	// which are proxied back directly above
	defer f.Close()

	if err := g.authorize(ctx, req); err != nil {
		metrics.Metrics.PlaybackAuthorizations.WithLabelValues("false").Inc()
		return nil, err
	}
	metrics.Metrics.PlaybackAuthorizations.WithLabelValues("true").Inc()

	if req.File == config.MasterManifestName {
		if err := g.views.IncrementViews(ctx, req.VideoID); err != nil {
			// a lost view must not break playback
			log.LogError(req.RequestID, "failed to record view", err, "video_id", req.VideoID)
		} else {
			metrics.Metrics.ViewsRecorded.Inc()
		}
	}

	rewritten, err := rewriteManifest(f, req.Token)
	if err != nil {
		return nil, err
	}
	return &Response{Body: io.NopCloser(rewritten), ContentType: contentType}, nil
}

// authorize fails closed: a missing or bad token, a token for another video
// or a disallowed origin all deny access before the job state is even
// consulted.
func (g *Gate) authorize(ctx context.Context, req Request) error {
	if req.Token == "" {
		return fmt.Errorf("invalid request: %w", caterrs.EmptyTokenError)
	}
	claims, err := g.codec.Verify(req.Token)
	if err != nil {
		return err
	}
	if claims.VideoID != req.VideoID {
		return caterrs.UnauthorisedError
	}
	if !token.MatchOrigin(claims.AllowedOrigins, req.Origin) {
		return caterrs.UnauthorisedError
	}

	job, err := g.jobs.Status(ctx, req.VideoID)
	if err != nil {
		return fmt.Errorf("failed to check job state: %w", err)
	}
	if job.State != pipeline.StateSucceeded {
		return caterrs.NotReadyError
	}
	return nil
}

func (g *Gate) fetch(videoID, file string) (io.ReadCloser, string, error) {
	root := filepath.Join(g.storageDir, videoID)
	full := filepath.Join(root, filepath.FromSlash(file))
	// reject path traversal out of the video's own directory
	if !strings.HasPrefix(full, root+string(os.PathSeparator)) {
		return nil, "", fmt.Errorf("invalid request: %w", caterrs.ObjectNotFoundError)
	}

	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("invalid request: %w %v", caterrs.ObjectNotFoundError, err)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get file for playback: %w", err)
	}
	return f, contentTypeFor(file), nil
}

func contentTypeFor(file string) string {
	switch {
	case IsManifest(file):
		return "application/vnd.apple.mpegurl"
	case strings.HasSuffix(file, ".ts"):
		return "video/mp2t"
	default:
		return "application/octet-stream"
	}
}
