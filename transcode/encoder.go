package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/streamplace/vod-api/config"
	"github.com/streamplace/vod-api/log"
	"github.com/streamplace/vod-api/video"
)

// EncodeError carries the underlying ffmpeg diagnostic when encoding one
// rendition fails. It is fatal to the whole job and is not retried: a corrupt
// source typically fails every quality identically.
type EncodeError struct {
	Quality    string
	Diagnostic string
	err        error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode failed for %s: %s", e.Quality, e.err)
}

func (e *EncodeError) Unwrap() error {
	return e.err
}

func IsEncodeError(err error) bool {
	var ee *EncodeError
	return errors.As(err, &ee)
}

// ProgressSink receives per-rendition completion fractions in [0,1] at
// encoder-determined intervals.
type ProgressSink func(fraction float64)

type Encoder interface {
	EncodeRendition(ctx context.Context, requestID string, source video.SourceMedia, outputDir string, quality video.Quality, progress ProgressSink) (video.Rendition, error)
}

// FFmpeg encodes renditions by invoking the ffmpeg binary with declarative
// arguments. Output is a fixed-duration HLS segment sequence plus a
// quality-local playlist under <outputDir>/<quality>/.
type FFmpeg struct {
	SegmentDurationSecs int64
}

func NewFFmpeg(segmentDurationSecs int64) *FFmpeg {
	if segmentDurationSecs <= 0 {
		segmentDurationSecs = config.DefaultSegmentDurationSecs
	}
	return &FFmpeg{SegmentDurationSecs: segmentDurationSecs}
}

func (f *FFmpeg) EncodeRendition(ctx context.Context, requestID string, source video.SourceMedia, outputDir string, quality video.Quality, progress ProgressSink) (video.Rendition, error) {
	// Cancellation is honored at rendition boundaries only; once ffmpeg is
	// running it goes to completion or failure.
	if err := ctx.Err(); err != nil {
		return video.Rendition{}, &EncodeError{Quality: quality.Name, err: err}
	}

	qualityDir := filepath.Join(outputDir, quality.Name)
	if err := os.MkdirAll(qualityDir, 0755); err != nil {
		return video.Rendition{}, &EncodeError{Quality: quality.Name, err: fmt.Errorf("failed to create rendition dir: %w", err)}
	}
	playlistPath := filepath.Join(qualityDir, config.RenditionManifestName)

	stderr := newProgressWriter(source.Info.Duration, progress)

	log.Log(requestID, "starting rendition encode", "quality", quality.Name, "out", playlistPath)
	err := ffmpeg.Input(source.Path).
		Output(playlistPath, hlsArgs(quality, filepath.Join(qualityDir, config.SegmentFilePattern), f.SegmentDurationSecs)).
		OverWriteOutput().
		WithErrorOutput(stderr).
		Run()
	if err != nil {
		return video.Rendition{}, &EncodeError{Quality: quality.Name, Diagnostic: stderr.Tail(), err: err}
	}
	if progress != nil {
		progress(1)
	}

	size, err := dirSize(qualityDir)
	if err != nil {
		return video.Rendition{}, &EncodeError{Quality: quality.Name, err: fmt.Errorf("failed to size rendition output: %w", err)}
	}

	return video.Rendition{
		Name:             quality.Name,
		Width:            quality.Width,
		Height:           quality.Height,
		VideoBitrateKbps: quality.VideoBitrateKbps,
		AudioBitrateKbps: quality.AudioBitrateKbps,
		Codec:            "h264",
		ManifestPath:     playlistPath,
		SizeBytes:        size,
	}, nil
}

func hlsArgs(quality video.Quality, segmentPattern string, segmentSecs int64) ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"c:v":                  "libx264",
		"c:a":                  "aac",
		"b:v":                  fmt.Sprintf("%dk", quality.VideoBitrateKbps),
		"b:a":                  fmt.Sprintf("%dk", quality.AudioBitrateKbps),
		"preset":               "fast",
		"g":                    48,
		"sc_threshold":         0,
		"vf":                   fmt.Sprintf("scale=%d:%d", quality.Width, quality.Height),
		"f":                    "hls",
		"hls_time":             segmentSecs,
		"hls_list_size":        0,
		"hls_segment_filename": segmentPattern,
	}
}

func dirSize(dir string) (int64, error) {
	var size int64
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
