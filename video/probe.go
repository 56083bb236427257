package video

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/vansante/go-ffprobe.v2"
)

// ProbeError marks a source file as unreadable or lacking a usable video
// stream. It is fatal to job creation and never retried.
type ProbeError struct {
	err error
}

func NewProbeError(err error) error {
	return &ProbeError{err: err}
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe failed: %s", e.err)
}

func (e *ProbeError) Unwrap() error {
	return e.err
}

func IsProbeError(err error) bool {
	var pe *ProbeError
	return errors.As(err, &pe)
}

type Prober interface {
	ProbeFile(requestID, path string, ffProbeOptions ...string) (SourceInfo, error)
}

type Probe struct{}

func (p Probe) ProbeFile(requestID string, path string, ffProbeOptions ...string) (SourceInfo, error) {
	if len(ffProbeOptions) == 0 {
		ffProbeOptions = []string{"-loglevel", "error"}
	}
	var data *ffprobe.ProbeData
	operation := func() error {
		probeCtx, probeCancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer probeCancel()
		var err error
		data, err = ffprobe.ProbeURL(probeCtx, path, ffProbeOptions...)
		return err
	}

	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = 500 * time.Millisecond
	backOff.MaxInterval = 2 * time.Second
	backOff.MaxElapsedTime = 0 // don't impose a timeout as part of the retries
	if err := backoff.Retry(operation, backoff.WithMaxRetries(backOff, 3)); err != nil {
		return SourceInfo{}, NewProbeError(err)
	}
	return parseProbeOutput(data)
}

func parseProbeOutput(probeData *ffprobe.ProbeData) (SourceInfo, error) {
	videoStream := probeData.FirstVideoStream()
	if videoStream == nil {
		return SourceInfo{}, NewProbeError(errors.New("no video stream found"))
	}

	fps, err := parseFps(videoStream.AvgFrameRate)
	if err != nil {
		return SourceInfo{}, NewProbeError(fmt.Errorf("error parsing avg fps from probed data: %w", err))
	}
	// if fps is 0, fall back to RFrameRate which can be valid for some containers
	if fps == 0 {
		fps, err = parseFps(videoStream.RFrameRate)
		if err != nil {
			return SourceInfo{}, NewProbeError(fmt.Errorf("error parsing real fps from probed data: %w", err))
		}
	}

	duration, err := strconv.ParseFloat(videoStream.Duration, 64)
	if err != nil {
		if probeData.Format == nil {
			return SourceInfo{}, NewProbeError(errors.New("format information missing"))
		}
		duration = probeData.Format.DurationSeconds
	}

	return SourceInfo{
		Duration:           duration,
		Codec:              videoStream.CodecName,
		Width:              int64(videoStream.Width),
		Height:             int64(videoStream.Height),
		FPS:                fps,
		DisplayAspectRatio: videoStream.DisplayAspectRatio,
	}, nil
}

func parseFps(framerate string) (float64, error) {
	if framerate == "" {
		return 0, nil
	}
	parts := strings.SplitN(framerate, "/", 2)
	if len(parts) < 2 {
		fps, err := strconv.ParseFloat(framerate, 64)
		if err != nil {
			return 0, fmt.Errorf("error parsing framerate: %w", err)
		}
		return fps, nil
	}
	num, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("error parsing framerate numerator: %w", err)
	}
	den, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("error parsing framerate denominator: %w", err)
	}

	if den == 0 {
		// 0/0 can be valid for a video track i.e. mjpeg
		if num == 0 {
			return 0, nil
		}
		return 0, errors.New("invalid framerate denominator 0")
	}

	return float64(num) / float64(den), nil
}
