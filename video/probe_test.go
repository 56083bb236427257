package video

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/vansante/go-ffprobe.v2"
)

func TestItRejectsWhenNoVideoTrackPresent(t *testing.T) {
	_, err := parseProbeOutput(&ffprobe.ProbeData{
		Streams: []*ffprobe.Stream{
			{
				CodecType: "audio",
			},
		},
	})
	require.ErrorContains(t, err, "no video stream found")
	require.True(t, IsProbeError(err))
}

func TestItParsesVideoStreamMetadata(t *testing.T) {
	info, err := parseProbeOutput(&ffprobe.ProbeData{
		Streams: []*ffprobe.Stream{
			{
				CodecType:          "video",
				CodecName:          "h264",
				Width:              1920,
				Height:             1080,
				AvgFrameRate:       "30000/1001",
				DisplayAspectRatio: "16:9",
				Duration:           "123.5",
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "h264", info.Codec)
	require.Equal(t, int64(1920), info.Width)
	require.Equal(t, int64(1080), info.Height)
	require.InDelta(t, 29.97, info.FPS, 0.01)
	require.Equal(t, "16:9", info.DisplayAspectRatio)
	require.Equal(t, 123.5, info.Duration)
}

func TestItFallsBackToFormatDuration(t *testing.T) {
	info, err := parseProbeOutput(&ffprobe.ProbeData{
		Streams: []*ffprobe.Stream{
			{
				CodecType:    "video",
				CodecName:    "h264",
				AvgFrameRate: "25/1",
			},
		},
		Format: &ffprobe.Format{
			DurationSeconds: 60.25,
		},
	})
	require.NoError(t, err)
	require.Equal(t, 60.25, info.Duration)
}

func TestItRejectsWhenDurationUnavailable(t *testing.T) {
	_, err := parseProbeOutput(&ffprobe.ProbeData{
		Streams: []*ffprobe.Stream{
			{
				CodecType: "video",
				CodecName: "h264",
			},
		},
	})
	require.ErrorContains(t, err, "format information missing")
	require.True(t, IsProbeError(err))
}

func TestParseFps(t *testing.T) {
	tests := []struct {
		framerate string
		expected  float64
		errMsg    string
	}{
		{framerate: "", expected: 0},
		{framerate: "30", expected: 30},
		{framerate: "30000/1001", expected: 29.97002997002997},
		{framerate: "0/0", expected: 0},
		{framerate: "1/0", errMsg: "invalid framerate denominator 0"},
		{framerate: "banana", errMsg: "error parsing framerate"},
	}
	for _, tt := range tests {
		fps, err := parseFps(tt.framerate)
		if tt.errMsg != "" {
			require.ErrorContains(t, err, tt.errMsg, tt.framerate)
			continue
		}
		require.NoError(t, err, tt.framerate)
		require.Equal(t, tt.expected, fps, tt.framerate)
	}
}
