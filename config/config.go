package config

import (
	"math/rand"
	"time"
)

const (
	// Length of each HLS segment written by the rendition encoder.
	DefaultSegmentDurationSecs = 10

	// Default lifetime of an issued playback token.
	DefaultTokenTTL = 3600 * time.Second

	MasterManifestName    = "master.m3u8"
	RenditionManifestName = "playlist.m3u8"
	SegmentFilePattern    = "segment_%03d.ts"

	// Hard cap on transcode start requests admitted past the API before the
	// job queue pushes back. Deliberately larger than the worker count so
	// jobs can pile up in the queue.
	MaxInFlightJobs = 64
)

var Version = "unknown"

var r = rand.New(rand.NewSource(time.Now().UnixNano()))

// RandomTrailer returns a random lowercase alphanumeric string, used for
// request IDs when the caller didn't supply one.
func RandomTrailer(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"

	res := make([]byte, length)
	for i := 0; i < length; i++ {
		res[i] = charset[r.Intn(len(charset))]
	}
	return string(res)
}
