// Package store holds the durable-store implementations behind the job
// orchestrator and the playback gate. Every call is atomic on its own; there
// is no transactional guarantee across calls.
package store

// VideoRecord is the stored description of an uploaded video. The upload
// intake writes it before any transcode job exists; the pipeline and the
// playback gate only read it (views excepted).
type VideoRecord struct {
	ID               string
	OriginalFilename string
	SourcePath       string
	SizeBytes        int64
	MimeType         string
	AllowedOrigins   []string
	Views            int64
}
