package video

// SourceMedia is an immutable reference to an uploaded file plus its probed
// metadata. Produced once at upload time and only ever read afterwards.
type SourceMedia struct {
	Path      string
	SizeBytes int64
	MimeType  string
	Info      SourceInfo
}

// SourceInfo is the metadata extracted from the primary video stream of a
// source file.
type SourceInfo struct {
	Duration           float64
	Codec              string
	Width              int64
	Height             int64
	FPS                float64
	DisplayAspectRatio string
}

// Rendition is the output of encoding one quality. Immutable once produced;
// appended to the job's results in the order qualities were processed.
type Rendition struct {
	Name             string
	Width            int64
	Height           int64
	VideoBitrateKbps int64
	AudioBitrateKbps int64
	Codec            string
	ManifestPath     string
	SizeBytes        int64
}
