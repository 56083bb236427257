package video

// Quality describes one target of the encoding ladder.
type Quality struct {
	Name             string
	Width            int64
	Height           int64
	VideoBitrateKbps int64
	AudioBitrateKbps int64
}

// Ladder is the full set of qualities the encoder knows how to produce,
// highest first. Bitrates are the ffmpeg "k" values.
var Ladder = []Quality{
	{Name: "1080p", Width: 1920, Height: 1080, VideoBitrateKbps: 5000, AudioBitrateKbps: 192},
	{Name: "720p", Width: 1280, Height: 720, VideoBitrateKbps: 3000, AudioBitrateKbps: 128},
	{Name: "480p", Width: 854, Height: 480, VideoBitrateKbps: 1500, AudioBitrateKbps: 128},
	{Name: "360p", Width: 640, Height: 360, VideoBitrateKbps: 800, AudioBitrateKbps: 96},
}

// DefaultQualityNames is used when a transcode request doesn't specify a
// quality set.
var DefaultQualityNames = []string{"720p", "480p", "360p"}

// QualityByName looks a label up in the ladder. Unknown labels are skipped by
// the orchestrator, not failed.
func QualityByName(name string) (Quality, bool) {
	for _, q := range Ladder {
		if q.Name == name {
			return q, true
		}
	}
	return Quality{}, false
}
