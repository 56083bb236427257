package transcode

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

// ffmpeg reports encode position on stderr as "time=HH:MM:SS.cc".
var timeRegex = regexp.MustCompile(`time=(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

const tailLimit = 4096

// progressWriter sits on ffmpeg's stderr, translating encode-position lines
// into completion fractions and keeping the last few KB of output as the
// diagnostic attached to an EncodeError.
type progressWriter struct {
	duration float64
	sink     ProgressSink
	partial  []byte
	tail     bytes.Buffer
}

func newProgressWriter(durationSecs float64, sink ProgressSink) *progressWriter {
	return &progressWriter{duration: durationSecs, sink: sink}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.tail.Write(p)
	if w.tail.Len() > tailLimit {
		trimmed := w.tail.Bytes()[w.tail.Len()-tailLimit:]
		var next bytes.Buffer
		next.Write(trimmed)
		w.tail = next
	}

	w.partial = append(w.partial, p...)
	for {
		idx := bytes.IndexAny(w.partial, "\r\n")
		if idx < 0 {
			break
		}
		line := string(w.partial[:idx])
		w.partial = w.partial[idx+1:]
		w.scanLine(line)
	}
	return len(p), nil
}

func (w *progressWriter) scanLine(line string) {
	if w.sink == nil || w.duration <= 0 || !strings.Contains(line, "time=") {
		return
	}
	match := timeRegex.FindStringSubmatch(line)
	if match == nil {
		return
	}
	h, _ := strconv.ParseFloat(match[1], 64)
	m, _ := strconv.ParseFloat(match[2], 64)
	s, _ := strconv.ParseFloat(match[3], 64)
	encoded := h*3600 + m*60 + s

	fraction := encoded / w.duration
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	w.sink(fraction)
}

// Tail returns the retained end of ffmpeg's stderr output.
func (w *progressWriter) Tail() string {
	return w.tail.String()
}
