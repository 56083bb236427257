package video

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/streamplace/vod-api/config"
)

// MasterManifest renders the top-level HLS manifest advertising each
// rendition in encode order. The output is deterministic: identical
// rendition sequences always produce byte-identical text, which both players
// and caching rely on.
func MasterManifest(renditions []Rendition) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n\n")
	for _, r := range renditions {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n", r.VideoBitrateKbps*1000, r.Width, r.Height)
		fmt.Fprintf(&b, "%s/%s\n\n", r.Name, config.RenditionManifestName)
	}
	return b.String()
}

// WriteMasterManifest writes the master manifest under dir and returns its
// path. It must only ever be called once every requested rendition has
// succeeded; a partial master manifest must never exist on disk.
func WriteMasterManifest(dir string, renditions []Rendition) (string, error) {
	manifestPath := filepath.Join(dir, config.MasterManifestName)
	if err := os.WriteFile(manifestPath, []byte(MasterManifest(renditions)), 0644); err != nil {
		return "", fmt.Errorf("failed to write master manifest: %w", err)
	}
	return manifestPath, nil
}
