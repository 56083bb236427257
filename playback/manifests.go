package playback

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/grafov/m3u8"
)

// rewriteManifest appends the capability token to every URI the manifest
// references so that players following the playlist stay authorized.
func rewriteManifest(manifest io.Reader, tokenText string) (io.Reader, error) {
	p, listType, err := m3u8.DecodeFrom(manifest, true)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest contents: %w", err)
	}
	switch listType {
	case m3u8.MASTER:
		masterPl := p.(*m3u8.MasterPlaylist)
		for _, variant := range masterPl.Variants {
			if variant == nil {
				break
			}
			variant.URI, err = appendToken(variant.URI, tokenText)
			if err != nil {
				return nil, err
			}
		}
	case m3u8.MEDIA:
		mediaPl := p.(*m3u8.MediaPlaylist)
		for _, segment := range mediaPl.Segments {
			if segment == nil {
				break
			}
			segment.URI, err = appendToken(segment.URI, tokenText)
			if err != nil {
				return nil, err
			}
		}
	}
	return p.Encode(), nil
}

func appendToken(uri, tokenText string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("failed to parse variant uri: %w", err)
	}
	queryParams := parsed.Query()
	queryParams.Add(KeyParam, tokenText)
	parsed.RawQuery = queryParams.Encode()
	return parsed.String(), nil
}

func IsManifest(requestFile string) bool {
	return strings.HasSuffix(requestFile, ".m3u8")
}
