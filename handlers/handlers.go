package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/streamplace/vod-api/log"
	"github.com/streamplace/vod-api/pipeline"
	"github.com/streamplace/vod-api/playback"
	"github.com/streamplace/vod-api/store"
	"github.com/streamplace/vod-api/token"
)

// VideoSource looks up uploaded videos. Implemented by the store.
type VideoSource interface {
	LoadVideo(ctx context.Context, videoID string) (store.VideoRecord, error)
}

type VodAPIHandlersCollection struct {
	VODEngine      *pipeline.Coordinator
	Videos         VideoSource
	Tokens         *token.Codec
	Gate           *playback.Gate
	DefaultOrigins []string
}

func (d *VodAPIHandlersCollection) Ok() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		if _, err := io.WriteString(w, "OK"); err != nil {
			log.LogNoRequestID("Failed to write HTTP response for " + req.URL.RawPath)
		}
	}
}
