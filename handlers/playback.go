package handlers

import (
	stderrs "errors"
	"io"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	catErrs "github.com/streamplace/vod-api/errors"
	"github.com/streamplace/vod-api/log"
	"github.com/streamplace/vod-api/playback"
	"github.com/streamplace/vod-api/requests"
)

// Playback serves files from a video's HLS output through the gate. The
// capability token arrives as a query parameter or a bearer header.
func (d *VodAPIHandlersCollection) Playback() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		requestID := requests.GetRequestId(req)

		tokenText := req.URL.Query().Get(playback.KeyParam)
		if tokenText == "" {
			tokenText = strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
		}

		playbackReq := playback.Request{
			RequestID: requestID,
			VideoID:   params.ByName("videoID"),
			File:      strings.TrimPrefix(params.ByName("file"), "/"),
			Token:     tokenText,
			Origin:    req.Header.Get("Origin"),
		}
		response, err := d.Gate.Handle(req.Context(), playbackReq)
		if err != nil {
			handlePlaybackError(err, req, requestID, w)
			return
		}
		defer response.Body.Close()

		w.Header().Set("content-type", response.ContentType)
		w.Header().Set("cache-control", "max-age=0")
		w.WriteHeader(http.StatusOK)

		if req.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(w, response.Body); err != nil {
			log.LogError(requestID, "failed to write response", err)
		}
	}
}

func handlePlaybackError(err error, req *http.Request, requestID string, w http.ResponseWriter) {
	log.LogError(requestID, "error in playback handler", err, "url", req.URL)
	switch {
	case stderrs.Is(err, catErrs.EmptyTokenError):
		catErrs.WriteHTTPBadRequest(w, "playback token required", nil)
	case stderrs.Is(err, catErrs.InvalidTokenError):
		catErrs.WriteHTTPUnauthorized(w, "denied", nil)
	case stderrs.Is(err, catErrs.UnauthorisedError):
		catErrs.WriteHTTPForbidden(w, "denied", nil)
	case stderrs.Is(err, catErrs.NotReadyError):
		catErrs.WriteHTTPConflict(w, "video is not ready for streaming", nil)
	case stderrs.Is(err, catErrs.ObjectNotFoundError):
		catErrs.WriteHTTPNotFound(w, "not found", nil)
	default:
		catErrs.WriteHTTPInternalServerError(w, "internal server error", nil)
	}
}
