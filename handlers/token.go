package handlers

import (
	"encoding/json"
	stderrs "errors"
	"io"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/streamplace/vod-api/errors"
	"github.com/streamplace/vod-api/metrics"
	"github.com/streamplace/vod-api/requests"
)

type IssueTokenRequest struct {
	TTLSeconds int      `json:"ttlSeconds"`
	Origins    []string `json:"origins"`
}

type IssueTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IssueToken mints a playback token for one video. The origin allowlist is
// taken from the request, falling back to the video's own allowlist, then to
// the process default.
func (d *VodAPIHandlersCollection) IssueToken() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		requestID := requests.GetRequestId(req)
		videoID := params.ByName("videoID")

		var tokenRequest IssueTokenRequest
		payload, err := io.ReadAll(req.Body)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot read body", err)
			return
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &tokenRequest); err != nil {
				errors.WriteHTTPBadRequest(w, "Invalid request payload", err)
				return
			}
		}

		rec, err := d.Videos.LoadVideo(req.Context(), videoID)
		if stderrs.Is(err, errors.ObjectNotFoundError) {
			errors.WriteHTTPNotFound(w, "video not found", nil)
			return
		}
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to load video", err)
			return
		}

		origins := tokenRequest.Origins
		if len(origins) == 0 {
			origins = rec.AllowedOrigins
		}
		if len(origins) == 0 {
			origins = d.DefaultOrigins
		}

		signed, expiresAt, err := d.Tokens.Issue(videoID, time.Duration(tokenRequest.TTLSeconds)*time.Second, origins)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to issue token", err)
			return
		}
		metrics.Metrics.TokensIssued.Inc()

		writeJSON(w, requestID, IssueTokenResponse{Token: signed, ExpiresAt: expiresAt})
	}
}
