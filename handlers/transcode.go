package handlers

import (
	"encoding/json"
	stderrs "errors"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/streamplace/vod-api/errors"
	"github.com/streamplace/vod-api/log"
	"github.com/streamplace/vod-api/pipeline"
	"github.com/streamplace/vod-api/requests"
	"github.com/streamplace/vod-api/video"
)

// TranscodeVideoRequest is the optional body of a transcode start request.
// An absent or empty qualities list selects the process default set.
type TranscodeVideoRequest struct {
	Qualities []string `json:"qualities"`
}

type TranscodeJobResponse struct {
	VideoID    string   `json:"videoId"`
	State      string   `json:"state"`
	Progress   int      `json:"progress"`
	Qualities  []string `json:"qualities"`
	Renditions []string `json:"renditions,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func toJobResponse(job pipeline.Job) TranscodeJobResponse {
	resp := TranscodeJobResponse{
		VideoID:   job.VideoID,
		State:     string(job.State),
		Progress:  job.Progress,
		Qualities: job.Qualities,
		Error:     job.Error,
	}
	for _, r := range job.Renditions {
		resp.Renditions = append(resp.Renditions, r.Name)
	}
	return resp
}

func (d *VodAPIHandlersCollection) TranscodeVideo() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		requestID := requests.GetRequestId(req)
		videoID := params.ByName("videoID")

		var transcodeRequest TranscodeVideoRequest
		payload, err := io.ReadAll(req.Body)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot read body", err)
			return
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &transcodeRequest); err != nil {
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

		source := video.SourceMedia{
			Path:      rec.SourcePath,
			SizeBytes: rec.SizeBytes,
			MimeType:  rec.MimeType,
		}
		job, err := d.VODEngine.StartTranscode(req.Context(), requestID, videoID, source, transcodeRequest.Qualities)
		if stderrs.Is(err, errors.JobConflictError) {
			errors.WriteHTTPConflict(w, "transcode already in progress", nil)
			return
		}
		if video.IsProbeError(err) {
			errors.WriteHTTPBadRequest(w, "source media is not playable", err)
			return
		}
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to start transcode", err)
			return
		}

		writeJSON(w, requestID, toJobResponse(job))
	}
}

func (d *VodAPIHandlersCollection) TranscodeStatus() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		requestID := requests.GetRequestId(req)
		videoID := params.ByName("videoID")

		job, err := d.VODEngine.Status(req.Context(), videoID)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to load job status", err)
			return
		}
		writeJSON(w, requestID, toJobResponse(job))
	}
}

func writeJSON(w http.ResponseWriter, requestID string, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.LogError(requestID, "failed to write response", err)
	}
}
