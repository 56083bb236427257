package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/streamplace/vod-api/log"
)

// Sentinel errors surfaced to API callers. Security-relevant ones
// deliberately carry no detail about which check failed.
var (
	// InvalidTokenError covers any signature, structure or expiry failure
	// of a playback token. Callers only ever see this generic value.
	InvalidTokenError = errors.New("invalid or expired token")
	// UnauthorisedError is returned for an otherwise valid token that does
	// not grant access (wrong video, disallowed origin).
	UnauthorisedError = errors.New("unauthorised")
	// NotReadyError is returned when playback is requested before the
	// video's transcode job has succeeded.
	NotReadyError = errors.New("video is not ready for streaming")
	// JobConflictError is returned when a transcode start is attempted
	// while another job for the same video is queued or running.
	JobConflictError = errors.New("transcode already in progress")
	ObjectNotFoundError = errors.New("object not found")
	EmptyTokenError     = errors.New("playback token required")
)

type apiError struct {
	Msg    string `json:"message"`
	Status int    `json:"status"`
	Err    error  `json:"-"`
}

func writeHttpError(w http.ResponseWriter, msg string, status int, err error) apiError {
	var errorDetail string
	if err != nil {
		errorDetail = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg, "error_detail": errorDetail}); err != nil {
		log.LogNoRequestID("error writing HTTP error", "http_error_msg", msg, "error", err)
	}

	return apiError{msg, status, err}
}

// HTTP Errors
func WriteHTTPUnauthorized(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusUnauthorized, err)
}

func WriteHTTPForbidden(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusForbidden, err)
}

func WriteHTTPBadRequest(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusBadRequest, err)
}

func WriteHTTPNotFound(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusNotFound, err)
}

func WriteHTTPConflict(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusConflict, err)
}

func WriteHTTPInternalServerError(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusInternalServerError, err)
}

type unretriableError struct{ error }

// Unretriable tags an error as fatal so that the job orchestrator knows not
// to schedule another attempt.
func Unretriable(err error) error {
	return unretriableError{err}
}

func (e unretriableError) Unwrap() error {
	return e.error
}

func IsUnretriable(err error) bool {
	return errors.As(err, &unretriableError{})
}
