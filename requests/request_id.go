package requests

import (
	"net/http"

	"github.com/streamplace/vod-api/config"
)

const requestIDHeader = "X-Request-ID"

// GetRequestId returns the caller-supplied request ID, generating and
// stashing a random one on the request when absent.
func GetRequestId(req *http.Request) string {
	requestID := req.Header.Get(requestIDHeader)
	if requestID != "" {
		return requestID
	}
	requestID = config.RandomTrailer(8)
	req.Header.Set(requestIDHeader, requestID)
	return requestID
}
