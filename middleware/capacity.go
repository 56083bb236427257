package middleware

import (
	"net/http"
	"sync/atomic"

	"github.com/julienschmidt/httprouter"
	"github.com/streamplace/vod-api/metrics"
)

// InFlightCounter reports how many transcode jobs are currently queued or
// running. Implemented by the pipeline coordinator.
type InFlightCounter interface {
	InFlightJobs() int
}

type CapacityMiddleware struct {
	startRequestsInFlight atomic.Int64
}

// HasCapacity rejects transcode start requests with 429 once the number of
// in-flight jobs, plus start requests still being admitted, reaches
// maxInFlightJobs. The extra request counter closes the window where several
// starts race past the job count before any of them is registered.
func (c *CapacityMiddleware) HasCapacity(jobs InFlightCounter, maxInFlightJobs int, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		metrics.Metrics.HTTPRequestsInFlight.Add(1)
		defer metrics.Metrics.HTTPRequestsInFlight.Add(-1)

		inFlightReqs := c.startRequestsInFlight.Add(1)
		defer c.startRequestsInFlight.Add(-1)

		if jobs.InFlightJobs()+int(inFlightReqs)-1 >= maxInFlightJobs {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		next(w, r, ps)
	}
}
