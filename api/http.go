package api

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamplace/vod-api/config"
	"github.com/streamplace/vod-api/handlers"
	"github.com/streamplace/vod-api/log"
	"github.com/streamplace/vod-api/middleware"
)

func ListenAndServe(ctx context.Context, cli config.Cli, apiHandlers *handlers.VodAPIHandlersCollection) error {
	router := NewVodAPIRouter(cli, apiHandlers)
	server := http.Server{Addr: cli.HTTPAddress, Handler: router}
	ctx, cancel := context.WithCancel(ctx)

	log.LogNoRequestID(
		"Starting VOD API!",
		"version", config.Version,
		"host", cli.HTTPAddress,
	)

	var err error
	go func() {
		err = server.ListenAndServe()
		cancel()
	}()

	<-ctx.Done()
	if err != nil {
		return err
	}

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func NewVodAPIRouter(cli config.Cli, apiHandlers *handlers.VodAPIHandlersCollection) *httprouter.Router {
	router := httprouter.New()
	withLogging := middleware.LogRequest(log.Base())
	withAuth := middleware.IsAuthorized
	withCORS := middleware.AllowCORS(cli.AllowedOrigins)
	capacity := &middleware.CapacityMiddleware{}

	// Simple endpoint for healthchecks
	router.GET("/ok", withLogging(apiHandlers.Ok()))
	router.GET("/metrics", withLogging(promHandle()))

	// Control plane, guarded by the static API token
	router.POST("/api/videos/:videoID/transcode",
		withLogging(
			withAuth(
				cli.APIToken,
				capacity.HasCapacity(
					apiHandlers.VODEngine,
					config.MaxInFlightJobs,
					apiHandlers.TranscodeVideo(),
				),
			),
		),
	)
	router.GET("/api/videos/:videoID/status",
		withLogging(
			withAuth(
				cli.APIToken,
				apiHandlers.TranscodeStatus(),
			),
		),
	)
	router.POST("/api/videos/:videoID/token",
		withLogging(
			withAuth(
				cli.APIToken,
				apiHandlers.IssueToken(),
			),
		),
	)

	// Playback is gated by capability tokens, not the API token
	router.GET("/api/stream/:videoID/*file", withLogging(withCORS(apiHandlers.Playback())))
	router.HEAD("/api/stream/:videoID/*file", withLogging(withCORS(apiHandlers.Playback())))

	return router
}

func promHandle() httprouter.Handle {
	handler := promhttp.Handler()
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		handler.ServeHTTP(w, r)
	}
}
