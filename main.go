package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"
	"golang.org/x/sync/errgroup"

	"github.com/streamplace/vod-api/api"
	"github.com/streamplace/vod-api/config"
	"github.com/streamplace/vod-api/handlers"
	"github.com/streamplace/vod-api/log"
	"github.com/streamplace/vod-api/pipeline"
	"github.com/streamplace/vod-api/playback"
	"github.com/streamplace/vod-api/pprof"
	"github.com/streamplace/vod-api/store"
	"github.com/streamplace/vod-api/token"
	"github.com/streamplace/vod-api/transcode"
	"github.com/streamplace/vod-api/video"
)

// dataStore is the full surface the service needs from a store backend.
type dataStore interface {
	pipeline.JobStore
	handlers.VideoSource
	playback.ViewCounter
}

func main() {
	fs := flag.NewFlagSet("vod-api", flag.ExitOnError)
	cli := config.Cli{}

	version := fs.Bool("version", false, "print application version")

	fs.StringVar(&cli.HTTPAddress, "http-addr", "0.0.0.0:8989", "Address to bind for external-facing HTTP handling")
	fs.StringVar(&cli.APIToken, "api-token", "IAmAuthorized", "Auth header value for API access")
	fs.StringVar(&cli.StorageDir, "storage-dir", "/var/lib/vod-api", "Directory holding uploaded sources and HLS output")
	fs.StringVar(&cli.DatabaseURL, "database-url", "", "Postgres connection string. Empty runs an in-memory store for development")
	config.CommaSliceFlag(fs, &cli.Qualities, "qualities", video.DefaultQualityNames, "Comma delimited default quality set for transcode jobs")
	fs.IntVar(&cli.MaxJobs, "max-concurrent-jobs", 2, "Number of transcode worker goroutines")
	fs.DurationVar(&cli.SegmentDuration, "segment-duration", config.DefaultSegmentDurationSecs*time.Second, "Length of each HLS segment")
	fs.StringVar(&cli.TokenSecret, "token-secret", "", "HMAC secret for playback tokens")
	fs.DurationVar(&cli.TokenTTL, "token-ttl", config.DefaultTokenTTL, "Default lifetime of issued playback tokens")
	config.CommaSliceFlag(fs, &cli.AllowedOrigins, "allowed-origins", []string{}, "Comma delimited default origin allowlist for playback. Empty allows any origin")
	fs.IntVar(&cli.PprofPort, "pprof-port", 6061, "Pprof listen port")
	_ = fs.String("config", "", "config file (optional)")

	err := ff.Parse(fs, os.Args[1:],
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("VOD_API"),
	)
	if err != nil {
		fatalf("error parsing cli: %s", err)
	}
	if len(fs.Args()) > 0 {
		fatalf("unexpected extra arguments on command line: %v", fs.Args())
	}

	if *version {
		fmt.Printf("vod-api version: %s\n", config.Version)
		return
	}
	if cli.TokenSecret == "" {
		fatalf("-token-secret is required")
	}

	go func() {
		log.LogNoRequestID("pprof server stopped", "err", pprof.ListenAndServe(cli.PprofPort))
	}()

	var backend dataStore
	if cli.DatabaseURL != "" {
		pg, err := store.NewPostgres(cli.DatabaseURL)
		if err != nil {
			fatalf("error connecting to postgres: %s", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(context.Background()); err != nil {
			fatalf("error preparing database schema: %s", err)
		}
		backend = pg
	} else {
		log.LogNoRequestID("database-url not set, using in-memory store. All state is lost on restart")
		backend = store.NewMemory()
	}

	if err := os.MkdirAll(cli.StorageDir, 0755); err != nil {
		fatalf("error creating storage dir: %s", err)
	}

	// Cancelling the root context prompts all components to shut down cleanly
	group, ctx := errgroup.WithContext(context.Background())

	encoder := transcode.NewFFmpeg(int64(cli.SegmentDuration.Seconds()))
	vodEngine := pipeline.NewCoordinator(ctx, video.Probe{}, encoder, backend, cli.StorageDir, cli.MaxJobs, cli.Qualities)
	codec := token.NewCodec(cli.TokenSecret, cli.TokenTTL)

	apiHandlers := &handlers.VodAPIHandlersCollection{
		VODEngine:      vodEngine,
		Videos:         backend,
		Tokens:         codec,
		Gate:           playback.NewGate(codec, vodEngine, backend, cli.StorageDir),
		DefaultOrigins: cli.AllowedOrigins,
	}

	group.Go(func() error {
		return handleSignals(ctx)
	})

	group.Go(func() error {
		return api.ListenAndServe(ctx, cli, apiHandlers)
	})

	err = group.Wait()
	log.LogNoRequestID("Shutdown complete", "reason", err)
}

func handleSignals(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	select {
	case s := <-c:
		log.LogNoRequestID("caught signal, attempting clean shutdown", "signal", s.String())
		return fmt.Errorf("caught signal=%v", s)
	case <-ctx.Done():
		return nil
	}
}

func fatalf(format string, args ...interface{}) {
	log.LogNoRequestID(fmt.Sprintf(format, args...))
	os.Exit(1)
}
