package config

import (
	"flag"
	"strings"
	"time"
)

// Cli holds every tunable of the service. It is populated once in main from
// flags/env and threaded into each component at construction; nothing reads
// the environment after startup.
type Cli struct {
	HTTPAddress     string
	APIToken        string
	StorageDir      string
	DatabaseURL     string
	Qualities       []string
	MaxJobs         int
	SegmentDuration time.Duration
	TokenSecret     string
	TokenTTL        time.Duration
	AllowedOrigins  []string
	PprofPort       int
}

// CommaSliceFlag registers a flag that parses a comma separated list into
// dest. An empty value yields an empty (non-nil) slice.
func CommaSliceFlag(fs *flag.FlagSet, dest *[]string, name string, value []string, usage string) {
	*dest = value
	fs.Func(name, usage, func(s string) error {
		if s == "" {
			*dest = []string{}
			return nil
		}
		split := strings.Split(s, ",")
		out := make([]string, 0, len(split))
		for _, v := range split {
			out = append(out, strings.TrimSpace(v))
		}
		*dest = out
		return nil
	})
}
