package logger

import (
	"io"
	"os"
)

var (
	FlagVerboseCount int  // -V, -VV
	FlagQuiet        bool // --quiet/-q
	FlagSilent       bool // --silent/-s
	FlagJSON         bool // --json, for cron and CI
)

func ConfigureLoggerFromFlags() {
	ConfigureLogger("")
}

// ConfigureLogger applies the verbosity flags. fallback is the configured
// level, used only when no verbosity flag is set.
func ConfigureLogger(fallback string) {
	Configure(optionsFromFlags(fallback))
}

func optionsFromFlags(fallback string) Options {
	opts := Options{Level: "info", JSON: FlagJSON, Color: !FlagJSON, Out: os.Stdout}
	switch {
	case FlagQuiet:
		opts.Level = "error"
	case FlagSilent:
		// the run log still gets everything
		opts.Level = "error"
		opts.Out = io.Discard
	case FlagVerboseCount > 0:
		opts.Level = "debug"
	case fallback != "":
		opts.Level = fallback
	}
	return opts
}
