package errs

import "fmt"

type Code string

const (
	NegativeDelay     Code = "NEGATIVE_DELAY"
	UnknownSourceIDs  Code = "UNKNOWN_SOURCE_IDS"
	CronNeedsAction   Code = "CRON_NEEDS_ACTION"
	InvalidLimit      Code = "INVALID_LIMIT"
	ConfigExists      Code = "CONFIG_EXISTS"
	VerbosityConflict Code = "VERBOSITY_CONFLICT"
)

var messages = map[Code]string{
	NegativeDelay: `Invalid value: --delay must be zero or positive (got %[1]s)

Usage:
  srcwatch check --delay 2s
  srcwatch check --delay 0      # no pause between requests`,

	UnknownSourceIDs: `Unknown source ids: %[1]s

None of the requested --source values is in the catalog %[2]s.
Run 'srcwatch status' to list the available ids.`,

	CronNeedsAction: `Missing action: use 'install' or 'uninstall'

Usage:
  srcwatch cron install      # monthly check on the 1st at 09:00
  srcwatch cron uninstall`,

	InvalidLimit: `Invalid value: --limit must be positive (got %[1]d)`,

	ConfigExists: `Configuration already exists at %[1]s

Usage:
  srcwatch init --force      # overwrite it`,

	VerbosityConflict: `Invalid flag combination: -V cannot be combined with --quiet or --silent`,
}

func Msg(code Code, a ...any) string {
	msg := messages[code]
	if msg == "" {
		msg = string(code)
	}
	return fmt.Sprintf(msg, a...)
}
