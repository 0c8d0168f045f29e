package version

import (
	"fmt"
	"io"
	"runtime"
)

// Set at build time with -ldflags "-X github.com/MrSnakeDoc/srcwatch/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	Date      = "unknown"
	GoVersion = runtime.Version()
)

func Print(w io.Writer) {
	fmt.Fprintln(w, "srcwatch - change detection for remote data sources")
	fmt.Fprintf(w, "  %-12s %s\n", "Version:", Version)
	fmt.Fprintf(w, "  %-12s %s\n", "Go Version:", GoVersion)
	fmt.Fprintf(w, "  %-12s %s\n", "Git Commit:", Commit)
	fmt.Fprintf(w, "  %-12s %s\n", "Built:", Date)
	fmt.Fprintf(w, "  %-12s %s/%s\n", "OS/Arch:", runtime.GOOS, runtime.GOARCH)
}
