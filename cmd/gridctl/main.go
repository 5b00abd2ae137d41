// gridctl drives grid definitions from the terminal: browse a listing
// interactively, run one-shot fetches and exports, and resolve
// capability gates for scripting.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "browse":
		return runBrowseCmd(args[2:], stdout, stderr)
	case "fetch":
		return runFetchCmd(args[2:], stdout, stderr)
	case "gate":
		return runGateCmd(args[2:], stdout, stderr)
	case "export":
		return runExportCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "gridctl - grid engine console")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  gridctl browse --grid <id>                 interactive listing browser")
	fmt.Fprintln(w, "  gridctl fetch  --grid <id> [query flags]   one-shot listing fetch (JSON)")
	fmt.Fprintln(w, "  gridctl gate   --doc <file> --module <m>   resolve a capability gate")
	fmt.Fprintln(w, "  gridctl export --grid <id> --format <f>    run one export")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment: GRIDCORE_BASE_URL, GRIDCORE_GRIDS_DIR, GRIDCORE_STORAGE,")
	fmt.Fprintln(w, "  GRIDCORE_SQLITE_PATH, GRIDCORE_REDIS_ADDR, GRIDCORE_LOG_LEVEL,")
	fmt.Fprintln(w, "  GRIDCORE_RATE_LIMIT")
	fmt.Fprintln(w, "")
}

// setupLogging routes slog to stderr at the configured level so JSON
// command output on stdout stays parseable.
func setupLogging(level string, stderr io.Writer) {
	var l slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		l = slog.LevelDebug
	case "WARN":
		l = slog.LevelWarn
	case "ERROR":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: l})))
}
