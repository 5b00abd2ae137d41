package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/url"

	"github.com/consoleworks/gridcore/pkg/config"
	"github.com/consoleworks/gridcore/pkg/export"
)

// runExportCmd implements `gridctl export`: run one export of a grid's
// full listing and print the stored location.
//
// Exit codes:
//
//	0 = export completed
//	2 = setup or runtime error
func runExportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		gridID string
		format string
		outDir string
		s3     bool
	)
	cmd.StringVar(&gridID, "grid", "", "Grid id (REQUIRED)")
	cmd.StringVar(&format, "format", "csv", "Export format")
	cmd.StringVar(&outDir, "out", "exports", "Directory for export files")
	cmd.BoolVar(&s3, "s3", false, "Store in the grid's configured S3 bucket instead of a local file")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	settings := config.LoadSettings()
	setupLogging(settings.LogLevel, stderr)

	def, err := loadGrid(settings, gridID)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	client, err := buildClient(settings)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx := context.Background()

	var sink export.Sink = export.FileSink{Dir: outDir}
	if s3 {
		if def.Export.Bucket == "" {
			_, _ = fmt.Fprintln(stderr, "Error: grid has no export bucket configured")
			return 2
		}
		s3sink, err := export.NewS3SinkFromEnv(ctx, def.Export.Bucket, def.Export.Prefix)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		sink = s3sink
	}

	source := func(ctx context.Context, _ string, params url.Values, w io.Writer) error {
		return client.Download(ctx, def.Endpoint, params, w)
	}
	runner := export.NewRunner(def.Export.Policy, source, sink, nil)

	location, err := runner.Export(ctx, format, url.Values{"format": {format}})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintln(stdout, location)
	return 0
}
