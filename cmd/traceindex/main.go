package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dftracer-utils/traceindex/pkg/analyzer"
	"github.com/dftracer-utils/traceindex/pkg/checkpoint"
	"github.com/dftracer-utils/traceindex/pkg/metrics"
	"github.com/dftracer-utils/traceindex/pkg/pipeline/exec"
	"github.com/dftracer-utils/traceindex/pkg/tracelog"
)

const defaultCheckpointMiB = 32

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "index":
		indexCommand()
	case "analyze":
		analyzeCommand()
	case "metrics":
		metricsCommand()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `traceindex - checkpointed random-access trace archive indexer

Usage:
  traceindex <command> [options]

Commands:
  index     Build or refresh the persistent checkpoint index for an archive
  analyze   Reduce a trace archive into high-level I/O metrics
  metrics   Print process-wide performance counters

Examples:
  traceindex index --archive trace.pfw.gz --checkpoint-mib 32
  traceindex analyze --archive trace.pfw.gz --workers 8
`)
}

func indexCommand() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	archivePath := fs.String("archive", "", "path to the trace archive (required)")
	checkpointMiB := fs.Int("checkpoint-mib", defaultCheckpointMiB, "checkpoint cadence in MiB")
	verbose := fs.Bool("verbose", false, "verbose logging")
	fs.Parse(os.Args[2:])

	if *archivePath == "" {
		fmt.Fprintln(os.Stderr, "error: --archive is required")
		fs.Usage()
		os.Exit(1)
	}
	if *verbose {
		tracelog.SetLevel(zerolog.DebugLevel)
	}

	a, err := analyzer.Open(context.Background(), *archivePath, checkpoint.Options{
		CheckpointSize: int64(*checkpointMiB) * 1024 * 1024,
	})
	if err != nil {
		tracelog.Logger().Error().Err(err).Msg("index build failed")
		os.Exit(1)
	}
	defer a.Close()

	tracelog.Logger().Info().Int64("total_lines", a.TotalLines()).Msg("index ready")
}

func analyzeCommand() {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	archivePath := fs.String("archive", "", "path to the trace archive (required)")
	workers := fs.Int("workers", 8, "worker pool size")
	partitions := fs.Int("partitions", 8, "reduction partition count")
	batchLines := fs.Int64("batch-lines", 100_000, "lines read per batch")
	fs.Parse(os.Args[2:])

	if *archivePath == "" {
		fmt.Fprintln(os.Stderr, "error: --archive is required")
		fs.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	a, err := analyzer.Open(ctx, *archivePath, checkpoint.Options{})
	if err != nil {
		tracelog.Logger().Error().Err(err).Msg("open archive failed")
		os.Exit(1)
	}
	defer a.Close()

	start := time.Now()
	results, err := a.Analyze(ctx, exec.Threaded{MaxWorkers: *workers}, *batchLines, *partitions)
	if err != nil {
		tracelog.Logger().Error().Err(err).Msg("analyze failed")
		os.Exit(1)
	}

	tracelog.Logger().Info().Dur("elapsed", time.Since(start)).Int("buckets", len(results)).Msg("analysis complete")
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		tracelog.Logger().Error().Err(err).Msg("encode results failed")
		os.Exit(1)
	}
}

func metricsCommand() {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	format := fs.String("format", "json", "output format (json, prometheus)")
	fs.Parse(os.Args[2:])

	snapshot := metrics.Global.Snapshot()
	switch *format {
	case "prometheus":
		for key, value := range snapshot {
			fmt.Printf("%s %v\n", key, value)
		}
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(snapshot)
	}
}
