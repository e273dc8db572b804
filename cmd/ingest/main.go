package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"dgisync/internal/app"
	"dgisync/internal/types"

	logger "github.com/Bparsons0904/goLogger"
)

// Exit codes: 0 for a healthy terminal state, 2 when the run finished but
// needs attention, 1 when the pipeline could not run at all.
const (
	exitHealthy   = 0
	exitFailed    = 1
	exitAttention = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logger.New("ingest").Function("run")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := app.New(ctx, false)
	if err != nil {
		log.Er("failed to initialize app", err)
		return exitFailed
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Er("failed to close app", err)
		}
	}()

	summary, err := app.Services.Pipeline.Run(ctx)
	if err != nil {
		log.Er("ingestion run failed", err)
		return exitFailed
	}

	if err := app.Services.RunHistory.Record(ctx, summary); err != nil {
		log.Er("failed to record run history", err, "runId", summary.RunID)
	}

	if err := writeSummary(summary); err != nil {
		log.Er("failed to write run summary", err)
		return exitFailed
	}

	if !summary.Status.Healthy() {
		return exitAttention
	}
	return exitHealthy
}

// writeSummary prints the summary as a single JSON line on stdout.
func writeSummary(summary types.RunSummary) error {
	return json.NewEncoder(os.Stdout).Encode(summary)
}
