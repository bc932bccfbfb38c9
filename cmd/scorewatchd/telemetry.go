package main

import (
	"context"
	"log/slog"
	"os"

	"scorewatch-backend/lib/telemetry"
	"scorewatch-backend/lib/util/serviceutil"
)

func InitTelemetry(ctx context.Context, verbose bool) {
	telemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	tel, err := telemetry.SetupFromEnv(ctx, "scorewatchd")
	if os.IsNotExist(err) {
		slog.WarnContext(ctx, "no telemetry.json5 found, spans go nowhere")
		return
	}
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		tel.Shutdown(context.Background())
	}()
	telemetry.InstrumentPerfStats(ctx)
}
