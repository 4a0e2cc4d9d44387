package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/squadhub/squadlink/internal/setup"
	"github.com/squadhub/squadlink/internal/setup/telemetry"
	"github.com/squadhub/squadlink/internal/worker/purge"
	syncWorker "github.com/squadhub/squadlink/internal/worker/sync"
	"github.com/urfave/cli/v3"
)

const (
	// WorkerLogDir specifies where worker log files are stored.
	WorkerLogDir = "logs/worker_logs"

	// SyncWorker reconciles guild roles against the whitelist.
	SyncWorker = "sync"

	// PurgeWorker removes expired verification codes.
	PurgeWorker = "purge"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "worker",
		Usage: "Start a squadlink worker",
		Commands: []*cli.Command{
			{
				Name:  SyncWorker,
				Usage: "Start the role-whitelist sync worker",
				Action: func(ctx context.Context, _ *cli.Command) error {
					runWorker(ctx, SyncWorker)
					return nil
				},
			},
			{
				Name:  PurgeWorker,
				Usage: "Start the verification code purge worker",
				Action: func(ctx context.Context, _ *cli.Command) error {
					runWorker(ctx, PurgeWorker)
					return nil
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// runWorker initializes dependencies and runs one worker until interrupted.
func runWorker(ctx context.Context, workerType string) {
	app, err := setup.InitializeApp(ctx, telemetry.ServiceWorker, WorkerLogDir, workerType)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(ctx)

	if delay := app.Config.Worker.StartupDelay; delay > 0 {
		time.Sleep(time.Duration(delay) * time.Millisecond)
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	workerLogger := app.LogManager.GetWorkerLogger(workerType)

	switch workerType {
	case SyncWorker:
		syncWorker.New(app, workerLogger).Start(runCtx)
	case PurgeWorker:
		purge.New(app, workerLogger).Start(runCtx)
	}
}
