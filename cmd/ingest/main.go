package main

import (
	"fmt"
	"os"

	"github.com/andresuchdata/banking-pipeline/internal/config"
	"github.com/andresuchdata/banking-pipeline/internal/pipeline"
	"github.com/andresuchdata/banking-pipeline/pkg/logger"
	"github.com/urfave/cli/v2"
)

func newRunIDFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "run-id",
		Usage:   "Run identifier shared by the download and load steps",
		EnvVars: []string{"RUN_ID"},
	}
}

func setup(c *cli.Context) error {
	cfg := config.Load()
	logger.Configure("ingest", cfg.Log.Level, cfg.Log.Format)
	return nil
}

func main() {
	app := &cli.App{
		Name:   "ingest",
		Usage:  "Move JSON objects from the bucket into the warehouse",
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run download_minio then load_snowflake once",
				Flags:  []cli.Flag{newRunIDFlag()},
				Action: runOnce,
			},
			{
				Name:   "download",
				Usage:  "Run only download_minio and publish its manifest to the handoff store",
				Flags:  []cli.Flag{newRunIDFlag()},
				Action: runDownload,
			},
			{
				Name:   "load",
				Usage:  "Run only load_snowflake with the manifest published for --run-id",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "run-id", Usage: "Run identifier of the download step", Required: true, EnvVars: []string{"RUN_ID"}}},
				Action: runLoad,
			},
			{
				Name:   "schedule",
				Usage:  "Serve the ops API and trigger runs on SCHEDULE_CRON",
				Action: runSchedule,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("ingest failed")
	}
}

func runOnce(c *cli.Context) error {
	deps, err := build(c.Context, config.Load(), false)
	if err != nil {
		return err
	}
	defer deps.Close()

	run, err := deps.runner.Run(c.Context, c.String("run-id"))
	if err != nil {
		return err
	}
	printRun(run)
	return nil
}

func runDownload(c *cli.Context) error {
	deps, err := build(c.Context, config.Load(), true)
	if err != nil {
		return err
	}
	defer deps.Close()

	run, err := deps.runner.RunDownload(c.Context, c.String("run-id"))
	if err != nil {
		return err
	}
	printRun(run)
	return nil
}

func runLoad(c *cli.Context) error {
	deps, err := build(c.Context, config.Load(), true)
	if err != nil {
		return err
	}
	defer deps.Close()

	run, err := deps.runner.RunLoad(c.Context, c.String("run-id"))
	if err != nil {
		return err
	}
	printRun(run)
	return nil
}

func printRun(run *pipeline.Run) {
	fmt.Printf("run %s: %s (%d files, %d statements)\n", run.ID, run.Status, len(run.Files), run.Statements)
}
