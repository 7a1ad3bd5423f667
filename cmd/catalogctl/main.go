package main

import (
	"context"
	"fmt"
	"os"

	"github.com/annazecevic/catalog-service/config"
	"github.com/annazecevic/catalog-service/logger"
	"github.com/urfave/cli/v3"
)

func main() {
	cfg := config.LoadConfig()

	logger.Init(logger.Config{
		ServiceName: "catalogctl",
		Environment: cfg.Environment,
		LogFilePath: cfg.LogFilePath,
		HMACKey:     cfg.LogHMACKey,
		MaxSizeMB:   cfg.LogMaxSizeMB,
		MaxBackups:  cfg.LogMaxBackups,
		MaxAgeDays:  cfg.LogMaxAgeDays,
	})

	app := &cli.Command{
		Name:  "catalogctl",
		Usage: "Bulk operations against the song catalog",
		Commands: []*cli.Command{
			importCommand(cfg),
			verifyLogCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "catalogctl: %v\n", err)
		os.Exit(1)
	}
}

func importCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import a JSON batch of song descriptors",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the batch file (array, or object with a \"songs\" array)",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Validate the batch without importing it",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runImport(ctx, cfg, cmd.String("file"), cmd.Bool("dry-run"), os.Stdout)
		},
	}
}

func verifyLogCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify-log",
		Usage: "Check the HMAC of every entry in a log file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Log file to verify",
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			f, err := os.Open(cmd.String("file"))
			if err != nil {
				return fmt.Errorf("failed to open log: %w", err)
			}
			defer f.Close()

			report, err := verifyEntries(f, logger.GetLogger())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%d entries, %d invalid\n", report.Total, len(report.InvalidLines))
			for _, line := range report.InvalidLines {
				fmt.Fprintf(os.Stdout, "  line %d: signature mismatch\n", line)
			}
			if len(report.InvalidLines) > 0 {
				return fmt.Errorf("log contains %d tampered entries", len(report.InvalidLines))
			}
			return nil
		},
	}
}
