package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/pharmstock/backend-go/internal/config"
	"github.com/andresuchdata/pharmstock/backend-go/pkg/logger"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logger.Log.Debug().Err(err).Msg("no .env file loaded")
	}
	if err := newApp().Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("pharmstock failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "pharmstock",
		Usage: "Import pharmacy ERP exports and compute purchase signals",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "console or json",
				Value:   "console",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Configure(c.String("log-level"), c.String("log-format"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "classify",
				Usage:     "Print the detected layout of each file",
				ArgsUsage: "FILES...",
				Action:    runClassify,
			},
			{
				Name:      "analyze",
				Usage:     "Import files, recompute and export the workbooks",
				ArgsUsage: "FILES...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "purchase",
						Usage: "Write the purchase workbook to this path",
					},
					&cli.StringFlag{
						Name:  "scope",
						Usage: "Purchase scope: rupture, urgent or all",
						Value: "all",
					},
					&cli.StringFlag{
						Name:  "report",
						Usage: "Write the full report workbook to this path",
					},
					&cli.StringFlag{
						Name:  "corrections",
						Usage: "JSON file of manual corrections to load first",
					},
				},
				Action: runAnalyze,
			},
			{
				Name:  "migrate",
				Usage: "Create the Postgres tables",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "db-url",
						Usage:   "Database connection string",
						EnvVars: []string{"DATABASE_URL"},
					},
				},
				Action: runMigrate,
			},
			{
				Name:  "sync",
				Usage: "Pull the object storage and Drive inbox, recompute and publish reports",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "scope",
						Usage: "Purchase scope: rupture, urgent or all",
						Value: "all",
					},
				},
				Action: runSync,
			},
		},
	}
}

func loadConfig() *config.Config {
	return config.Load()
}
