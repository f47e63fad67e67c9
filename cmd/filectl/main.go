package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/app"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/config"
	"github.com/andresuchdata/bizdir-admin/backend-go/pkg/logger"
)

type appKey struct{}

// initApp loads configuration and wires the services for commands that need them.
func initApp(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Setup(c.String("log-level"), cfg.Log.Format)

	a, err := app.New(c.Context, cfg, app.Options{SkipDrive: true})
	if err != nil {
		return err
	}
	c.Context = context.WithValue(c.Context, appKey{}, a)
	return nil
}

func closeApp(c *cli.Context) error {
	if a, ok := c.Context.Value(appKey{}).(*app.App); ok && a != nil {
		a.Close()
	}
	return nil
}

func appFrom(c *cli.Context) *app.App {
	return c.Context.Value(appKey{}).(*app.App)
}

func main() {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env file: %v\n", err)
	}

	cliApp := &cli.App{
		Name:  "filectl",
		Usage: "Administer uploaded files and their metadata records",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				EnvVars: []string{"FILECTL_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			{
				Name:      "upload",
				Usage:     "Upload local files and record their metadata",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "bucket",
						Usage:   "Destination bucket",
						EnvVars: []string{"STORAGE_DEFAULT_BUCKET"},
					},
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "Path prefix inside the bucket",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Maximum files uploaded at once",
						Value: 4,
					},
					&cli.BoolFlag{
						Name:  "no-record",
						Usage: "Only store the bytes, do not create metadata records",
					},
				},
				Before: initApp,
				After:  closeApp,
				Action: runUpload,
			},
			{
				Name:  "resume",
				Usage: "Re-store the bytes of a record that is uploading or failed",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Record id", Required: true},
					&cli.StringFlag{Name: "file", Usage: "Local file holding the bytes", Required: true},
				},
				Before: initApp,
				After:  closeApp,
				Action: runResume,
			},
			{
				Name:   "list",
				Usage:  "List file records",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a table"}},
				Before: initApp,
				After:  closeApp,
				Action: runList,
			},
			{
				Name:  "set-status",
				Usage: "Change the status of a record",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Record id", Required: true},
					&cli.StringFlag{Name: "status", Usage: "uploading, uploaded, failed or added", Required: true},
					&cli.Int64Flag{Name: "version", Usage: "Expected record version (0 skips the check)"},
				},
				Before: initApp,
				After:  closeApp,
				Action: runSetStatus,
			},
			{
				Name:  "delete",
				Usage: "Delete a record",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Record id", Required: true},
					&cli.Int64Flag{Name: "version", Usage: "Expected record version (0 skips the check)"},
				},
				Before: initApp,
				After:  closeApp,
				Action: runDelete,
			},
			{
				Name:  "get-object",
				Usage: "Download an object from the store",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "bucket", Usage: "Bucket", EnvVars: []string{"STORAGE_DEFAULT_BUCKET"}},
					&cli.StringFlag{Name: "path", Usage: "Object path", Required: true},
					&cli.StringFlag{Name: "out", Usage: "Output file (default stdout)"},
				},
				Before: initApp,
				After:  closeApp,
				Action: runGetObject,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("filectl failed")
		os.Exit(1)
	}
}
