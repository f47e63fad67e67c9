package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/app"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/config"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/service"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/workflow"
	"github.com/andresuchdata/bizdir-admin/backend-go/pkg/logger"
)

func migrateCommand() *cli.Command {
	dbURL := &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string (defaults to DB_* settings)",
		EnvVars: []string{"DATABASE_URL"},
	}
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply or roll back the file_records schema",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Flags: []cli.Flag{dbURL},
				Action: func(c *cli.Context) error {
					return postgres.Migrate(migrateURL(c))
				},
			},
			{
				Name:  "down",
				Usage: "Roll back every migration",
				Flags: []cli.Flag{dbURL},
				Action: func(c *cli.Context) error {
					return postgres.MigrateDown(migrateURL(c))
				},
			},
		},
	}
}

// migrateURL avoids config.Load so migrations run without object store settings.
func migrateURL(c *cli.Context) string {
	db := config.DatabaseConfig{
		URL:      c.String("db-url"),
		Host:     envOr("DB_HOST", "localhost"),
		Port:     envOr("DB_PORT", "5432"),
		User:     envOr("DB_USER", "postgres"),
		Password: envOr("DB_PASSWORD", "postgres"),
		DBName:   envOr("DB_NAME", "bizdir"),
		SSLMode:  envOr("DB_SSLMODE", "disable"),
	}
	return db.MigrateURL()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type uploadOutcome struct {
	File   string `json:"file"`
	Step   string `json:"step,omitempty"`
	ID     string `json:"id,omitempty"`
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Error  string `json:"error,omitempty"`
}

func runUpload(c *cli.Context) error {
	files := c.Args().Slice()
	if len(files) == 0 {
		return fmt.Errorf("at least one file is required")
	}
	bucket := c.String("bucket")
	if bucket == "" {
		return fmt.Errorf("--bucket (or STORAGE_DEFAULT_BUCKET) is required")
	}

	a := appFrom(c)
	outcomes := make([]uploadOutcome, len(files))
	var failed int
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(c.Context)
	g.SetLimit(max(c.Int("concurrency"), 1))

	for i, file := range files {
		g.Go(func() error {
			out := uploadOne(ctx, a, file, bucket, c.String("prefix"), !c.Bool("no-record"))
			outcomes[i] = out
			if out.Error != "" {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			// one failed file does not cancel the others
			return nil
		})
	}
	_ = g.Wait()

	if err := printJSON(outcomes); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(files))
	}
	return nil
}

func uploadOne(ctx context.Context, a *app.App, file, bucket, prefix string, record bool) uploadOutcome {
	out := uploadOutcome{File: file, Bucket: bucket, Path: path.Join(prefix, filepath.Base(file))}

	data, err := os.ReadFile(file)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	if !record {
		res, err := a.Uploads.Upload(ctx, service.UploadRequest{
			Filename: filepath.Base(file),
			Data:     data,
			Bucket:   bucket,
			Path:     out.Path,
		})
		if err != nil {
			out.Error = err.Error()
			return out
		}
		out.Path, out.Size = res.Path, res.Size
		return out
	}

	res, err := a.Runner.Run(ctx, workflow.Input{
		Filename:   filepath.Base(file),
		Data:       data,
		Bucket:     bucket,
		Path:       out.Path,
		UploadedAt: time.Now().UTC(),
	})
	if res != nil {
		out.Step = string(res.Step)
		if res.Record != nil {
			out.ID = res.Record.ID
		}
		if res.Upload != nil {
			out.Path, out.Size = res.Upload.Path, res.Upload.Size
		}
	}
	if err != nil {
		out.Error = err.Error()
		logger.Log.Warn().Err(err).Str("file", file).Str("step", out.Step).Msg("upload stopped")
	}
	return out
}

func runResume(c *cli.Context) error {
	data, err := os.ReadFile(c.String("file"))
	if err != nil {
		return err
	}
	res, err := appFrom(c).Runner.Resume(c.Context, c.String("id"), data, "")
	if err != nil {
		if res != nil {
			return fmt.Errorf("resume stopped at %s: %w", res.Step, err)
		}
		return err
	}
	return printJSON(res.Record)
}

func runList(c *cli.Context) error {
	views, err := appFrom(c).Query.List(c.Context)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return printJSON(views)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSIZE\tSTATUS\tUPLOADED AT\tLOCATION\tVERSION")
	for _, v := range views {
		bucket, p := v.Location()
		location := "-"
		if bucket != "" || p != "" {
			location = bucket + "/" + p
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			v.ID, v.Name, v.SizeLabel, v.StatusLabel, v.UploadedAt.Format(time.RFC3339), location, v.Version)
	}
	return w.Flush()
}

func runSetStatus(c *cli.Context) error {
	rec, err := appFrom(c).Files.UpdateStatus(c.Context, c.String("id"), c.String("status"), versionFlag(c))
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func runDelete(c *cli.Context) error {
	res, err := appFrom(c).Files.Delete(c.Context, c.String("id"), versionFlag(c))
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"id":            res.Record.ID,
		"objectDeleted": res.ObjectDeleted,
	})
}

func runGetObject(c *cli.Context) error {
	bucket := c.String("bucket")
	if bucket == "" {
		return domain.NewValidationError("bucket", "is required")
	}
	data, err := appFrom(c).Store.GetObject(c.Context, bucket, c.String("path"))
	if err != nil {
		return err
	}
	if out := c.String("out"); out != "" {
		return os.WriteFile(out, data, 0o644)
	}
	_, err = os.Stdout.Write(data)
	return err
}

func versionFlag(c *cli.Context) *int64 {
	if v := c.Int64("version"); v > 0 {
		return &v
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
