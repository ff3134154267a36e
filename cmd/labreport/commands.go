package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/uservlrz/client/internal/batch"
	"github.com/uservlrz/client/internal/config"
	"github.com/uservlrz/client/internal/logger"
	"github.com/uservlrz/client/internal/operations"
	"github.com/uservlrz/client/internal/storage"
	"github.com/uservlrz/client/models"
)

// errBatchFailed signals a total failure that was already reported
var errBatchFailed = errors.New("batch failed")

type commonFlags struct {
	configPath string
	logLevel   string
	workers    int
	quiet      bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to a JSON configuration file")
	fs.StringVar(&c.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	fs.IntVar(&c.workers, "workers", 0, "files processed concurrently (default from config)")
	fs.BoolVar(&c.quiet, "q", false, "do not print progress")
}

// setup loads the configuration and opens the history store. The store is
// nil when no database path is configured.
func (c *commonFlags) setup(stderr io.Writer) (*config.Config, storage.Store, logger.Logger, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if c.workers > 0 {
		cfg.Workers = c.workers
	}

	log, err := logger.NewLogger(logger.LogConfig{Level: c.logLevel, Writer: stderr})
	if err != nil {
		return nil, nil, nil, err
	}

	var store storage.Store
	if cfg.DatabasePath != "" {
		s, err := storage.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open history: %w", err)
		}
		store = s
	}
	return cfg, store, log, nil
}

func (c *commonFlags) progress(stderr io.Writer, total int) func(batch.Event) {
	if c.quiet {
		return nil
	}
	return func(e batch.Event) {
		fmt.Fprintf(stderr, "[%d/%d] %s: %s %d%%\n", e.Index+1, total, e.FileName, e.Status, e.Percent)
	}
}

func runUpload(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("upload needs at least one file")
	}

	cfg, store, log, err := common.setup(stderr)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	svc := operations.NewService(cfg, store, log)
	report, err := svc.UploadFiles(ctx, parseSources(fs.Args()), common.progress(stderr, fs.NArg()))
	if report == nil {
		return err
	}

	printReport(stdout, report)
	for _, ack := range report.Uploads {
		fmt.Fprintf(stdout, "\n== %s", ack.FileName)
		if ack.PatientName != "" {
			fmt.Fprintf(stdout, " (%s)", ack.PatientName)
		}
		fmt.Fprintln(stdout)
		for _, s := range ack.Summaries {
			fmt.Fprintln(stdout, s.Content)
		}
	}
	return finish(report, err)
}

func runSplit(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	parts := fs.Int("parts", 2, "number of parts per file")
	outDir := fs.String("out", ".", "directory the parts are written to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("split needs at least one file")
	}

	cfg, store, log, err := common.setup(stderr)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	svc := operations.NewService(cfg, store, log)
	result, err := svc.SplitFiles(ctx, parseSources(fs.Args()), *parts, *outDir, common.progress(stderr, fs.NArg()))
	if result == nil {
		return err
	}

	printReport(stdout, result.Report)
	for _, path := range result.Written {
		fmt.Fprintf(stdout, "wrote %s\n", path)
	}
	return finish(result.Report, err)
}

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	id := fs.String("id", "", "show the batch with this id")
	remove := fs.Bool("delete", false, "delete the batch given with -id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, store, _, err := common.setup(stderr)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("no history database configured (set database_path or LABREPORT_DB_PATH)")
	}
	defer store.Close()

	switch {
	case *remove && *id == "":
		return errors.New("-delete needs -id")
	case *remove:
		if err := store.DeleteReport(ctx, *id); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "deleted %s\n", *id)
		return nil
	case *id != "":
		report, err := store.GetReport(ctx, *id)
		if err != nil {
			return err
		}
		printReport(stdout, report)
		return nil
	}

	batches, err := store.ListReports(ctx)
	if err != nil {
		return err
	}
	for _, b := range batches {
		fmt.Fprintf(stdout, "%s  %s  %-6s  %-15s  %d ok, %d failed\n",
			b.BatchID, b.StartedAt.Local().Format("2006-01-02 15:04"), b.Mode, b.Status, b.SucceededCount, b.FailedCount)
	}
	return nil
}

// parseSources maps command line arguments to input sources
func parseSources(args []string) []models.SourceInfo {
	infos := make([]models.SourceInfo, len(args))
	for i, arg := range args {
		switch {
		case strings.HasPrefix(arg, "http://"), strings.HasPrefix(arg, "https://"):
			infos[i] = models.SourceInfo{URL: arg}
		case strings.HasPrefix(arg, "zotero:"):
			infos[i] = models.SourceInfo{ZoteroID: strings.TrimPrefix(arg, "zotero:")}
		default:
			infos[i] = models.SourceInfo{Path: arg}
		}
	}
	return infos
}

func printReport(w io.Writer, report *models.BatchReport) {
	fmt.Fprintf(w, "batch %s: %s\n", report.ID, report.Status)
	fmt.Fprintln(w, report.Message)

	failed := make([]string, 0, len(report.Errors))
	for name := range report.Errors {
		failed = append(failed, name)
	}
	sort.Strings(failed)
	for _, name := range failed {
		advice := batch.HintText(report.Errors[name])
		if len(advice.Tips) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s: %s\n", name, advice.Title)
		for _, tip := range advice.Tips {
			fmt.Fprintf(w, "  - %s\n", tip)
		}
	}
}

// finish turns the batch outcome into the command result
func finish(report *models.BatchReport, err error) error {
	if err != nil {
		return err
	}
	if report.Status == models.StatusTotalFailure {
		return errBatchFailed
	}
	return nil
}
