package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"sightline/internal/batch"
	"sightline/internal/config"
	"sightline/internal/deps"
	"sightline/internal/events"
	"sightline/internal/history"
	"sightline/internal/logging"
	"sightline/internal/process"
	"sightline/internal/services"
)

type runOptions struct {
	outputDir string
	workers   int
	extraArgs string
	dryRun    bool
	noHistory bool
}

func newOperationCommand(ctx *commandContext, name string) *cobra.Command {
	op, ok := batch.LookupOperation(name)
	if !ok {
		panic("unknown operation " + name)
	}
	var opts runOptions

	short := "Blur faces in images and videos"
	if op.Name == batch.Transcribe.Name {
		short = "Transcribe audio and video files to text"
	}

	cmd := &cobra.Command{
		Use:   op.Name + " <file|dir>...",
		Short: short,
		Long: short + ".\n\nDirectories are expanded to the supported files they contain. " +
			"Press Ctrl+C to stop the batch; the running tool is given the configured grace period to exit.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, ctx, op, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "Output directory (defaults to paths.output_dir)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Files processed concurrently (defaults to batch.workers)")
	cmd.Flags().StringVar(&opts.extraArgs, "extra-args", "", "Additional arguments appended to every tool invocation")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the commands that would run without starting them")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Do not record this run in the history database")
	return cmd
}

func runOperation(cmd *cobra.Command, ctx *commandContext, op batch.Operation, args []string, opts runOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	colorize := shouldColorize(out)

	tool, extra := toolFor(cfg, op)
	if trimmed := strings.TrimSpace(opts.extraArgs); trimmed != "" {
		extra = strings.TrimSpace(extra + " " + trimmed)
	}

	outputDir := cfg.Paths.OutputDir
	if strings.TrimSpace(opts.outputDir) != "" {
		outputDir, err = config.ExpandPath(opts.outputDir)
		if err != nil {
			return fmt.Errorf("resolve output directory: %w", err)
		}
	}

	files, err := collectInputs(args)
	if err != nil {
		return err
	}
	valid := selectInputs(errOut, op, files, outputDir, colorize)
	if len(valid) == 0 {
		return services.Wrap(services.ErrValidation, "cli", op.Name, "no files to process", nil)
	}

	if opts.dryRun {
		for _, path := range valid {
			argv := process.BuildArgs(path, batch.OutputPath(path, outputDir, op), extra)
			fmt.Fprintln(out, strings.Join(append([]string{tool}, argv...), " "))
		}
		return nil
	}

	if status := deps.Check(op.Name, tool); !status.Available {
		return services.Wrap(services.ErrNotFound, "cli", op.Name, status.Detail, nil)
	}

	logger, err := ctx.logger(errOut)
	if err != nil {
		return err
	}

	lock, err := history.AcquireLock(cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	var recorder batch.Recorder
	if !opts.noHistory {
		store, err := history.Open(cfg)
		if err != nil {
			logging.WarnWithContext(logger, "history unavailable", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "this run is not recorded"),
			)
			fmt.Fprintln(errOut, renderStatusLine("History", statusWarn, err.Error(), colorize))
		} else {
			defer store.Close()
			recorder = store
		}
	}

	workers := cfg.Batch.Workers
	if opts.workers > 0 {
		workers = opts.workers
	}

	supervisor := process.NewSupervisor(logger)
	supervisor.Env = []string{"PYTHONUNBUFFERED=1"}

	ch := events.NewChannel(cfg.Batch.EventBuffer, cfg.PublishTimeout())
	b := batch.New(batch.Options{
		Tool:        tool,
		Operation:   op,
		OutputDir:   outputDir,
		ExtraArgs:   extra,
		Workers:     workers,
		GracePeriod: cfg.GracePeriod(),
		Events:      ch,
		Logger:      logger,
		Launcher:    supervisor,
		Recorder:    recorder,
	})
	if err := b.Add(valid...); err != nil {
		return err
	}

	total := len(b.Jobs())
	for _, line := range renderSectionHeader(fmt.Sprintf("%s: %d %s", operationTitle(op.Name), total, plural(total, "file", "files")), colorize) {
		fmt.Fprintln(out, line)
	}

	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = context.Background()
	}
	if err := b.Start(runCtx); err != nil {
		return err
	}

	renderer := newProgressRenderer(out, b, colorize, ctx.isVerbose(), cfg.GracePeriod())
	consumerCtx, cancel := context.WithCancel(context.WithoutCancel(runCtx))
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		events.Consumer{Interval: cfg.PollInterval(), Handle: renderer.handle}.Run(consumerCtx, ch)
	}()

	b.Wait()
	cancel()
	<-consumerDone
	ch.Close()

	summary := b.Summary()
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSummaryTable(b.Jobs(), colorize))
	switch {
	case summary.Stopped:
		fmt.Fprintln(errOut, renderStatusLine("Batch", statusWarn, summary.String(), colorize))
		return context.Canceled
	case summary.Failed > 0:
		fmt.Fprintln(out, renderStatusLine("Batch", statusError, summary.String(), colorize))
		return fmt.Errorf("%d of %d %s failed; run `sightline history %s` for details",
			summary.Failed, summary.Total, plural(summary.Total, "file", "files"), shortID(summary.RunID))
	default:
		fmt.Fprintln(out, renderStatusLine("Batch", statusOK, summary.String(), colorize))
		return nil
	}
}

func toolFor(cfg *config.Config, op batch.Operation) (string, string) {
	if op.Name == batch.Transcribe.Name {
		return cfg.Transcribe.Binary, cfg.TranscribeExtraArgs()
	}
	return cfg.Deface.Binary, cfg.DefaceExtraArgs()
}

// collectInputs expands directories into the regular files they contain,
// sorted by name. Files are passed through untouched and validated later.
func collectInputs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		path, err := config.ExpandPath(strings.TrimSpace(arg))
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", arg, err)
		}
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			files = append(files, path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", path, err)
		}
		var found []string
		for _, entry := range entries {
			if entry.Type().IsRegular() {
				found = append(found, filepath.Join(path, entry.Name()))
			}
		}
		slices.Sort(found)
		files = append(files, found...)
	}
	return files, nil
}

// selectInputs drops unsupported and invalid inputs, reporting each on w.
func selectInputs(w io.Writer, op batch.Operation, files []string, outputDir string, colorize bool) []string {
	supported, skipped := op.FilterSupported(files)
	for _, path := range skipped {
		fmt.Fprintln(w, renderStatusLine(filepath.Base(path), statusWarn, "unsupported file type, skipped", colorize))
	}
	valid := make([]string, 0, len(supported))
	for _, path := range supported {
		if err := batch.ValidatePaths(path, outputDir); err != nil {
			fmt.Fprintln(w, renderStatusLine(filepath.Base(path), statusWarn, err.Error(), colorize))
			continue
		}
		valid = append(valid, path)
	}
	return valid
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
