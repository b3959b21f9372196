package batch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sightline/internal/events"
	"sightline/internal/logging"
	"sightline/internal/process"
	"sightline/internal/services"
)

func (b *Batch) work(ctx context.Context) {
	for {
		j := b.claim(ctx)
		if j == nil {
			return
		}
		b.runJob(services.WithJobPath(ctx, j.Path), j)
	}
}

// claim hands out the next queued job in insertion order. Once a stop has
// been requested it fails every job that was never attempted and returns nil.
func (b *Batch) claim(ctx context.Context) *job {
	b.mu.Lock()
	if b.stopRequested.Load() {
		stopped := b.failRemainingLocked()
		b.mu.Unlock()
		if len(stopped) > 0 {
			logging.WithContext(ctx, b.logger).Info("skipping remaining files after stop", logging.Int("files", len(stopped)))
		}
		for _, path := range stopped {
			b.publish(events.Event{Kind: events.KindError, Path: path, Message: StopReason})
			b.publish(events.Event{Kind: events.KindFileUpdate, Path: path})
		}
		return nil
	}
	for b.next < len(b.jobs) {
		j := b.jobs[b.next]
		b.next++
		if j.Status != StatusQueued {
			continue
		}
		j.begin(time.Now().UTC())
		b.inFlight[j.Path] = struct{}{}
		b.mu.Unlock()
		b.publish(events.Event{Kind: events.KindFileUpdate, Path: j.Path})
		return j
	}
	b.mu.Unlock()
	return nil
}

func (b *Batch) failRemainingLocked() []string {
	var paths []string
	now := time.Now().UTC()
	for ; b.next < len(b.jobs); b.next++ {
		j := b.jobs[b.next]
		if j.Status != StatusQueued {
			continue
		}
		j.fail(StopReason, now)
		paths = append(paths, j.Path)
	}
	return paths
}

func (b *Batch) runJob(ctx context.Context, j *job) {
	logger := logging.WithContext(ctx, b.logger)
	args := process.BuildArgs(j.Path, j.OutputPath, b.opts.ExtraArgs)
	logger.Info("processing file", logging.String("output", j.OutputPath))

	proc, err := b.launcher.Launch(ctx, b.opts.Tool, args)
	if err != nil {
		b.failToStart(ctx, logger, j, err)
		return
	}
	defer proc.Release()
	logger.Debug("tool started", logging.Int(logging.FieldPID, proc.PID()))

	watchDone := make(chan struct{})
	watcherExited := make(chan struct{})
	var stopped bool
	go func() {
		defer close(watcherExited)
		select {
		case <-b.stopSignal():
		case <-watchDone:
			return
		}
		stopped = true
		logger.Info("terminating tool after stop request", logging.Duration("grace", b.opts.GracePeriod))
		if err := proc.Terminate(b.opts.GracePeriod); err != nil && !errors.Is(err, process.ErrTerminationTimeout) {
			logging.WarnWithContext(logger, "terminate failed", "terminate_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "the tool is killed on release instead"),
			)
		}
	}()

	group := process.Drain(ctx, proc, b.sinkFor(logger, j), b.logger)
	code, waitErr := proc.Wait()
	close(watchDone)
	<-watcherExited
	// A background child of the tool can hold the pipes open indefinitely.
	// Release kills it and closes our ends so the readers finish.
	if !group.WaitTimeout(b.opts.DrainTimeout) {
		logging.WarnWithContext(logger, "tool exited with its output still open", "output_held_open",
			logging.Duration("waited", b.opts.DrainTimeout),
			logging.String(logging.FieldErrorHint, "the tool left a background process attached to stdout or stderr"),
			logging.String(logging.FieldImpact, "leftover processes are killed and the job finishes"),
		)
	}
	proc.Release()
	group.Wait()

	now := time.Now().UTC()
	b.mu.Lock()
	delete(b.inFlight, j.Path)
	j.ExitCode = code
	switch {
	case waitErr == nil && code == 0:
		j.succeed(now)
	case stopped:
		j.fail(StopReason, now)
	case waitErr != nil:
		j.fail("Failed to wait for process: "+waitErr.Error(), now)
	default:
		j.fail(j.exitDiagnostic(code), now)
	}
	snapshot := j.Job
	b.mu.Unlock()

	if snapshot.Status == StatusFailed && snapshot.ErrorLog == StopReason {
		b.publish(events.Event{Kind: events.KindError, Path: j.Path, Message: StopReason})
	}
	b.publish(events.Event{Kind: events.KindFileUpdate, Path: j.Path})
	b.publish(events.Event{Kind: events.KindDone, Path: j.Path, ExitCode: code})
	b.logOutcome(logger, snapshot, group.Errs())
	b.record(ctx, func(ctx context.Context, r Recorder) error { return r.RecordJob(ctx, b.RunID(), snapshot) })
}

func (b *Batch) stopSignal() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopCh
}

func (b *Batch) failToStart(ctx context.Context, logger *slog.Logger, j *job, err error) {
	marker := services.ErrExternalTool
	var spawnErr *process.SpawnError
	if errors.As(err, &spawnErr) && spawnErr.NotFound() {
		marker = services.ErrNotFound
	}
	wrapped := services.Wrap(marker, "batch", "start tool", b.opts.Tool, err)
	message := "Failed to start: " + err.Error()

	now := time.Now().UTC()
	b.mu.Lock()
	delete(b.inFlight, j.Path)
	j.ExitCode = -1
	j.fail(message, now)
	snapshot := j.Job
	b.mu.Unlock()

	logging.ErrorWithContext(logger, "tool failed to start", "spawn_failed",
		logging.Error(wrapped),
		logging.String(logging.FieldErrorHint, services.Hint(wrapped)),
	)
	b.publish(events.Event{Kind: events.KindError, Path: j.Path, Message: message})
	b.publish(events.Event{Kind: events.KindFileUpdate, Path: j.Path})
	b.record(ctx, func(ctx context.Context, r Recorder) error { return r.RecordJob(ctx, b.RunID(), snapshot) })
}

// sinkFor publishes every drained line and feeds it through the job parser.
// Both streams are parsed because progress bars usually go to stderr.
func (b *Batch) sinkFor(logger *slog.Logger, j *job) process.Sink {
	return process.SinkFunc(func(stream process.Stream, line string) {
		kind := events.KindStdout
		if stream == process.StreamStderr {
			kind = events.KindStderr
		}
		b.publish(events.Event{Kind: kind, Path: j.Path, Line: line})

		if b.stopRequested.Load() {
			return
		}

		b.mu.Lock()
		sample, ok := j.observe(line, stream == process.StreamStderr)
		shouldLog := ok && j.sampler.ShouldLog(j.Path, sample.Percentage)
		b.mu.Unlock()
		if !ok {
			return
		}
		b.publish(events.Event{Kind: events.KindFileUpdate, Path: j.Path})
		if shouldLog {
			logger.Debug("progress",
				logging.String("summary", sample.Summary()),
				logging.String("stats", sample.Stats()),
			)
		}
	})
}

func (b *Batch) logOutcome(logger *slog.Logger, job Job, readErrs []error) {
	for _, err := range readErrs {
		logger.Debug("stream read error recorded", logging.Error(err))
	}
	attrs := []logging.Attr{
		logging.Int(logging.FieldExitCode, job.ExitCode),
		logging.Duration("duration", job.Duration()),
	}
	switch {
	case job.Status == StatusSuccess:
		logger.Info("file processed", logging.Args(append(attrs, logging.String("output", job.OutputPath))...)...)
	case job.ErrorLog == StopReason:
		logger.Info("file stopped", logging.Args(attrs...)...)
	default:
		logging.WarnWithContext(logger, "file failed", "job_failed",
			append(attrs,
				logging.String("error_log", job.ErrorLog),
				logging.String(logging.FieldErrorHint, services.Hint(services.ErrExternalTool)),
			)...,
		)
	}
}
