package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"sightline/internal/events"
	"sightline/internal/logging"
	"sightline/internal/process"
	"sightline/internal/services"
)

var (
	ErrAlreadyRunning = errors.New("batch already running")
	ErrNoJobs         = errors.New("no queued jobs")
	ErrStopped        = errors.New("batch was stopped; reset it before starting again")
	ErrRunning        = errors.New("batch is running")
	ErrUnknownJob     = errors.New("unknown job")
)

// Recorder persists run history. Implementations must be safe for use from
// multiple workers.
type Recorder interface {
	RecordRunStart(ctx context.Context, summary Summary) error
	RecordJob(ctx context.Context, runID string, job Job) error
	RecordRunEnd(ctx context.Context, summary Summary) error
}

// Options configures a Batch.
type Options struct {
	// Tool is the executable invoked per file.
	Tool      string
	Operation Operation
	OutputDir string
	// ExtraArgs is appended to every invocation, split on whitespace.
	ExtraArgs string
	// Workers bounds concurrent jobs. Zero means one.
	Workers int
	// GracePeriod is how long a stopped tool may take to exit.
	GracePeriod time.Duration
	// DrainTimeout bounds how long output is read after the tool exited.
	DrainTimeout time.Duration
	Events       *events.Channel
	Logger       *slog.Logger
	Launcher     process.Launcher
	Recorder     Recorder
}

// Batch coordinates tool runs over an ordered set of files.
type Batch struct {
	opts     Options
	logger   *slog.Logger
	launcher process.Launcher

	mu       sync.Mutex
	jobs     []*job
	index    map[string]*job
	inFlight map[string]struct{}
	next     int
	running  bool
	runID    string
	started  time.Time
	finished time.Time
	done     chan struct{}

	stopRequested atomic.Bool
	stopOnce      *sync.Once
	stopCh        chan struct{}
}

// New constructs an idle batch.
func New(opts Options) *Batch {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = process.DefaultGracePeriod
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = process.DefaultDrainTimeout
	}
	logger := logging.NewComponentLogger(opts.Logger, "batch")
	launcher := opts.Launcher
	if launcher == nil {
		launcher = process.NewSupervisor(opts.Logger)
	}
	return &Batch{
		opts:     opts,
		logger:   logger,
		launcher: launcher,
		index:    make(map[string]*job),
		inFlight: make(map[string]struct{}),
		stopOnce: &sync.Once{},
		stopCh:   make(chan struct{}),
	}
}

// Operation returns the configured operation.
func (b *Batch) Operation() Operation { return b.opts.Operation }

// Add appends paths as queued jobs. Paths already present are ignored.
func (b *Batch) Add(paths ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return ErrRunning
	}
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = filepath.Clean(p)
		if _, ok := b.index[p]; ok {
			continue
		}
		j := newJob(p, OutputPath(p, b.opts.OutputDir, b.opts.Operation))
		b.jobs = append(b.jobs, j)
		b.index[p] = j
	}
	return nil
}

// Remove drops a job from an idle batch.
func (b *Batch) Remove(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return ErrRunning
	}
	path = filepath.Clean(path)
	j, ok := b.index[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, path)
	}
	delete(b.index, path)
	for i, candidate := range b.jobs {
		if candidate == j {
			b.jobs = append(b.jobs[:i], b.jobs[i+1:]...)
			break
		}
	}
	return nil
}

// Start launches the workers and returns immediately. It fails with
// ErrAlreadyRunning while a run is active, ErrStopped once the batch has
// been stopped, and ErrNoJobs when nothing is queued. Cancelling ctx has the
// same effect as Stop.
func (b *Batch) Start(ctx context.Context) error {
	if strings.TrimSpace(b.opts.Tool) == "" {
		return services.Wrap(services.ErrConfiguration, "batch", "start", "tool executable not configured", nil)
	}

	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrAlreadyRunning
	}
	if b.stopRequested.Load() {
		b.mu.Unlock()
		return ErrStopped
	}
	queued := 0
	for _, j := range b.jobs {
		if j.Status == StatusQueued {
			queued++
		}
	}
	if queued == 0 {
		b.mu.Unlock()
		return ErrNoJobs
	}

	b.running = true
	b.runID = uuid.NewString()
	b.next = 0
	b.started = time.Now().UTC()
	b.finished = time.Time{}
	b.done = make(chan struct{})
	done := b.done
	workers := min(b.opts.Workers, queued)
	summary := b.summaryLocked()
	b.mu.Unlock()

	runCtx := services.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(runCtx, b.logger)
	logger.Info("batch started",
		logging.String("operation", b.opts.Operation.Name),
		logging.String("tool", b.opts.Tool),
		logging.Int("files", queued),
		logging.Int("workers", workers),
	)
	b.record(runCtx, func(ctx context.Context, r Recorder) error { return r.RecordRunStart(ctx, summary) })

	var wg sync.WaitGroup
	for slot := 1; slot <= workers; slot++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			b.work(services.WithWorker(runCtx, slot))
		}(slot)
	}

	go func() {
		select {
		case <-ctx.Done():
			b.Stop()
		case <-done:
		}
	}()

	go func() {
		wg.Wait()
		b.finish(runCtx, logger)
		close(done)
	}()
	return nil
}

func (b *Batch) finish(ctx context.Context, logger *slog.Logger) {
	b.mu.Lock()
	b.running = false
	b.finished = time.Now().UTC()
	summary := b.summaryLocked()
	b.mu.Unlock()

	b.publish(events.Event{Kind: events.KindBatchDone, Message: summary.String()})
	b.record(ctx, func(ctx context.Context, r Recorder) error { return r.RecordRunEnd(ctx, summary) })
	logger.Info("batch finished",
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Bool("stopped", summary.Stopped),
		logging.Duration("duration", summary.Duration()),
	)
	if dropped := b.opts.Events.Dropped(); dropped > 0 {
		logging.WarnWithContext(logger, "progress events dropped", "events_dropped",
			logging.Uint64("dropped", dropped),
			logging.String(logging.FieldErrorHint, "raise batch.event_buffer or lower batch.poll_interval_ms"),
			logging.String(logging.FieldImpact, "some progress updates were not displayed"),
		)
	}
}

// Stop requests cooperative cancellation. The flag never resets except via
// Reset; calling Stop more than once has no further effect.
func (b *Batch) Stop() {
	b.mu.Lock()
	once, ch := b.stopOnce, b.stopCh
	b.mu.Unlock()
	once.Do(func() {
		b.stopRequested.Store(true)
		close(ch)
		b.logger.Info("stop requested")
	})
}

// StopRequested reports whether Stop has been called since the last Reset.
func (b *Batch) StopRequested() bool {
	return b.stopRequested.Load()
}

// Wait blocks until the current run finishes. It returns immediately when
// no run has been started.
func (b *Batch) Wait() {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Running reports whether workers are active.
func (b *Batch) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// RunID returns the identifier of the current or most recent run.
func (b *Batch) RunID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runID
}

// Jobs returns a snapshot of every job in order.
func (b *Batch) Jobs() []Job {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Job, len(b.jobs))
	for i, j := range b.jobs {
		out[i] = j.Job
	}
	return out
}

// Job returns a snapshot of the job for path.
func (b *Batch) Job(path string) (Job, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.index[filepath.Clean(path)]
	if !ok {
		return Job{}, false
	}
	return j.Job, true
}

// InFlight returns the paths currently being processed.
func (b *Batch) InFlight() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.inFlight))
	for _, j := range b.jobs {
		if _, ok := b.inFlight[j.Path]; ok {
			out = append(out, j.Path)
		}
	}
	return out
}

// Reset returns every job to queued and clears the stop flag so the batch
// can run again. It fails with ErrRunning while workers are active.
func (b *Batch) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return ErrRunning
	}
	for _, j := range b.jobs {
		j.reset()
	}
	b.next = 0
	b.runID = ""
	b.started = time.Time{}
	b.finished = time.Time{}
	b.done = nil
	b.stopRequested.Store(false)
	b.stopOnce = &sync.Once{}
	b.stopCh = make(chan struct{})
	return nil
}

// Summary aggregates the batch state.
func (b *Batch) Summary() Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.summaryLocked()
}

func (b *Batch) summaryLocked() Summary {
	s := Summary{
		RunID:      b.runID,
		Operation:  b.opts.Operation.Name,
		Tool:       b.opts.Tool,
		OutputDir:  b.opts.OutputDir,
		Total:      len(b.jobs),
		Stopped:    b.stopRequested.Load(),
		StartedAt:  b.started,
		FinishedAt: b.finished,
	}
	for _, j := range b.jobs {
		switch j.Status {
		case StatusQueued:
			s.Queued++
		case StatusProcessing:
			s.Processing++
		case StatusSuccess:
			s.Succeeded++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

func (b *Batch) publish(evt events.Event) {
	if b.opts.Events == nil {
		return
	}
	if !b.opts.Events.Publish(evt) {
		b.logger.Debug("event dropped",
			logging.String(logging.FieldEventType, string(evt.Kind)),
			logging.String(logging.FieldJobPath, evt.Path),
		)
	}
}

func (b *Batch) record(ctx context.Context, fn func(context.Context, Recorder) error) {
	if b.opts.Recorder == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx), b.opts.Recorder); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, b.logger), "run history write failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "this run may be missing from history"),
		)
	}
}

// Summary is an aggregate view of a batch run.
type Summary struct {
	RunID      string
	Operation  string
	Tool       string
	OutputDir  string
	Total      int
	Queued     int
	Processing int
	Succeeded  int
	Failed     int
	Stopped    bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration reports the wall-clock run time, or zero while running.
func (s Summary) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s Summary) String() string {
	noun := "files"
	if s.Total == 1 {
		noun = "file"
	}
	out := fmt.Sprintf("%d %s: %d succeeded, %d failed", s.Total, noun, s.Succeeded, s.Failed)
	if s.Stopped {
		out += " (stopped)"
	}
	return out
}
