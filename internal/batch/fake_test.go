package batch_test

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"sightline/internal/batch"
	"sightline/internal/process"
)

// script describes how a fake tool behaves for one input file.
type script struct {
	stdout []string
	stderr []string
	code   int
	block  bool
	// linger keeps the output open after exit, like a tool that leaves a
	// background child behind.
	linger   bool
	spawnErr error
}

type fakeLauncher struct {
	mu        sync.Mutex
	scripts   map[string]script
	launched  []string
	procs     []*fakeProcess
	active    int
	maxActive int
	started   chan string
}

func newFakeLauncher(scripts map[string]script) *fakeLauncher {
	return &fakeLauncher{scripts: scripts, started: make(chan string, 64)}
}

func (l *fakeLauncher) Launch(_ context.Context, _ string, args []string) (process.Process, error) {
	input := filepath.Base(args[0])
	l.mu.Lock()
	sc := l.scripts[input]
	l.launched = append(l.launched, input)
	if sc.spawnErr != nil {
		l.mu.Unlock()
		return nil, sc.spawnErr
	}
	l.active++
	l.maxActive = max(l.maxActive, l.active)
	p := newFakeProcess(sc, func() {
		l.mu.Lock()
		l.active--
		l.mu.Unlock()
	})
	l.procs = append(l.procs, p)
	l.mu.Unlock()

	l.started <- input
	go p.run()
	return p, nil
}

func (l *fakeLauncher) Launched() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.launched...)
}

func (l *fakeLauncher) MaxActive() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxActive
}

func (l *fakeLauncher) Processes() []*fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeProcess(nil), l.procs...)
}

type fakeProcess struct {
	sc      script
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	term     chan struct{}
	termOnce sync.Once
	done     chan struct{}
	code     int
	onExit   func()

	terminated  atomic.Bool
	releaseOnce sync.Once
	released    atomic.Int32
}

func newFakeProcess(sc script, onExit func()) *fakeProcess {
	p := &fakeProcess{sc: sc, term: make(chan struct{}), done: make(chan struct{}), onExit: onExit}
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()
	return p
}

func (p *fakeProcess) run() {
	var wg sync.WaitGroup
	write := func(w *io.PipeWriter, lines []string) {
		defer wg.Done()
		for _, line := range lines {
			_, _ = io.WriteString(w, line+"\n")
		}
	}
	wg.Add(2)
	go write(p.stdoutW, p.sc.stdout)
	go write(p.stderrW, p.sc.stderr)
	wg.Wait()

	code := p.sc.code
	if p.sc.block {
		<-p.term
		code = -1
	}
	if !p.sc.linger {
		_ = p.stdoutW.Close()
		_ = p.stderrW.Close()
	}
	p.code = code
	p.onExit()
	close(p.done)
}

func (p *fakeProcess) PID() int          { return 4242 }
func (p *fakeProcess) Stdout() io.Reader { return p.stdoutR }
func (p *fakeProcess) Stderr() io.Reader { return p.stderrR }

func (p *fakeProcess) Wait() (int, error) {
	<-p.done
	return p.code, nil
}

func (p *fakeProcess) Terminate(time.Duration) error {
	select {
	case <-p.done:
		return nil
	default:
	}
	p.terminated.Store(true)
	p.termOnce.Do(func() { close(p.term) })
	<-p.done
	return nil
}

func (p *fakeProcess) Release() {
	p.releaseOnce.Do(func() {
		p.released.Add(1)
		p.termOnce.Do(func() { close(p.term) })
		_ = p.stdoutR.Close()
		_ = p.stderrR.Close()
	})
}

type fakeRecorder struct {
	mu     sync.Mutex
	starts []batch.Summary
	jobs   []batch.Job
	ends   []batch.Summary
}

func (r *fakeRecorder) RecordRunStart(_ context.Context, s batch.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, s)
	return nil
}

func (r *fakeRecorder) RecordJob(_ context.Context, _ string, j batch.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, j)
	return nil
}

func (r *fakeRecorder) RecordRunEnd(_ context.Context, s batch.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ends = append(r.ends, s)
	return nil
}
