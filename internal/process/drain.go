package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"sightline/internal/logging"
)

// DefaultDrainTimeout is how long readers may keep going after the tool has
// exited. Output still open after that belongs to a leftover child.
const DefaultDrainTimeout = time.Second

// MaxLineBytes bounds a single output line. Longer lines end the scan for
// that stream; the remainder is discarded so the tool never blocks on a
// full pipe.
const MaxLineBytes = 1 << 20

// Stream tags which output a line came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Sink receives drained lines. Line is called from both reader goroutines
// concurrently.
type Sink interface {
	Line(stream Stream, line string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(stream Stream, line string)

func (f SinkFunc) Line(stream Stream, line string) { f(stream, line) }

// StreamReadError reports a failure reading one output stream. It is logged
// and surfaced through DrainGroup.Errs but never fails a job by itself.
type StreamReadError struct {
	Stream Stream
	Err    error
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Stream, e.Err)
}

func (e *StreamReadError) Unwrap() error { return e.Err }

// DrainGroup tracks the two reader goroutines started by Drain.
type DrainGroup struct {
	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

// Drain starts one reader per output stream of p. Each reader splits on
// "\n" or "\r" so carriage-return progress refreshes arrive as separate
// lines, skips blank lines, and forwards the rest to sink.
func Drain(ctx context.Context, p Process, sink Sink, logger *slog.Logger) *DrainGroup {
	logger = logging.WithContext(ctx, logger)
	g := &DrainGroup{}
	g.wg.Add(2)
	go g.read(StreamStdout, p.Stdout(), sink, logger)
	go g.read(StreamStderr, p.Stderr(), sink, logger)
	return g
}

func (g *DrainGroup) read(stream Stream, r io.Reader, sink Sink, logger *slog.Logger) {
	defer g.wg.Done()
	if r == nil {
		return
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	scanner.Split(scanLines)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if sink != nil {
			sink.Line(stream, line)
		}
	}
	err := scanner.Err()
	if closedByRelease(err) {
		logger.Debug("output stream closed while reading", logging.String(logging.FieldStream, string(stream)))
		return
	}
	if err != nil {
		readErr := &StreamReadError{Stream: stream, Err: err}
		g.mu.Lock()
		g.errs = append(g.errs, readErr)
		g.mu.Unlock()
		logging.WarnWithContext(logger, "output stream read failed", "stream_read_error",
			logging.String(logging.FieldStream, string(stream)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "remaining output from this stream is discarded"),
		)
		_, _ = io.Copy(io.Discard, r)
	}
}

// Wait blocks until both readers have exited.
func (g *DrainGroup) Wait() {
	g.wg.Wait()
}

// WaitTimeout waits for both readers for at most d and reports whether they
// finished.
func (g *DrainGroup) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Errs returns the read errors collected so far.
func (g *DrainGroup) Errs() []error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]error(nil), g.errs...)
}

// closedByRelease reports whether a read failed because the stream was
// closed under the reader, which is how Release unblocks a drain.
func closedByRelease(err error) bool {
	return errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

// scanLines is bufio.ScanLines extended to treat a lone '\r' as a line
// terminator. "\r\n" counts as one terminator.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if !atEOF {
			return 0, nil, nil
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
