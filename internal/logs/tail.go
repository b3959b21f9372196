package logs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// maxLineBytes bounds a single log line.
const maxLineBytes = 1 << 20

// DefaultFollowInterval is the polling cadence used by Follow when none is given.
const DefaultFollowInterval = 250 * time.Millisecond

// Last returns up to n trailing lines of path and the offset just past the
// last complete line. A missing file yields no lines and offset zero. n <= 0
// returns no lines, only the offset.
func Last(path string, n int) ([]string, int64, error) {
	file, err := open(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	if n < 0 {
		n = 0
	}
	return scanComplete(file, 0, n)
}

// ReadFrom returns the complete lines written after offset and the offset to
// resume from. A trailing partial line is left for the next call.
func ReadFrom(path string, offset int64) ([]string, int64, error) {
	file, err := open(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}
	return scanComplete(file, offset, -1)
}

// Follow reports lines appended after offset to fn until ctx ends. It returns
// nil when ctx is cancelled.
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, fn func(string)) error {
	if interval <= 0 {
		interval = DefaultFollowInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		lines, next, err := ReadFrom(path, offset)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fn(line)
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func open(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

// scanComplete reads newline-terminated lines from r, which is positioned at
// start. keep < 0 retains every line, keep > 0 retains the last keep lines in
// a ring, keep == 0 retains none. The returned offset stops after the last
// newline seen.
func scanComplete(r io.Reader, start int64, keep int) ([]string, int64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	scanner.Split(scanTerminated)

	var (
		all   []string
		ring  []string
		count int
	)
	if keep > 0 {
		ring = make([]string, keep)
	}
	offset := start
	for scanner.Scan() {
		raw := scanner.Bytes()
		offset += int64(len(raw)) + 1
		line := string(bytes.TrimSuffix(raw, []byte("\r")))
		switch {
		case keep < 0:
			all = append(all, line)
		case keep > 0:
			ring[count%keep] = line
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, start, fmt.Errorf("read log file: %w", err)
	}

	if keep <= 0 {
		return all, offset, nil
	}
	if count <= keep {
		return ring[:count], offset, nil
	}
	lines := make([]string, 0, keep)
	for i := 0; i < keep; i++ {
		lines = append(lines, ring[(count+i)%keep])
	}
	return lines, offset, nil
}

// scanTerminated yields only lines that end in '\n'; an unterminated tail
// at EOF is not consumed.
func scanTerminated(data []byte, _ bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i], nil
	}
	return 0, nil, nil
}
