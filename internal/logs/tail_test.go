package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sightline/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sightline.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestLast(t *testing.T) {
	tests := []struct {
		name    string
		content string
		n       int
		want    []string
		offset  int64
	}{
		{name: "fewer than n", content: "a\nb\n", n: 5, want: []string{"a", "b"}, offset: 4},
		{name: "ring wraps", content: "a\nb\nc\nd\n", n: 2, want: []string{"c", "d"}, offset: 8},
		{name: "partial tail skipped", content: "a\nb\npart", n: 3, want: []string{"a", "b"}, offset: 4},
		{name: "crlf trimmed", content: "a\r\nb\r\n", n: 2, want: []string{"a", "b"}, offset: 6},
		{name: "zero lines", content: "a\nb\n", n: 0, want: nil, offset: 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeLog(t, tc.content)
			got, offset, err := logs.Last(path, tc.n)
			if err != nil {
				t.Fatalf("Last: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("lines = %#v, want %#v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("lines = %#v, want %#v", got, tc.want)
				}
			}
			if offset != tc.offset {
				t.Fatalf("offset = %d, want %d", offset, tc.offset)
			}
		})
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "absent.log"), 10)
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("Last(missing) = %v, %d, %v", lines, offset, err)
	}
}

func TestLastRejectsDirectory(t *testing.T) {
	if _, _, err := logs.Last(t.TempDir(), 1); err == nil {
		t.Fatal("expected error for directory")
	}
}

func TestReadFromResumesAndHandlesRotation(t *testing.T) {
	path := writeLog(t, "one\n")
	_, offset, err := logs.Last(path, 1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	appendLog(t, path, "two\nthr")
	lines, offset, err := logs.ReadFrom(path, offset)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(lines) != 1 || lines[0] != "two" {
		t.Fatalf("lines = %#v", lines)
	}

	appendLog(t, path, "ee\n")
	lines, offset, err = logs.ReadFrom(path, offset)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(lines) != 1 || lines[0] != "three" {
		t.Fatalf("partial line not completed: %#v", lines)
	}

	if err := os.WriteFile(path, []byte("fresh\n"), 0o644); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	lines, _, err = logs.ReadFrom(path, offset)
	if err != nil {
		t.Fatalf("ReadFrom after rotation: %v", err)
	}
	if len(lines) != 1 || lines[0] != "fresh" {
		t.Fatalf("rotation lines = %#v", lines)
	}
}

func TestFollowDeliversAppendedLines(t *testing.T) {
	path := writeLog(t, "start\n")
	_, offset, err := logs.Last(path, 1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen []string
	)
	got := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 10*time.Millisecond, func(line string) {
			mu.Lock()
			seen = append(seen, line)
			mu.Unlock()
			if line == "later" {
				close(got)
			}
		})
	}()

	appendLog(t, path, "later\n")
	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("follow never delivered appended line")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow returned %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 {
		t.Fatalf("unexpected lines %#v", seen)
	}
}
