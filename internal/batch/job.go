package batch

import (
	"strconv"
	"strings"
	"time"

	"sightline/internal/logging"
	"sightline/internal/progress"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is final for the current run.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// StopReason is recorded on every job failed by a user stop request.
const StopReason = "Processing stopped by user"

// stderrTailLines bounds the stderr context kept for failure diagnostics.
const stderrTailLines = 20

// Job is a snapshot of one file's processing state.
type Job struct {
	Path       string
	OutputPath string
	Status     Status
	// Progress is the completed fraction in [0, 1].
	Progress   float64
	ErrorLog   string
	ETA        string
	Elapsed    string
	Rate       string
	Sample     progress.Sample
	ExitCode   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration reports how long the job ran, or zero if it never started.
func (j Job) Duration() time.Duration {
	if j.StartedAt.IsZero() || j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

type job struct {
	Job
	parser     *progress.Parser
	sampler    *logging.ProgressSampler
	stderrTail []string
}

func newJob(path, outputPath string) *job {
	j := &job{parser: progress.NewParser(), sampler: logging.NewProgressSampler(0)}
	j.Path = path
	j.OutputPath = outputPath
	j.reset()
	return j
}

func (j *job) reset() {
	path, output := j.Path, j.OutputPath
	j.Job = Job{Path: path, OutputPath: output, Status: StatusQueued}
	j.parser.Reset()
	j.sampler.Reset()
	j.stderrTail = nil
}

func (j *job) begin(now time.Time) {
	j.Status = StatusProcessing
	j.Progress = 0
	j.ErrorLog = ""
	j.ETA, j.Elapsed, j.Rate = "", "", ""
	j.ExitCode = 0
	j.StartedAt = now
	j.FinishedAt = time.Time{}
	j.parser.Reset()
	j.sampler.Reset()
	j.stderrTail = nil
}

// observe feeds one output line through the parser. It reports whether the
// line carried a valid progress reading.
func (j *job) observe(line string, stderr bool) (progress.Sample, bool) {
	if stderr {
		j.stderrTail = append(j.stderrTail, line)
		if len(j.stderrTail) > stderrTailLines {
			j.stderrTail = j.stderrTail[len(j.stderrTail)-stderrTailLines:]
		}
	}
	sample, ok := j.parser.Parse(line)
	if !ok {
		return sample, false
	}
	j.Sample = sample
	j.Progress = sample.Fraction()
	j.ETA = sample.FormatETA()
	j.Elapsed = sample.FormatElapsed()
	j.Rate = sample.FormatRate()
	return sample, true
}

func (j *job) fail(message string, now time.Time) {
	j.Status = StatusFailed
	j.Progress = 0
	j.appendError(message)
	j.FinishedAt = now
}

func (j *job) succeed(now time.Time) {
	j.Status = StatusSuccess
	j.Progress = 1
	j.FinishedAt = now
}

func (j *job) appendError(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	if j.ErrorLog == "" {
		j.ErrorLog = message
		return
	}
	j.ErrorLog += "\n" + message
}

// exitDiagnostic describes a non-zero exit with the last stderr lines that
// did not look like progress output.
func (j *job) exitDiagnostic(code int) string {
	var b strings.Builder
	b.WriteString("Process exited with code ")
	b.WriteString(strconv.Itoa(code))
	var tail []string
	for _, line := range j.stderrTail {
		if _, ok := progressLine(line); ok {
			continue
		}
		tail = append(tail, strings.TrimSpace(line))
	}
	if len(tail) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(tail, "\n"))
	}
	return b.String()
}

func progressLine(line string) (progress.Sample, bool) {
	return progress.NewParser().Parse(line)
}
