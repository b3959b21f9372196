package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"sightline/internal/batch"
	"sightline/internal/events"
	"sightline/internal/logging"
)

// progressRenderer turns polled events into terminal lines. It runs on the
// consumer goroutine only.
type progressRenderer struct {
	out      io.Writer
	b        *batch.Batch
	colorize bool
	verbose  bool
	grace    time.Duration

	position    map[string]int
	announced   map[string]bool
	samplers    map[string]*logging.ProgressSampler
	reported    map[string]bool
	stopNoticed bool
}

func newProgressRenderer(out io.Writer, b *batch.Batch, colorize, verbose bool, grace time.Duration) *progressRenderer {
	r := &progressRenderer{
		out:       out,
		b:         b,
		colorize:  colorize,
		verbose:   verbose,
		grace:     grace,
		position:  make(map[string]int),
		announced: make(map[string]bool),
		samplers:  make(map[string]*logging.ProgressSampler),
		reported:  make(map[string]bool),
	}
	for i, job := range b.Jobs() {
		r.position[job.Path] = i + 1
	}
	return r
}

func (r *progressRenderer) handle(evts []events.Event) {
	if !r.stopNoticed && r.b.StopRequested() {
		r.stopNoticed = true
		fmt.Fprintln(r.out, renderStatusLine("Batch", statusWarn,
			fmt.Sprintf("stopping; waiting up to %s for the running tool to exit", r.grace), r.colorize))
	}
	for _, evt := range evts {
		r.render(evt)
	}
}

func (r *progressRenderer) render(evt events.Event) {
	switch evt.Kind {
	case events.KindStdout, events.KindStderr:
		if r.verbose {
			fmt.Fprintf(r.out, "%s    %s | %s\n", statusIndent, filepath.Base(evt.Path), evt.Line)
		}
	case events.KindFileUpdate:
		r.renderUpdate(evt.Path)
	case events.KindDone:
		job, ok := r.b.Job(evt.Path)
		if !ok || r.reported[evt.Path] {
			return
		}
		message := "-> " + job.OutputPath
		if job.Status != batch.StatusSuccess {
			message = firstLine(job.ErrorLog)
		}
		fmt.Fprintln(r.out, renderStatusLine(r.label(evt.Path), jobStatusKind(job.Status), message, r.colorize))
	case events.KindError:
		r.reported[evt.Path] = true
		fmt.Fprintln(r.out, renderStatusLine(r.label(evt.Path), statusError, evt.Message, r.colorize))
	}
}

func (r *progressRenderer) renderUpdate(path string) {
	job, ok := r.b.Job(path)
	if !ok || job.Status != batch.StatusProcessing {
		return
	}
	if !r.announced[path] {
		r.announced[path] = true
		fmt.Fprintln(r.out, renderStatusLine(r.label(path), statusInfo, "processing", r.colorize))
	}
	if !job.Sample.Valid {
		return
	}
	sampler, ok := r.samplers[path]
	if !ok {
		sampler = logging.NewProgressSampler(0)
		r.samplers[path] = sampler
	}
	if !sampler.ShouldLog(path, job.Sample.Percentage) {
		return
	}
	fmt.Fprintf(r.out, "%s%-*s %s  %s\n", statusIndent, statusLabelWidth, "", job.Sample.Summary(), job.Sample.Stats())
}

// label renders "[2/5] name.mp4".
func (r *progressRenderer) label(path string) string {
	name := filepath.Base(path)
	if pos, ok := r.position[path]; ok {
		return fmt.Sprintf("[%d/%d] %s", pos, len(r.position), name)
	}
	return name
}

func renderSummaryTable(jobs []batch.Job, colorize bool) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		detail := job.OutputPath
		if job.Status == batch.StatusFailed {
			detail = firstLine(job.ErrorLog)
		}
		rows = append(rows, []string{
			filepath.Base(job.Path),
			renderJobStatus(job.Status, colorize),
			fmt.Sprintf("%.0f%%", job.Progress*100),
			formatDuration(job.Duration()),
			detail,
		})
	}
	return tableView{
		title:   "Summary",
		columns: []column{col("File"), col("Status"), numCol("Progress"), numCol("Duration"), col("Output / Error")},
		rows:    rows,
	}.render()
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
