package progress_test

import (
	"testing"

	"sightline/internal/progress"
)

func TestParseTqdmLine(t *testing.T) {
	p := progress.NewParser()
	sample, ok := p.Parse("33%|███▎      | 415/1275 [00:13<00:27, 31.12it/s]")
	if !ok {
		t.Fatal("expected progress line to parse")
	}
	if !sample.Valid {
		t.Fatal("expected sample to be valid")
	}
	if sample.Percentage != 33.0 {
		t.Errorf("Percentage = %v, want 33", sample.Percentage)
	}
	if sample.Current != 415 || sample.Total != 1275 {
		t.Errorf("Current/Total = %d/%d, want 415/1275", sample.Current, sample.Total)
	}
	if sample.ElapsedSeconds != 13 {
		t.Errorf("ElapsedSeconds = %d, want 13", sample.ElapsedSeconds)
	}
	if sample.RemainingSeconds != 27 {
		t.Errorf("RemainingSeconds = %d, want 27", sample.RemainingSeconds)
	}
	if sample.Rate != 31.12 {
		t.Errorf("Rate = %v, want 31.12", sample.Rate)
	}
	if sample.RateUnit != "it" {
		t.Errorf("RateUnit = %q, want it", sample.RateUnit)
	}
}

func TestParseReproducesCounters(t *testing.T) {
	tests := []struct {
		line    string
		current int
		total   int
		elapsed int
		remain  int
		unit    string
	}{
		{"0%|          | 0/10 [00:00<?, ?it/s]", 0, 0, 0, 0, ""},
		{"100%|██████████| 10/10 [01:05<00:00, 9.50it/s]", 10, 10, 65, 0, "it"},
		{"frames:  45%|████▌     | 450/1000 [02:30<03:03, 3.00frame/s]", 450, 1000, 150, 183, "frame"},
		{"\r 7%|▋         | 7/100 [00:01<00:13, 6.99it/s]", 7, 100, 1, 13, "it"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			p := progress.NewParser()
			sample, ok := p.Parse(tt.line)
			if tt.unit == "" {
				if ok {
					t.Fatalf("expected no match for %q", tt.line)
				}
				return
			}
			if !ok {
				t.Fatalf("expected match for %q", tt.line)
			}
			if sample.Current != tt.current || sample.Total != tt.total {
				t.Errorf("counters = %d/%d, want %d/%d", sample.Current, sample.Total, tt.current, tt.total)
			}
			if sample.ElapsedSeconds != tt.elapsed || sample.RemainingSeconds != tt.remain {
				t.Errorf("times = %d/%d, want %d/%d", sample.ElapsedSeconds, sample.RemainingSeconds, tt.elapsed, tt.remain)
			}
			if sample.RateUnit != tt.unit {
				t.Errorf("unit = %q, want %q", sample.RateUnit, tt.unit)
			}
		})
	}
}

func TestParseMismatchKeepsLastValues(t *testing.T) {
	p := progress.NewParser()
	if _, ok := p.Parse("50%|█████     | 5/10 [00:05<00:05, 1.00it/s]"); !ok {
		t.Fatal("expected first line to parse")
	}

	sample, ok := p.Parse("Processing frame batch...")
	if ok {
		t.Fatal("expected plain output not to parse")
	}
	if sample.Valid {
		t.Fatal("expected stale sample to be invalid")
	}
	if sample.Current != 5 || sample.Total != 10 {
		t.Fatalf("expected stale counters 5/10, got %d/%d", sample.Current, sample.Total)
	}
	if got := p.Sample(); got.Current != 5 || got.Valid {
		t.Fatalf("unexpected stored sample %+v", got)
	}
}

func TestParseRejectsMalformedRate(t *testing.T) {
	p := progress.NewParser()
	if _, ok := p.Parse("50%|█████     | 5/10 [00:05<00:05, 1.0.0it/s]"); ok {
		t.Fatal("expected malformed rate to fail conversion")
	}
	if p.Sample().Valid {
		t.Fatal("expected invalid state after conversion failure")
	}
}

func TestFractionBounds(t *testing.T) {
	tests := []struct {
		name   string
		sample progress.Sample
		want   float64
	}{
		{"invalid", progress.Sample{Current: 5, Total: 10}, 0},
		{"zero total", progress.Sample{Current: 5, Total: 0, Valid: true}, 0},
		{"half", progress.Sample{Current: 5, Total: 10, Valid: true}, 0.5},
		{"over", progress.Sample{Current: 15, Total: 10, Valid: true}, 1},
		{"complete", progress.Sample{Current: 10, Total: 10, Valid: true}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.sample.Fraction()
			if got != tt.want {
				t.Errorf("Fraction() = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("Fraction() = %v out of range", got)
			}
		})
	}
}

func TestFormatETA(t *testing.T) {
	tests := []struct {
		name   string
		sample progress.Sample
		want   string
	}{
		{"invalid", progress.Sample{RemainingSeconds: 75}, "--:--"},
		{"zero", progress.Sample{RemainingSeconds: 0, Valid: true}, "--:--"},
		{"negative", progress.Sample{RemainingSeconds: -3, Valid: true}, "--:--"},
		{"minutes", progress.Sample{RemainingSeconds: 75, Valid: true}, "01:15"},
		{"just under hour", progress.Sample{RemainingSeconds: 3599, Valid: true}, "59:59"},
		{"hour", progress.Sample{RemainingSeconds: 3600, Valid: true}, "1h 0m"},
		{"hours", progress.Sample{RemainingSeconds: 7500, Valid: true}, "2h 5m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sample.FormatETA(); got != tt.want {
				t.Errorf("FormatETA() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatElapsedAndRate(t *testing.T) {
	var invalid progress.Sample
	if got := invalid.FormatElapsed(); got != "00:00" {
		t.Errorf("FormatElapsed() invalid = %q", got)
	}
	if got := invalid.FormatRate(); got != "0 it/s" {
		t.Errorf("FormatRate() invalid = %q", got)
	}

	s := progress.Sample{ElapsedSeconds: 13, Rate: 31.12, RateUnit: "it", Valid: true}
	if got := s.FormatElapsed(); got != "00:13" {
		t.Errorf("FormatElapsed() = %q, want 00:13", got)
	}
	if got := s.FormatRate(); got != "31.12 it/s" {
		t.Errorf("FormatRate() = %q, want 31.12 it/s", got)
	}

	zeroRate := progress.Sample{Rate: 0, RateUnit: "it", Valid: true}
	if got := zeroRate.FormatRate(); got != "0 it/s" {
		t.Errorf("FormatRate() zero = %q", got)
	}

	slow := progress.Sample{Rate: 2.5, RateUnit: "frame", Valid: true}
	if got := slow.FormatRate(); got != "2.50 frame/s" {
		t.Errorf("FormatRate() = %q, want 2.50 frame/s", got)
	}
}

func TestSummaryAndStats(t *testing.T) {
	p := progress.NewParser()
	sample, ok := p.Parse("33%|███▎      | 415/1275 [00:13<00:27, 31.12it/s]")
	if !ok {
		t.Fatal("expected parse")
	}
	if got := sample.Summary(); got != "33% (415/1275)" {
		t.Errorf("Summary() = %q", got)
	}
	if got := sample.Stats(); got != "ETA: 00:27 | Elapsed: 00:13 | 31.12 it/s" {
		t.Errorf("Stats() = %q", got)
	}
	if got := p.FormatETA(); got != "00:27" {
		t.Errorf("Parser.FormatETA() = %q", got)
	}
}

func TestResetClearsState(t *testing.T) {
	p := progress.NewParser()
	p.Parse("50%|█████     | 5/10 [00:05<00:05, 1.00it/s]")
	p.Reset()
	if got := p.Sample(); got != (progress.Sample{}) {
		t.Fatalf("expected zero sample after reset, got %+v", got)
	}
	if p.Fraction() != 0 {
		t.Fatal("expected zero fraction after reset")
	}
}
