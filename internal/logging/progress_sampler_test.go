package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 10},
		{"default bucket size for negative", -1, 10},
		{"custom bucket size", 25, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog("a.mp4", 50) {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)
	steps := []struct {
		key     string
		percent float64
		want    bool
	}{
		{"a.mp4", 0, true},
		{"a.mp4", 4, false},
		{"a.mp4", 10, true},
		{"a.mp4", 19, false},
		{"a.mp4", 55, true},
		{"a.mp4", 40, false},
		{"a.mp4", 100, true},
		{"a.mp4", 120, false},
		{"b.mp4", 0, true},
		{"b.mp4", -1, false},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.key, step.percent); got != step.want {
			t.Fatalf("step %d (%s %.0f): ShouldLog = %v, want %v", i, step.key, step.percent, got, step.want)
		}
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog("a.mp4", 50)
	s.Reset()
	if !s.ShouldLog("a.mp4", 50) {
		t.Fatal("expected reset sampler to emit again")
	}
}
