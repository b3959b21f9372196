package batch_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sightline/internal/batch"
	"sightline/internal/services"
)

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		op    batch.Operation
		want  string
	}{
		{"deface video", "/videos/clip.mp4", batch.Deface, "/out/clip_blurred.mp4"},
		{"deface image keeps extension", "/pics/face.JPG", batch.Deface, "/out/face_blurred.JPG"},
		{"deface multiple dots", "/v/my.holiday.mov", batch.Deface, "/out/my.holiday_blurred.mov"},
		{"transcribe replaces extension", "/audio/talk.wav", batch.Transcribe, "/out/talk_transcription.txt"},
		{"transcribe video", "/v/interview.mkv", batch.Transcribe, "/out/interview_transcription.txt"},
		{"no extension", "/v/raw", batch.Deface, "/out/raw_blurred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := batch.OutputPath(tt.input, "/out", tt.op); got != filepath.FromSlash(tt.want) {
				t.Errorf("OutputPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLookupOperation(t *testing.T) {
	if op, ok := batch.LookupOperation(" Deface "); !ok || op.Name != "deface" {
		t.Fatalf("LookupOperation(deface) = %+v, %v", op, ok)
	}
	if op, ok := batch.LookupOperation("transcribe"); !ok || op.Extension != ".txt" {
		t.Fatalf("LookupOperation(transcribe) = %+v, %v", op, ok)
	}
	if _, ok := batch.LookupOperation("upscale"); ok {
		t.Fatal("expected unknown operation")
	}
}

func TestFilterSupported(t *testing.T) {
	paths := []string{"a.MP4", "b.txt", "c.png", "d.wav", "e"}
	supported, skipped := batch.Deface.FilterSupported(paths)
	if len(supported) != 2 || supported[0] != "a.MP4" || supported[1] != "c.png" {
		t.Fatalf("deface supported = %v", supported)
	}
	if len(skipped) != 3 {
		t.Fatalf("deface skipped = %v", skipped)
	}

	supported, _ = batch.Transcribe.FilterSupported(paths)
	if len(supported) != 2 || supported[0] != "a.MP4" || supported[1] != "d.wav" {
		t.Fatalf("transcribe supported = %v", supported)
	}

	anything := batch.Operation{Name: "copy", Suffix: "_copy"}
	if !anything.Supports("notes.xyz") {
		t.Fatal("operation without an extension list should accept everything")
	}
}

func TestValidatePaths(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(input, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")
	if err := os.Mkdir(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.mp4")

	tests := []struct {
		name   string
		input  string
		output string
		want   string
	}{
		{"valid", input, outDir, ""},
		{"no input", "", outDir, "Please select an input file."},
		{"no output", input, " ", "Please select an output directory."},
		{"missing input", missing, outDir, "Input file does not exist: " + missing},
		{"input is dir", outDir, outDir, "Input path is not a file: " + outDir},
		{"missing output", input, filepath.Join(dir, "nope"), "Output directory does not exist: " + filepath.Join(dir, "nope")},
		{"output is file", input, input, "Output path is not a directory: " + input},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := batch.ValidatePaths(tt.input, tt.output)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.want {
				t.Fatalf("ValidatePaths() = %v, want %q", err, tt.want)
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation marker on %v", err)
			}
		})
	}
}
