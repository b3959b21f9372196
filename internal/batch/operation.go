package batch

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"sightline/internal/services"
)

// Operation describes what a tool does to a file and how its output is named.
type Operation struct {
	Name string
	// Suffix is appended to the input stem, e.g. "_blurred".
	Suffix string
	// Extension replaces the input extension when set, e.g. ".txt".
	Extension string
	// Extensions lists the lowercase input extensions the tool accepts.
	Extensions []string
}

var (
	// Deface anonymizes faces in images and videos.
	Deface = Operation{
		Name:       "deface",
		Suffix:     "_blurred",
		Extensions: []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".mp4", ".avi", ".mov", ".mkv"},
	}
	// Transcribe produces a text transcript of audio and video files.
	Transcribe = Operation{
		Name:      "transcribe",
		Suffix:    "_transcription",
		Extension: ".txt",
		Extensions: []string{
			".mp3", ".wav", ".flac", ".aac", ".ogg", ".m4a",
			".mp4", ".avi", ".mov", ".mkv", ".webm", ".m4p", ".m4v",
		},
	}
)

// LookupOperation resolves an operation by name.
func LookupOperation(name string) (Operation, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Deface.Name:
		return Deface, true
	case Transcribe.Name:
		return Transcribe, true
	default:
		return Operation{}, false
	}
}

// Supports reports whether path has an extension the operation accepts.
// An operation without an extension list accepts everything.
func (op Operation) Supports(path string) bool {
	if len(op.Extensions) == 0 {
		return true
	}
	return slices.Contains(op.Extensions, strings.ToLower(filepath.Ext(path)))
}

// FilterSupported splits paths into those the operation accepts and those it
// does not, preserving order.
func (op Operation) FilterSupported(paths []string) (supported, skipped []string) {
	for _, p := range paths {
		if op.Supports(p) {
			supported = append(supported, p)
		} else {
			skipped = append(skipped, p)
		}
	}
	return supported, skipped
}

// OutputPath derives the output file for input inside outDir:
// <stem><suffix><ext>, where ext is the operation's override or the input's.
func OutputPath(input, outDir string, op Operation) string {
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if op.Extension != "" {
		ext = op.Extension
	}
	return filepath.Join(outDir, stem+op.Suffix+ext)
}

// PathError is a user-facing path validation failure. It matches
// services.ErrValidation under errors.Is.
type PathError struct {
	Message string
}

func (e *PathError) Error() string { return e.Message }

func (e *PathError) Is(target error) bool { return target == services.ErrValidation }

// ValidatePaths checks that input names an existing regular file and
// outputDir an existing directory.
func ValidatePaths(input, outputDir string) error {
	if strings.TrimSpace(input) == "" {
		return &PathError{Message: "Please select an input file."}
	}
	if strings.TrimSpace(outputDir) == "" {
		return &PathError{Message: "Please select an output directory."}
	}

	info, err := os.Stat(input)
	if err != nil {
		return &PathError{Message: "Input file does not exist: " + input}
	}
	if !info.Mode().IsRegular() {
		return &PathError{Message: "Input path is not a file: " + input}
	}

	info, err = os.Stat(outputDir)
	if err != nil {
		return &PathError{Message: "Output directory does not exist: " + outputDir}
	}
	if !info.IsDir() {
		return &PathError{Message: "Output path is not a directory: " + outputDir}
	}
	return nil
}
