// Package deps reports whether the external tools a batch needs are
// installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"sightline/internal/config"
)

// Requirement defines an external tool Sightline invokes.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	// Resolved is the absolute path LookPath found.
	Resolved string
	Detail   string
}

// Requirements lists the tools configured in cfg. Each operation only needs
// its own tool, so both are optional on their own.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "deface",
			Command:     cfg.Deface.Binary,
			Description: "Face anonymization for images and videos",
			Optional:    true,
		},
		{
			Name:        "whisper",
			Command:     cfg.Transcribe.Binary,
			Description: "Speech transcription for audio and video",
			Optional:    true,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Resolved = resolved
		results = append(results, status)
	}
	return results
}

// Check resolves a single tool, as done before a batch starts.
func Check(name, command string) Status {
	return CheckBinaries([]Requirement{{Name: name, Command: command}})[0]
}
