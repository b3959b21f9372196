package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// CheckFFmpegForTool reports the FFmpeg binary a Python tool will execute.
//
// Both deface and whisper decode media through ffmpeg. When the tool lives
// in a virtualenv an ffmpeg next to it wins; otherwise "ffmpeg" is resolved
// from PATH.
func CheckFFmpegForTool(toolCommand string) Status {
	result := Status{
		Name:        "ffmpeg",
		Description: "Media decoding for deface and whisper",
	}

	toolBinary := strings.TrimSpace(toolCommand)
	if toolBinary != "" {
		if resolved, err := exec.LookPath(toolBinary); err == nil {
			candidate := siblingFFmpeg(resolved)
			if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
				result.Command = candidate
				result.Resolved = candidate
				result.Available = true
				return result
			}
		}
	}

	const ffmpegName = "ffmpeg"
	if ffmpegPath, err := exec.LookPath(ffmpegName); err == nil {
		result.Command = ffmpegName
		result.Resolved = ffmpegPath
		result.Available = true
		return result
	}

	result.Command = ffmpegName
	result.Detail = fmt.Sprintf("binary %q not found", ffmpegName)
	return result
}

func siblingFFmpeg(toolPath string) string {
	name := "ffmpeg"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(toolPath), name)
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
