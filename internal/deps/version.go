package deps

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
)

// ToolVersion reports the first line of a tool's version output for status
// surfaces, trimmed of ffmpeg's copyright banner. An empty string means the
// probe failed; availability is CheckBinaries' job.
func ToolVersion(ctx context.Context, command string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return ""
	}
	out, err := exec.CommandContext(ctx, command, versionFlag(command)).Output()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(out), "\n")
	line = strings.TrimSpace(line)
	if before, _, found := strings.Cut(line, " Copyright"); found {
		line = strings.TrimSpace(before)
	}
	return line
}

// versionFlag picks the flag convention the tool follows. The ffmpeg family
// uses a single dash; yt-dlp follows GNU style.
func versionFlag(command string) string {
	base := strings.TrimSuffix(filepath.Base(command), ".exe")
	if base == "yt-dlp" {
		return "--version"
	}
	return "-version"
}
