package service

import (
	"context"
	"fmt"
	"media-library/constant"
	"os/exec"
	"strconv"
	"strings"
)

// Prober reports the resolution and duration of a video file.
type Prober interface {
	Probe(ctx context.Context, path string) (constant.Quality, int, error)
}

// FFProbe shells out to ffprobe, the same toolchain the transcoding worker
// uses on its side of the queue.
type FFProbe struct{}

func (FFProbe) Probe(ctx context.Context, path string) (constant.Quality, int, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=height",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1",
		path,
	).Output()
	if err != nil {
		return constant.QualityUnknown, 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	height := 0
	duration := 0.0
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if value, ok := strings.CutPrefix(line, "height="); ok {
			if parsed, err := strconv.Atoi(value); err == nil {
				height = parsed
			}
		}
		if value, ok := strings.CutPrefix(line, "duration="); ok {
			if parsed, err := strconv.ParseFloat(value, 64); err == nil {
				duration = parsed
			}
		}
	}

	return constant.QualityForHeight(height), int(duration), nil
}
