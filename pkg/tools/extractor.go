package tools

import (
	"fmt"
	"path/filepath"
)

// FramePattern is the file name pattern extraction writes frames under
const FramePattern = "frame_%05d.png"

// FFmpegExtractor turns a source video into a frame image sequence
type FFmpegExtractor struct {
	binary string
	// availableOverride allows tests to override the PATH probe
	availableOverride func() bool
}

// NewFFmpegExtractor creates the extraction tool wrapper
func NewFFmpegExtractor(binary string) *FFmpegExtractor {
	return &FFmpegExtractor{binary: binary}
}

// Name returns the tool name
func (e *FFmpegExtractor) Name() string {
	return "ffmpeg"
}

// Available checks for the ffmpeg binary
func (e *FFmpegExtractor) Available() bool {
	if e.availableOverride != nil {
		return e.availableOverride()
	}
	return binaryOnPath(e.binary)
}

// BuildCommand generates the frame extraction command. One image per
// 1/fps seconds of video, numbered from zero.
func (e *FFmpegExtractor) BuildCommand(inv Invocation) (string, []string, error) {
	if inv.InputPath == "" {
		return "", nil, fmt.Errorf("extractor: no input video")
	}

	fps := inv.Config.FrameRate
	if fps <= 0 {
		fps = 10
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-i", inv.InputPath,
		"-vf", fmt.Sprintf("fps=%d", fps),
		"-start_number", "0",
		"-y",
		filepath.Join(inv.OutputDir, FramePattern),
	}
	return e.binary, args, nil
}
