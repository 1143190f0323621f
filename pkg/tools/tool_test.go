package tools

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmuozan/vid2cloud/pkg/models"
)

func TestExtractorBuildCommand(t *testing.T) {
	e := NewFFmpegExtractor("ffmpeg")

	tests := []struct {
		name      string
		frameRate int
		wantVF    string
	}{
		{"explicit framerate", 24, "fps=24"},
		{"default framerate", 0, "fps=10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin, args, err := e.BuildCommand(Invocation{
				InputPath: "/videos/scan.mp4",
				OutputDir: "/work/frames",
				Config:    models.StageConfig{FrameRate: tt.frameRate},
			})
			if err != nil {
				t.Fatalf("BuildCommand() error = %v", err)
			}
			if bin != "ffmpeg" {
				t.Errorf("binary = %s, want ffmpeg", bin)
			}
			joined := strings.Join(args, " ")
			if !strings.Contains(joined, tt.wantVF) {
				t.Errorf("args %q missing %q", joined, tt.wantVF)
			}
			last := args[len(args)-1]
			if filepath.Dir(last) != "/work/frames" || !strings.Contains(last, "frame_") {
				t.Errorf("unexpected output pattern %q", last)
			}
		})
	}
}

func TestExtractorRequiresInput(t *testing.T) {
	e := NewFFmpegExtractor("ffmpeg")
	if _, _, err := e.BuildCommand(Invocation{OutputDir: "/work/frames"}); err == nil {
		t.Error("expected error for missing input")
	}
}

func TestSegmenterBuildCommand(t *testing.T) {
	s := NewSegmenter("sam2-video")

	tests := []struct {
		name     string
		cfg      models.StageConfig
		contains []string
		excludes []string
	}{
		{
			name:     "defaults",
			cfg:      models.StageConfig{},
			contains: []string{"--device cpu", "--model-size large", "--keyframe-interval 1", "--non-interactive"},
			excludes: []string{"--offload-to-cpu"},
		},
		{
			name:     "cuda with degrade mode",
			cfg:      models.StageConfig{Device: models.DeviceCUDA, ModelSize: models.ModelSizeSmall, KeyframeInterval: 5, RefinementSteps: 3, DegradeToCPU: true},
			contains: []string{"--device cuda", "--model-size small", "--keyframe-interval 5", "--refinement-steps 3", "--offload-to-cpu"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, args, err := s.BuildCommand(Invocation{
				InputPath: "/work/frames",
				OutputDir: "/work/segmentation",
				Config:    tt.cfg,
			})
			if err != nil {
				t.Fatalf("BuildCommand() error = %v", err)
			}
			joined := strings.Join(args, " ")
			for _, want := range tt.contains {
				if !strings.Contains(joined, want) {
					t.Errorf("args %q missing %q", joined, want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(joined, unwanted) {
					t.Errorf("args %q must not contain %q", joined, unwanted)
				}
			}
		})
	}
}

func TestMaskerBuildCommandDerivesFramesDir(t *testing.T) {
	m := NewMasker("mask-frames")
	_, args, err := m.BuildCommand(Invocation{
		InputPath: "/work/scan/segmentation/masks",
		OutputDir: "/work/scan/masked",
	})
	if err != nil {
		t.Fatalf("BuildCommand() error = %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--frames /work/scan/frames") {
		t.Errorf("frames dir not derived from layout: %q", joined)
	}
	if !strings.Contains(joined, "--masks /work/scan/segmentation/masks") {
		t.Errorf("masks dir missing: %q", joined)
	}
}

func TestReconstructorCommands(t *testing.T) {
	inv := Invocation{InputPath: "/work/scan/masked", OutputDir: "/work/scan/reconstruction"}

	native := NewColmapReconstructor("colmap")
	bin, args, err := native.BuildCommand(inv)
	if err != nil {
		t.Fatalf("colmap BuildCommand() error = %v", err)
	}
	if bin != "colmap" || args[0] != "automatic_reconstructor" {
		t.Errorf("unexpected native command: %s %v", bin, args)
	}

	embedded := NewPycolmapReconstructor("python3")
	bin, args, err = embedded.BuildCommand(inv)
	if err != nil {
		t.Fatalf("pycolmap BuildCommand() error = %v", err)
	}
	if bin != "python3" || args[0] != "-c" {
		t.Errorf("unexpected embedded command: %s %v", bin, args)
	}
	if !strings.Contains(args[1], "pycolmap") || !strings.Contains(args[1], inv.OutputDir) {
		t.Errorf("embedded snippet missing paths: %q", args[1])
	}
}

func TestRegistryForStage(t *testing.T) {
	r := NewRegistry(nil)

	tests := []struct {
		stage    string
		cfg      models.StageConfig
		wantName string
	}{
		{models.StageExtract, models.StageConfig{}, "ffmpeg"},
		{models.StageSegment, models.StageConfig{}, "sam2-video"},
		{models.StageMask, models.StageConfig{}, "mask-frames"},
		{models.StageReconstruct, models.StageConfig{}, "colmap"},
		{models.StageReconstruct, models.StageConfig{Backend: models.BackendPycolmap}, "pycolmap"},
	}

	for _, tt := range tests {
		tool := r.ForStage(tt.stage, tt.cfg)
		if tool == nil {
			t.Fatalf("ForStage(%s) returned nil", tt.stage)
		}
		if tool.Name() != tt.wantName {
			t.Errorf("ForStage(%s) = %s, want %s", tt.stage, tool.Name(), tt.wantName)
		}
	}

	if r.ForStage("bogus", models.StageConfig{}) != nil {
		t.Error("unknown stage should return nil")
	}
}

func TestRegistryOverrides(t *testing.T) {
	r := NewRegistry(Overrides{models.StageExtract: "/opt/ffmpeg/bin/ffmpeg"})
	bin, _, err := r.Extractor.BuildCommand(Invocation{InputPath: "in.mp4", OutputDir: "/out"})
	if err != nil {
		t.Fatal(err)
	}
	if bin != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("override not applied: %s", bin)
	}
}
