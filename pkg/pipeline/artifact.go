package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmuozan/vid2cloud/pkg/logging"
	"github.com/jmuozan/vid2cloud/pkg/models"
	"github.com/jmuozan/vid2cloud/pkg/tools"
)

// placeholderName is the file name the synthesize tier writes an empty
// point cloud under
const placeholderName = "placeholder.ply"

// emptyPLY is a valid zero-element point cloud, synthesized when a
// reconstruction stage yields no output so downstream consumers still
// have a well-formed file to inspect.
const emptyPLY = `ply
format ascii 1.0
comment synthesized placeholder, no reconstruction output
element vertex 0
property float x
property float y
property float z
end_header
`

// Locator resolves the canonical output artifact of a nominally
// successful stage: explicit pointer first, directory scan second,
// synthesized placeholder last.
type Locator struct {
	log *logging.Logger
}

// NewLocator creates an artifact locator
func NewLocator(log *logging.Logger) *Locator {
	return &Locator{log: log}
}

// Resolve applies the three resolution tiers in strict order and rewrites
// the canonical alias for point-cloud artifacts. It only errors when even
// the synthesize tier cannot produce a placeholder.
func (l *Locator) Resolve(ws *Workspace, stage *Stage, attempt *models.StageAttempt) (*models.Artifact, error) {
	art := &models.Artifact{
		Kind:  stage.Kind,
		Stage: stage.Name,
	}
	if attempt != nil {
		art.AttemptID = attempt.ID
	}

	// Tier 1: explicit result pointer written by the tool
	if path, ok := l.readPointer(stage.OutputDir(ws)); ok {
		art.Path = path
		art.Provenance = models.ProvenancePointer
		l.log.Debug("Artifact resolved via result pointer", map[string]interface{}{
			"stage": stage.Name, "path": path,
		})
		return art, l.writeAlias(ws, stage, art)
	}

	// Tier 2: deterministic scan of the declared output directory
	matches := scanArtifacts(stage.ArtifactDir(ws), stage.Pattern)
	if stage.Kind == models.ArtifactPointCloud {
		matches = withoutResolverOutputs(matches)
	}
	if len(matches) > 0 {
		switch stage.Kind {
		case models.ArtifactPointCloud:
			art.Path = matches[0]
		default:
			// Directory kinds: the artifact is the directory itself
			art.Path = stage.ArtifactDir(ws)
		}
		art.Provenance = models.ProvenanceScan
		l.log.Info("Result pointer missing, artifact resolved by directory scan", map[string]interface{}{
			"stage": stage.Name, "path": art.Path, "matches": len(matches),
		})
		return art, l.writeAlias(ws, stage, art)
	}

	// Tier 3: synthesize a minimal empty artifact of the expected kind
	path, err := l.synthesize(ws, stage)
	if err != nil {
		return nil, &ArtifactNotFoundError{Stage: stage.Name, Err: err}
	}
	art.Path = path
	art.Provenance = models.ProvenancePlaceholder
	art.AttemptID = ""
	l.log.Warn("No artifact found, synthesized empty placeholder", map[string]interface{}{
		"stage": stage.Name, "path": path,
	})
	return art, l.writeAlias(ws, stage, art)
}

// readPointer reads and validates the stage's result pointer file
func (l *Locator) readPointer(outputDir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(outputDir, tools.ResultPointerName))
	if err != nil {
		return "", false
	}
	target := strings.TrimSpace(string(data))
	if target == "" {
		return "", false
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(outputDir, target)
	}
	if _, err := os.Stat(target); err != nil {
		return "", false
	}
	return target, true
}

// scanArtifacts returns files matching pattern anywhere under dir, in
// stable lexical path order
func scanArtifacts(dir, pattern string) []string {
	var matches []string
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, info.Name()); ok {
			matches = append(matches, path)
		}
		return nil
	})
	sort.Strings(matches)
	return matches
}

// withoutResolverOutputs drops the locator's own outputs from a scan: the
// canonical alias and a placeholder left by an earlier run would otherwise
// sort ahead of a freshly produced artifact and shadow it.
func withoutResolverOutputs(matches []string) []string {
	kept := matches[:0]
	for _, m := range matches {
		base := filepath.Base(m)
		if base == tools.PointCloudName || base == placeholderName {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

// synthesize creates the empty placeholder artifact for a stage kind
func (l *Locator) synthesize(ws *Workspace, stage *Stage) (string, error) {
	dir := stage.ArtifactDir(ws)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	switch stage.Kind {
	case models.ArtifactPointCloud:
		path := filepath.Join(dir, placeholderName)
		if err := os.WriteFile(path, []byte(emptyPLY), 0644); err != nil {
			return "", err
		}
		return path, nil
	default:
		// Directory kinds: the empty directory is the placeholder
		return dir, nil
	}
}

// writeAlias (re)writes the canonical alias so humans and downstream
// consumers have one fixed location regardless of which tier resolved the
// artifact. Symlink where supported, copy otherwise.
func (l *Locator) writeAlias(ws *Workspace, stage *Stage, art *models.Artifact) error {
	if stage.Kind != models.ArtifactPointCloud {
		return nil
	}
	alias := filepath.Join(ws.ReconstructionDir(), tools.PointCloudName)
	if art.Path == alias {
		return nil
	}
	os.Remove(alias)
	if err := os.Symlink(art.Path, alias); err == nil {
		return nil
	}
	if err := copyFile(art.Path, alias); err != nil {
		return fmt.Errorf("failed to write canonical alias %s: %w", alias, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
