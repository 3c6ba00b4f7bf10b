// Package verify runs image verifications locally by comparing a captured
// screenshot with a reference image, and hands every other verification to a
// remote executor.
package verify

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/angelstreet/navtree/internal/ctxlog"
	"github.com/angelstreet/navtree/internal/model"
	"github.com/angelstreet/navtree/internal/platform"
)

// Verification params understood by the local image matcher.
const (
	ParamReference = "reference"
	ParamThreshold = "threshold"
	ParamArea      = "area"
)

// DefaultThreshold is the minimum similarity for a match.
const DefaultThreshold = 0.9

// compareSize is the edge length both images are scaled to before comparing.
const compareSize = 64

// ImageMatcher implements platform.VerificationExecutor. Image verifications
// carrying a reference param are evaluated locally; everything else goes to
// Remote.
type ImageMatcher struct {
	Artifacts     platform.ArtifactReader
	Remote        platform.VerificationExecutor
	ReferenceDir  string
	AnnotationDir string
}

// ExecuteVerification implements platform.VerificationExecutor.
func (m *ImageMatcher) ExecuteVerification(ctx context.Context, target platform.Target, v model.Verification, artifact string) (platform.StepResult, error) {
	ref, local := referenceOf(v)
	if !local || m.Artifacts == nil {
		if m.Remote == nil {
			return platform.StepResult{}, fmt.Errorf("verification %s: no remote executor configured", v.Command)
		}
		return m.Remote.ExecuteVerification(ctx, target, v, artifact)
	}

	threshold, err := thresholdOf(v)
	if err != nil {
		return platform.StepResult{}, err
	}
	var area *platform.Bounds
	if s, ok := v.Params[ParamArea].(string); ok && s != "" {
		if area, err = platform.ParseBBox(s); err != nil {
			return platform.StepResult{}, fmt.Errorf("verification %s: %w", v.Command, err)
		}
	}

	captured, err := m.readArtifact(ctx, artifact)
	if err != nil {
		return platform.StepResult{}, err
	}
	reference, err := decodeFile(m.resolve(ref))
	if err != nil {
		return platform.StepResult{}, err
	}

	region := captured.Bounds()
	if area != nil {
		region = image.Rect(area.X, area.Y, area.X+area.Width, area.Y+area.Height).Intersect(captured.Bounds())
		if region.Empty() {
			return platform.StepResult{}, fmt.Errorf("verification %s: area %s is outside the %dx%d capture", v.Command, v.Params[ParamArea], captured.Bounds().Dx(), captured.Bounds().Dy())
		}
	}

	score := Similarity(captured, region, reference)
	ctxlog.FromContext(ctx).Debug("Image compared", "command", v.Command, "reference", ref, "similarity", score, "threshold", threshold)

	res := platform.StepResult{
		Success: score >= threshold,
		Message: fmt.Sprintf("similarity %.1f%% (threshold %.1f%%)", score*100, threshold*100),
	}
	if !res.Success && m.AnnotationDir != "" {
		out := filepath.Join(m.AnnotationDir, "failed_"+artifact)
		if err := WriteAnnotated(out, captured, region, fmt.Sprintf("%.0f%%", score*100)); err != nil {
			ctxlog.FromContext(ctx).Warn("Failed to write annotated capture", "path", out, "error", err)
		} else {
			res.Message += ", annotated " + out
		}
	}
	return res, nil
}

func (m *ImageMatcher) readArtifact(ctx context.Context, name string) (image.Image, error) {
	rc, err := m.Artifacts.ReadArtifact(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", name, err)
	}
	return img, nil
}

func (m *ImageMatcher) resolve(ref string) string {
	if filepath.IsAbs(ref) || m.ReferenceDir == "" {
		return ref
	}
	return filepath.Join(m.ReferenceDir, ref)
}

func referenceOf(v model.Verification) (string, bool) {
	if v.Controller != model.ControllerImage {
		return "", false
	}
	ref, ok := v.Params[ParamReference].(string)
	return ref, ok && ref != ""
}

func thresholdOf(v model.Verification) (float64, error) {
	raw, ok := v.Params[ParamThreshold]
	if !ok {
		return DefaultThreshold, nil
	}
	var t float64
	switch x := raw.(type) {
	case float64:
		t = x
	case int:
		t = float64(x)
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("verification %s: invalid threshold %q", v.Command, x)
		}
		t = f
	default:
		return 0, fmt.Errorf("verification %s: invalid threshold %v", v.Command, raw)
	}
	if t < 0 || t > 1 {
		return 0, fmt.Errorf("verification %s: threshold %v outside [0,1]", v.Command, t)
	}
	return t, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode reference %s: %w", path, err)
	}
	return img, nil
}

// Similarity compares the region of captured with reference after scaling
// both to a small common size. It returns 1 for identical images and 0 for
// maximally different ones.
func Similarity(captured image.Image, region image.Rectangle, reference image.Image) float64 {
	a := scaleGray(captured, region)
	b := scaleGray(reference, reference.Bounds())

	var diff float64
	for i := range a.Pix {
		d := int(a.Pix[i]) - int(b.Pix[i])
		if d < 0 {
			d = -d
		}
		diff += float64(d)
	}
	return 1 - diff/(255*float64(len(a.Pix)))
}

func scaleGray(src image.Image, r image.Rectangle) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, compareSize, compareSize))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, r, draw.Src, nil)
	return dst
}
