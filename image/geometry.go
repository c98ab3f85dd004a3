package image

import (
	"fmt"
	"math"
	"sort"
)

// FitPolicy is the way the canvas is fitted inside the viewport.
type FitPolicy int

const (
	// FitHalving halves the full image size until it fits, keeping the
	// canvas aligned on the tile pyramid.
	FitHalving FitPolicy = iota + 1
	// FitRatio scales the full image size so that the limiting dimension
	// matches the viewport exactly.
	FitRatio
)

func (p FitPolicy) String() string {
	switch p {
	case FitHalving:
		return "halving"
	case FitRatio:
		return "ratio"
	}
	return fmt.Sprintf("FitPolicy(%d)", int(p))
}

// Geometry is the layout of an image inside a viewport.
type Geometry struct {
	Viewport Extent `json:"viewport"`
	// Canvas is the aspect-fit size of the whole image at the minimum
	// scale.
	Canvas   Extent    `json:"canvas"`
	MinScale float64   `json:"minScale"`
	MaxScale float64   `json:"maxScale"`
	MaxLevel int       `json:"maxLevel"`
	Scales   []float64 `json:"scales"`
}

const epsilon = 1e-9

// ResolveGeometry fits d inside viewport with the descriptor's own policy.
func ResolveGeometry(d Descriptor, viewport Extent) (Geometry, error) {
	return ResolveGeometryWith(d, viewport, d.FitPolicy())
}

// ResolveGeometryWith fits d inside viewport with the given policy.
func ResolveGeometryWith(d Descriptor, viewport Extent, policy FitPolicy) (Geometry, error) {
	if !validExtent(viewport) {
		return Geometry{}, fmt.Errorf("%w: %vx%v", ErrInvalidViewport, viewport.Width, viewport.Height)
	}

	canvas := FitCanvas(Size{d.Width(), d.Height()}, viewport, policy)
	debug("canvas %vx%v (%v) for %vx%v", canvas.Width, canvas.Height, policy, viewport.Width, viewport.Height)
	return bounds(d, canvas, viewport), nil
}

// Adjust recomputes the scale bounds for a new viewport while keeping the
// canvas. Callers must not adjust while a zoom interaction is running.
func (g Geometry) Adjust(d Descriptor, viewport Extent) (Geometry, error) {
	if !validExtent(viewport) {
		return g, fmt.Errorf("%w: %vx%v", ErrInvalidViewport, viewport.Width, viewport.Height)
	}
	return bounds(d, g.Canvas, viewport), nil
}

// FitCanvas computes the canvas size of an image inside the viewport.
func FitCanvas(size Size, viewport Extent, policy FitPolicy) Extent {
	w := float64(size.Width)
	h := float64(size.Height)

	if policy == FitHalving {
		for w > viewport.Width || h > viewport.Height {
			w /= 2
			h /= 2
		}
		return Extent{w, h}
	}

	mW := viewport.Width / w
	mH := viewport.Height / h
	if mH <= mW {
		return Extent{w * mH, viewport.Height}
	}
	return Extent{viewport.Width, h * mW}
}

func bounds(d Descriptor, canvas, viewport Extent) Geometry {
	minRatio := math.Min(viewport.Width/canvas.Width, viewport.Height/canvas.Height)
	maxRatio := math.Max(float64(d.Width())/canvas.Width, float64(d.Height())/canvas.Height)

	maxScale := maxRatio
	minScale := math.Min(minRatio, maxScale)

	return Geometry{
		Viewport: viewport,
		Canvas:   canvas,
		MinScale: minScale,
		MaxScale: maxScale,
		MaxLevel: d.maxLevel(maxScale),
		Scales:   discreteScales(minScale, maxScale, d.candidateScales(maxRatio)),
	}
}

// discreteScales keeps the candidates within (minScale, maxScale] and makes
// sure the list starts at minScale and ends at maxScale.
func discreteScales(minScale, maxScale float64, candidates []float64) []float64 {
	sorted := append([]float64(nil), candidates...)
	sort.Float64s(sorted)

	scales := []float64{minScale}
	for _, s := range sorted {
		last := scales[len(scales)-1]
		if s > minScale && s <= maxScale && s-last > epsilon {
			scales = append(scales, s)
		}
	}

	if math.Abs(scales[len(scales)-1]-maxScale) > epsilon {
		scales = append(scales, maxScale)
	}
	return scales
}

// roundLevel is the level convention shared by every protocol.
func roundLevel(scale float64) int {
	if scale <= 0 {
		return 0
	}
	level := int(math.Round(math.Log2(scale)))
	if level < 0 {
		return 0
	}
	return level
}

// Downsample is the factor between the full resolution pixel grid and the
// grid of level.
func (g Geometry) Downsample(level int) int {
	if level >= g.MaxLevel {
		return 1
	}
	if level < 0 {
		level = 0
	}
	return 1 << uint(g.MaxLevel-level)
}

// ScaleForLevel is the zoom scale at which level is displayed natively.
func (g Geometry) ScaleForLevel(level int) float64 {
	return g.MaxScale / float64(g.Downsample(level))
}

// LevelForScale is the level to draw at the given zoom scale.
func (g Geometry) LevelForScale(scale float64) int {
	if scale <= 0 {
		return 0
	}
	level := g.MaxLevel - roundLevel(g.MaxScale/scale)
	if level < 0 {
		return 0
	}
	return level
}

func validExtent(e Extent) bool {
	return e.Width > 0 && e.Height > 0 &&
		!math.IsInf(e.Width, 0) && !math.IsInf(e.Height, 0)
}
