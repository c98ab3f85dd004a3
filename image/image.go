// Package image resolves tiled image pyramids served over IIIF Image API 1.1,
// IIIF Image API 2.x, Zoomify, or as a single flat raster.
//
// A Descriptor is built from the metadata of one image. ResolveGeometry lays
// it out inside a viewport and ResolveTile turns a (level, column, row)
// coordinate into a pixel region and a request URL.
package image

import (
	"fmt"

	d "github.com/tj/go-debug"
)

var debug = d.Debug("tileview:image")

// DefaultTileSize is used when the metadata does not declare any tile size.
const DefaultTileSize = 256

// Protocol is the web protocol an image is served with.
type Protocol int

// Supported protocols.
const (
	ProtocolUnknown Protocol = iota
	ProtocolIIIF
	ProtocolZoomify
	ProtocolRaw
)

func (p Protocol) String() string {
	switch p {
	case ProtocolIIIF:
		return "IIIF"
	case ProtocolZoomify:
		return "Zoomify"
	case ProtocolRaw:
		return "Raw"
	}
	return "Unknown"
}

// Variant tags the closed set of descriptor implementations.
type Variant int

// Descriptor variants.
const (
	VariantIIIFv1 Variant = iota + 1
	VariantIIIFv2
	VariantZoomify
	VariantRaw
)

func (v Variant) String() string {
	switch v {
	case VariantIIIFv1:
		return "IIIFv1"
	case VariantIIIFv2:
		return "IIIFv2"
	case VariantZoomify:
		return "Zoomify"
	case VariantRaw:
		return "Raw"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// Size is a pixel size.
type Size struct {
	Width  int `json:"width" mapstructure:"width"`
	Height int `json:"height" mapstructure:"height"`
}

// Extent is a size in display points, e.g. a viewport or a canvas.
type Extent struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Descriptor is the normalized view of an image: geometry and protocol
// capabilities. Only this package provides implementations.
type Descriptor interface {
	Variant() Variant
	Protocol() Protocol
	// BaseURL is the root of every tile and background URL.
	BaseURL() string
	Width() int
	Height() int
	// TileSizes holds one tile size per pyramid level.
	TileSizes() []Size
	// ScaleFactors are the server declared scale factors, ascending.
	ScaleFactors() []float64
	FitPolicy() FitPolicy

	Formats() []string
	Qualities() []string
	Format() string
	Quality() string
	// SetFormat selects a supported format, it reports false and leaves
	// the selection untouched otherwise.
	SetFormat(format string) bool
	SetQuality(quality string) bool

	candidateScales(maxRatio float64) []float64
	maxLevel(maxScale float64) int
	tile(g Geometry, level, column, row int) (Tile, bool)
	background(g Geometry) string
}

// base holds what every variant shares.
type base struct {
	baseURL string
	width   int
	height  int
}

func (b *base) BaseURL() string {
	return b.baseURL
}

func (b *base) Width() int {
	return b.width
}

func (b *base) Height() int {
	return b.height
}

// noCapabilities is embedded by the variants without format or quality
// selection.
type noCapabilities struct{}

func (noCapabilities) Formats() []string { return nil }

func (noCapabilities) Qualities() []string { return nil }

func (noCapabilities) Format() string { return "" }

func (noCapabilities) Quality() string { return "" }

func (noCapabilities) SetFormat(string) bool { return false }

func (noCapabilities) SetQuality(string) bool { return false }

func (noCapabilities) ScaleFactors() []float64 { return nil }

func (noCapabilities) FitPolicy() FitPolicy { return FitRatio }

// doublings returns 1, 2, 4, ... below limit, then limit itself.
func doublings(limit float64) []float64 {
	var scales []float64
	for s := 1.0; s < limit; s *= 2 {
		scales = append(scales, s)
	}
	return append(scales, limit)
}
