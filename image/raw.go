package image

import (
	"fmt"

	"gopkg.in/h2non/bimg.v1"
)

// Decoder reads what is needed from encoded image bytes.
type Decoder interface {
	// Size returns the pixel dimensions of the image.
	Size(data []byte) (Size, error)
	// Validate checks that data holds an image of a supported type.
	Validate(data []byte) error
}

// BimgDecoder is the libvips backed Decoder.
type BimgDecoder struct{}

// Validate implements Decoder.
func (BimgDecoder) Validate(data []byte) error {
	t := bimg.DetermineImageType(data)
	if t == bimg.UNKNOWN {
		return fmt.Errorf("%w: unknown image type", ErrTileDecodeFailed)
	}
	if !bimg.IsTypeSupported(t) {
		return fmt.Errorf("%w: %s is not supported", ErrTileDecodeFailed, bimg.ImageTypeName(t))
	}
	return nil
}

// Size implements Decoder.
func (b BimgDecoder) Size(data []byte) (Size, error) {
	if err := b.Validate(data); err != nil {
		return Size{}, err
	}
	size, err := bimg.NewImage(data).Size()
	if err != nil {
		return Size{}, fmt.Errorf("%w: %v", ErrTileDecodeFailed, err)
	}
	return Size{size.Width, size.Height}, nil
}

// Raw is a flat raster image, drawn as a single background.
type Raw struct {
	base
	noCapabilities

	// Type is the detected image type, e.g. "jpeg".
	Type string
}

// Variant implements Descriptor.
func (*Raw) Variant() Variant {
	return VariantRaw
}

// Protocol implements Descriptor.
func (*Raw) Protocol() Protocol {
	return ProtocolRaw
}

// TileSizes implements Descriptor, the single level is the whole image.
func (r *Raw) TileSizes() []Size {
	return []Size{{r.width, r.height}}
}

func (r *Raw) candidateScales(maxRatio float64) []float64 {
	return doublings(maxRatio)
}

func (r *Raw) maxLevel(float64) int {
	return 0
}

func (r *Raw) tile(Geometry, int, int, int) (Tile, bool) {
	return Tile{}, false
}

func (r *Raw) background(Geometry) string {
	return r.baseURL
}

// ParseRaw decodes enough of data to read the image dimensions.
func ParseRaw(data []byte, address string, dec Decoder) (*Raw, error) {
	if dec == nil {
		dec = BimgDecoder{}
	}

	size, err := dec.Size(data)
	if err != nil {
		return nil, malformed("%s: %v", address, err)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return nil, malformed("%s: empty image %dx%d", address, size.Width, size.Height)
	}

	r := &Raw{
		base: base{baseURL: address, width: size.Width, height: size.Height},
	}
	if _, ok := dec.(BimgDecoder); ok {
		r.Type = bimg.ImageTypeName(bimg.DetermineImageType(data))
	}

	debug("Raw %s (%dx%d)", address, size.Width, size.Height)
	return r, nil
}
