package image

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ZoomifyPropertyFile is the name of the Zoomify property document.
const ZoomifyPropertyFile = "ImageProperties.xml"

// tilesPerGroup is the number of tiles stored in each TileGroup folder.
const tilesPerGroup = 256

// Level is one resolution step of a Zoomify pyramid.
type Level struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	TilesX int `json:"tilesX"`
	TilesY int `json:"tilesY"`
}

func newLevel(width, height, tileSize int) Level {
	return Level{
		Width:  width,
		Height: height,
		TilesX: ceilDiv(width, tileSize),
		TilesY: ceilDiv(height, tileSize),
	}
}

// Zoomify is an image served as a Zoomify tile pyramid.
type Zoomify struct {
	base
	noCapabilities

	tileSize int
	// pyramid goes from the lowest resolution, at 0, to the full one.
	pyramid []Level
	// offsets[i] is the number of tiles of every level below i.
	offsets []int

	NumImages int
	NumTiles  int
	Version   string
}

// Variant implements Descriptor.
func (*Zoomify) Variant() Variant {
	return VariantZoomify
}

// Protocol implements Descriptor.
func (*Zoomify) Protocol() Protocol {
	return ProtocolZoomify
}

// TileSizes implements Descriptor.
func (z *Zoomify) TileSizes() []Size {
	return repeat(Size{z.tileSize, z.tileSize}, len(z.pyramid))
}

// Levels returns a copy of the pyramid, lowest resolution first.
func (z *Zoomify) Levels() []Level {
	return append([]Level(nil), z.pyramid...)
}

// Depth is the number of levels.
func (z *Zoomify) Depth() int {
	return len(z.pyramid)
}

func (z *Zoomify) candidateScales(maxRatio float64) []float64 {
	return doublings(maxRatio)
}

func (z *Zoomify) maxLevel(float64) int {
	return z.Depth() - 1
}

func (z *Zoomify) tile(g Geometry, level, column, row int) (Tile, bool) {
	if level < 0 || level >= z.Depth() {
		return Tile{}, false
	}
	l := z.pyramid[level]
	if column < 0 || row < 0 || column >= l.TilesX || row >= l.TilesY {
		return Tile{}, false
	}

	ts := Size{z.tileSize, z.tileSize}
	region, ok := clip(column, row, ts, 1<<uint(z.Depth()-1-level), z.width, z.height)
	if !ok {
		return Tile{}, false
	}

	index := z.offsets[level] + row*l.TilesX + column
	url := fmt.Sprintf("%s/TileGroup%d/%d-%d-%d.jpg", z.baseURL, index/tilesPerGroup, level, column, row)

	return Tile{
		Level:  level,
		Column: column,
		Row:    row,
		Region: region,
		Size: Size{
			Width:  min(z.tileSize, l.Width-column*z.tileSize),
			Height: min(z.tileSize, l.Height-row*z.tileSize),
		},
		URL: url,
	}, true
}

func (z *Zoomify) background(g Geometry) string {
	t, _ := z.tile(g, 0, 0, 0)
	return t.URL
}

// ParseZoomify reads the IMAGE_PROPERTIES element of a Zoomify property
// document found at metadataURL.
func ParseZoomify(data []byte, metadataURL string) (*Zoomify, error) {
	attrs, err := imageProperties(data)
	if err != nil {
		return nil, err
	}

	width, err := attrInt(attrs, "WIDTH", true)
	if err != nil {
		return nil, err
	}
	height, err := attrInt(attrs, "HEIGHT", true)
	if err != nil {
		return nil, err
	}
	tileSize, err := attrInt(attrs, "TILESIZE", true)
	if err != nil {
		return nil, err
	}

	z := &Zoomify{
		base: base{
			baseURL: strings.TrimSuffix(strings.TrimSuffix(metadataURL, ZoomifyPropertyFile), "/"),
			width:   width,
			height:  height,
		},
		tileSize: tileSize,
		Version:  attrs["VERSION"],
	}
	z.NumImages, _ = attrInt(attrs, "NUMIMAGES", false)
	declared, _ := attrInt(attrs, "NUMTILES", false)

	z.buildPyramid()
	z.NumTiles = z.offsets[len(z.pyramid)]
	if declared > 0 && declared != z.NumTiles {
		debug("Zoomify %s declares %d tiles, %d computed.", z.baseURL, declared, z.NumTiles)
	}

	debug("Zoomify %s (%dx%d), %d levels", z.baseURL, width, height, len(z.pyramid))
	return z, nil
}

// buildPyramid halves the full size until it fits in a single tile.
func (z *Zoomify) buildPyramid() {
	var levels []Level
	w, h := z.width, z.height
	for w > z.tileSize || h > z.tileSize {
		levels = append(levels, newLevel(w, h, z.tileSize))
		w, h = max(w/2, 1), max(h/2, 1)
	}
	levels = append(levels, newLevel(w, h, z.tileSize))

	z.pyramid = make([]Level, len(levels))
	for i, l := range levels {
		z.pyramid[len(levels)-1-i] = l
	}

	z.offsets = make([]int, len(z.pyramid)+1)
	for i, l := range z.pyramid {
		z.offsets[i+1] = z.offsets[i] + l.TilesX*l.TilesY
	}
}

// imageProperties streams the document until the IMAGE_PROPERTIES element.
func imageProperties(data []byte) (map[string]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil, malformed("%s: IMAGE_PROPERTIES is missing", ZoomifyPropertyFile)
		}
		if err != nil {
			return nil, malformed("%s: %v", ZoomifyPropertyFile, err)
		}

		start, ok := token.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, "IMAGE_PROPERTIES") {
			continue
		}

		attrs := make(map[string]string, len(start.Attr))
		for _, a := range start.Attr {
			attrs[strings.ToUpper(a.Name.Local)] = a.Value
		}
		return attrs, nil
	}
}

func attrInt(attrs map[string]string, key string, required bool) (int, error) {
	value, ok := attrs[key]
	if !ok {
		if required {
			return 0, malformed("%s: `%s` is missing", ZoomifyPropertyFile, key)
		}
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || (required && n <= 0) {
		return 0, malformed("%s: `%s` is not a positive integer: %q", ZoomifyPropertyFile, key, value)
	}
	return n, nil
}
