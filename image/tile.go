package image

import (
	"fmt"
	"strconv"
)

// Region is a rectangle of the full resolution pixel grid.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Region) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}

// Tile is the request for one tile of the pyramid.
type Tile struct {
	Level  int    `json:"level"`
	Column int    `json:"column"`
	Row    int    `json:"row"`
	Region Region `json:"region"`
	// Size is the size of the returned image in pixels.
	Size Size   `json:"size"`
	URL  string `json:"url"`
}

// ResolveTile computes the region and the request URL of a tile. It returns
// false when the coordinate lies outside of the image, such tiles do not
// exist and must not be requested again.
func ResolveTile(d Descriptor, g Geometry, level, column, row int) (Tile, bool) {
	t, ok := d.tile(g, level, column, row)
	if !ok {
		debug("Request for non-existing tile at %d:[%d,%d].", level, column, row)
	}
	return t, ok
}

// BackgroundURL is the address of a single image covering the whole canvas.
func BackgroundURL(d Descriptor, g Geometry) string {
	return d.background(g)
}

// clip computes the region of a tile of size ts at downsample s and clips it
// to the w x h image.
func clip(column, row int, ts Size, s, w, h int) (Region, bool) {
	if column < 0 || row < 0 || s < 1 {
		return Region{}, false
	}

	x := column * ts.Width * s
	y := row * ts.Height * s
	if x >= w || y >= h {
		return Region{}, false
	}

	return Region{
		X:      x,
		Y:      y,
		Width:  min(ts.Width*s, w-x),
		Height: min(ts.Height*s, h-y),
	}, true
}

// ceilDiv divides rounding up.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// sizeParam formats the IIIF size segment: "w," for square tiles, "w,h"
// otherwise.
func sizeParam(s Size) string {
	if s.Width == s.Height {
		return strconv.Itoa(s.Width) + ","
	}
	return strconv.Itoa(s.Width) + "," + strconv.Itoa(s.Height)
}
