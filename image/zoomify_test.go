package image

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const zoomifyXML = `<?xml version="1.0" encoding="UTF-8"?>
<IMAGE_PROPERTIES WIDTH="10000" HEIGHT="8000" NUMTILES="1709" NUMIMAGES="1" VERSION="1.8" TILESIZE="256" />`

func zoomify(t *testing.T, data string) *Zoomify {
	t.Helper()
	z, err := ParseZoomify([]byte(data), "http://example.org/zoomify/ImageProperties.xml")
	if err != nil {
		t.Fatal(err)
	}
	return z
}

func TestParseZoomify(t *testing.T) {
	z := zoomify(t, zoomifyXML)

	if z.BaseURL() != "http://example.org/zoomify" {
		t.Errorf("got %#v want http://example.org/zoomify", z.BaseURL())
	}
	if z.Variant() != VariantZoomify || z.Protocol() != ProtocolZoomify {
		t.Errorf("got %v %v", z.Variant(), z.Protocol())
	}
	if z.NumTiles != 1709 || z.NumImages != 1 || z.Version != "1.8" {
		t.Errorf("got %d %d %#v", z.NumTiles, z.NumImages, z.Version)
	}
	if z.Formats() != nil || z.SetFormat("jpg") {
		t.Errorf("Zoomify has no format selection")
	}

	want := []Level{
		{156, 125, 1, 1},
		{312, 250, 2, 1},
		{625, 500, 3, 2},
		{1250, 1000, 5, 4},
		{2500, 2000, 10, 8},
		{5000, 4000, 20, 16},
		{10000, 8000, 40, 32},
	}
	if diff := cmp.Diff(want, z.Levels()); diff != "" {
		t.Errorf("pyramid mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(repeat(Size{256, 256}, 7), z.TileSizes()); diff != "" {
		t.Errorf("tile sizes mismatch (-want +got):\n%s", diff)
	}
}

func TestParseZoomifySmall(t *testing.T) {
	z := zoomify(t, `<IMAGE_PROPERTIES WIDTH="200" HEIGHT="100" TILESIZE="256" />`)

	if diff := cmp.Diff([]Level{{200, 100, 1, 1}}, z.Levels()); diff != "" {
		t.Errorf("a single level is expected (-want +got):\n%s", diff)
	}
}

func TestParseZoomifyErrors(t *testing.T) {
	var tests = []struct {
		name string
		data string
	}{
		{"empty", ``},
		{"element", `<?xml version="1.0"?><PROPERTIES WIDTH="1" HEIGHT="1" TILESIZE="256"/>`},
		{"width", `<IMAGE_PROPERTIES HEIGHT="8000" TILESIZE="256" />`},
		{"tilesize", `<IMAGE_PROPERTIES WIDTH="10000" HEIGHT="8000" />`},
		{"number", `<IMAGE_PROPERTIES WIDTH="wide" HEIGHT="8000" TILESIZE="256" />`},
		{"zero", `<IMAGE_PROPERTIES WIDTH="10000" HEIGHT="8000" TILESIZE="0" />`},
		{"xml", `<IMAGE_PROPERTIES WIDTH="10000`},
	}

	for _, test := range tests {
		_, err := ParseZoomify([]byte(test.data), "http://example.org/ImageProperties.xml")
		if !errors.Is(err, ErrMalformedMetadata) {
			t.Errorf("%s: got %#v want ErrMalformedMetadata", test.name, err)
		}
	}
}
