package image

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolveTileIIIF(t *testing.T) {
	d := parse(t, info4x3JSON)
	g, err := ResolveGeometry(d, Extent{800, 600})
	if err != nil {
		t.Fatal(err)
	}

	const base = "http://example.org/iiif/a"

	var tests = []struct {
		level, column, row int
		ok                 bool
		region             Region
		url                string
	}{
		{3, 0, 0, true, Region{0, 0, 256, 256}, base + "/0,0,256,256/256,/0/default.jpg"},
		{3, 15, 11, true, Region{3840, 2816, 160, 184}, base + "/3840,2816,160,184/256,/0/default.jpg"},
		{0, 0, 0, true, Region{0, 0, 2048, 2048}, base + "/0,0,2048,2048/256,/0/default.jpg"},
		{0, 1, 0, true, Region{2048, 0, 1952, 2048}, base + "/2048,0,1952,2048/256,/0/default.jpg"},
		{0, 1, 1, true, Region{2048, 2048, 1952, 952}, base + "/2048,2048,1952,952/256,/0/default.jpg"},
		{0, 2, 0, false, Region{}, ""},
		{3, 16, 0, false, Region{}, ""},
		{3, 0, 12, false, Region{}, ""},
		{3, -1, 0, false, Region{}, ""},
		{4, 0, 0, false, Region{}, ""},
		{-1, 0, 0, false, Region{}, ""},
	}

	for _, test := range tests {
		tile, ok := ResolveTile(d, g, test.level, test.column, test.row)
		if ok != test.ok {
			t.Errorf("%d:[%d,%d]: got %#v want %#v", test.level, test.column, test.row, ok, test.ok)
			continue
		}
		if !ok {
			continue
		}
		if tile.Region != test.region {
			t.Errorf("%d:[%d,%d]: got %v want %v", test.level, test.column, test.row, tile.Region, test.region)
		}
		if tile.URL != test.url {
			t.Errorf("%d:[%d,%d]: got %#v want %#v", test.level, test.column, test.row, tile.URL, test.url)
		}
	}

	if got := BackgroundURL(d, g); got != base+"/full/500,375/0/default.jpg" {
		t.Errorf("got %#v", got)
	}

	d.SetFormat("jpg")
	d.SetQuality("default")
	tile, _ := ResolveTile(d, g, 3, 0, 0)
	if tile.Size != (Size{256, 256}) {
		t.Errorf("got %v want 256x256", tile.Size)
	}

	// edge tiles are requested at the tile size and come back clipped
	tile, _ = ResolveTile(d, g, 0, 1, 1)
	if tile.Size != (Size{244, 119}) {
		t.Errorf("got %v want 244x119", tile.Size)
	}
}

func TestResolveTileIIIFRectangular(t *testing.T) {
	d := parse(t, `{
  "@context": "http://iiif.io/api/image/2/context.json",
  "@id": "http://example.org/iiif/r",
  "width": 1000,
  "height": 700,
  "tiles": [{"width": 512, "height": 256, "scaleFactors": [1, 2]}]
}`)
	g, err := ResolveGeometry(d, Extent{500, 350})
	if err != nil {
		t.Fatal(err)
	}

	tile, ok := ResolveTile(d, g, g.MaxLevel, 1, 2)
	if !ok {
		t.Fatal("tile 1,2 must exist")
	}
	want := "http://example.org/iiif/r/512,512,488,188/512,256/0/default.jpg"
	if tile.URL != want {
		t.Errorf("got %#v want %#v", tile.URL, want)
	}
	if tile.Size != (Size{488, 188}) {
		t.Errorf("got %v want 488x188", tile.Size)
	}
}

func TestResolveTileIIIFSelection(t *testing.T) {
	d := parse(t, infoV2JSON)
	g, _ := ResolveGeometry(d, Extent{800, 600})

	d.SetFormat("png")
	d.SetQuality("gray")

	tile, ok := ResolveTile(d, g, g.MaxLevel, 0, 0)
	if !ok {
		t.Fatal("tile 0,0 must exist")
	}
	want := "http://example.org/iiif/v2/0,0,512,512/512,/0/gray.png"
	if tile.URL != want {
		t.Errorf("got %#v want %#v", tile.URL, want)
	}
}

func TestResolveTileZoomify(t *testing.T) {
	z := zoomify(t, zoomifyXML)
	g, err := ResolveGeometry(z, Extent{800, 600})
	if err != nil {
		t.Fatal(err)
	}

	const base = "http://example.org/zoomify"

	var tests = []struct {
		level, column, row int
		ok                 bool
		tile               Tile
	}{
		{6, 0, 0, true, Tile{6, 0, 0, Region{0, 0, 256, 256}, Size{256, 256}, base + "/TileGroup1/6-0-0.jpg"}},
		{2, 2, 1, true, Tile{2, 2, 1, Region{8192, 4096, 1808, 3904}, Size{113, 244}, base + "/TileGroup0/2-2-1.jpg"}},
		{0, 0, 0, true, Tile{0, 0, 0, Region{0, 0, 10000, 8000}, Size{156, 125}, base + "/TileGroup0/0-0-0.jpg"}},
		{5, 0, 0, true, Tile{5, 0, 0, Region{0, 0, 512, 512}, Size{256, 256}, base + "/TileGroup0/5-0-0.jpg"}},
		{6, 39, 31, true, Tile{6, 39, 31, Region{9984, 7936, 16, 64}, Size{16, 64}, base + "/TileGroup6/6-39-31.jpg"}},
		// Beyond the last column or row of a level.
		{6, 40, 0, false, Tile{}},
		{6, 0, 32, false, Tile{}},
		{2, 3, 0, false, Tile{}},
		{7, 0, 0, false, Tile{}},
		{-1, 0, 0, false, Tile{}},
	}

	for _, test := range tests {
		tile, ok := ResolveTile(z, g, test.level, test.column, test.row)
		if ok != test.ok {
			t.Errorf("%d:[%d,%d]: got %#v want %#v", test.level, test.column, test.row, ok, test.ok)
			continue
		}
		if diff := cmp.Diff(test.tile, tile); diff != "" {
			t.Errorf("%d:[%d,%d] mismatch (-want +got):\n%s", test.level, test.column, test.row, diff)
		}
	}

	if got := BackgroundURL(z, g); got != base+"/TileGroup0/0-0-0.jpg" {
		t.Errorf("got %#v", got)
	}
}

func TestRegionsStayInside(t *testing.T) {
	descriptors := map[string]Descriptor{
		"iiif":    parse(t, info4x3JSON),
		"v1":      parse(t, infoV1JSON),
		"zoomify": zoomify(t, zoomifyXML),
	}

	for name, d := range descriptors {
		g, err := ResolveGeometry(d, Extent{800, 600})
		if err != nil {
			t.Fatal(err)
		}

		for level := 0; level <= g.MaxLevel; level++ {
			covered := 0
			for row := 0; ; row++ {
				if _, ok := ResolveTile(d, g, level, 0, row); !ok {
					break
				}
				for column := 0; ; column++ {
					tile, ok := ResolveTile(d, g, level, column, row)
					if !ok {
						break
					}
					r := tile.Region
					if r.X < 0 || r.Y < 0 || r.Width <= 0 || r.Height <= 0 {
						t.Errorf("%s %d:[%d,%d]: empty region %v", name, level, column, row, r)
					}
					if r.X+r.Width > d.Width() || r.Y+r.Height > d.Height() {
						t.Errorf("%s %d:[%d,%d]: region %v overflows", name, level, column, row, r)
					}
					covered += r.Width * r.Height
				}
			}
			if covered != d.Width()*d.Height() {
				t.Errorf("%s level %d: tiles cover %d pixels want %d", name, level, covered, d.Width()*d.Height())
			}
		}
	}
}

func TestSizeParam(t *testing.T) {
	var tests = []struct {
		size Size
		want string
	}{
		{Size{256, 256}, "256,"},
		{Size{256, 100}, "256,100"},
		{Size{1, 2}, "1,2"},
	}

	for _, test := range tests {
		if got := sizeParam(test.size); got != test.want {
			t.Errorf("got %#v want %#v", got, test.want)
		}
	}
}
