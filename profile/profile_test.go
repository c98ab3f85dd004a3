package profile

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/greut/tileview/source"
)

func TestMerge(t *testing.T) {
	p := New([]string{"jpg"}, []string{"default"})

	var tests = []struct {
		doc       *Document
		formats   []string
		qualities []string
		supports  []string
		limits    [3]int
	}{
		{
			&Document{Formats: []string{"png"}, Qualities: []string{"gray"}, MaxWidth: 1000},
			[]string{"jpg", "png"}, []string{"default", "gray"}, []string{}, [3]int{0, 1000, 1000},
		},
		{
			&Document{MaxArea: 4000000, MaxHeight: 500, Supports: []string{"sizeByW", "cors"}},
			[]string{"jpg", "png"}, []string{"default", "gray"}, []string{"cors", "sizeByW"}, [3]int{4000000, 1000, 500},
		},
		{
			nil,
			[]string{"jpg", "png"}, []string{"default", "gray"}, []string{"cors", "sizeByW"}, [3]int{4000000, 1000, 500},
		},
	}

	for i, test := range tests {
		p.Merge(test.doc)

		if diff := cmp.Diff(test.formats, p.Formats()); diff != "" {
			t.Errorf("%d: formats (-want +got):\n%s", i, diff)
		}
		if diff := cmp.Diff(test.qualities, p.Qualities()); diff != "" {
			t.Errorf("%d: qualities (-want +got):\n%s", i, diff)
		}
		if diff := cmp.Diff(test.supports, p.Supports()); diff != "" {
			t.Errorf("%d: supports (-want +got):\n%s", i, diff)
		}
		area, width, height := p.Limits()
		if got := [3]int{area, width, height}; got != test.limits {
			t.Errorf("%d: got %v want %v", i, got, test.limits)
		}
	}

	if !p.HasFormat("png") || p.HasFormat("gif") {
		t.Errorf("got %v", p.Formats())
	}
	if !p.HasQuality("gray") || p.HasQuality("color") {
		t.Errorf("got %v", p.Qualities())
	}
}

func TestDecode(t *testing.T) {
	doc, err := Decode(map[string]interface{}{
		"@context":  "http://iiif.io/api/image/2/context.json",
		"@type":     "iiif:ImageProfile",
		"formats":   []interface{}{"jpg", "webp"},
		"maxArea":   float64(1000),
		"qualities": []interface{}{"bitonal"},
	})
	if err != nil {
		t.Fatal(err)
	}

	want := &Document{
		Context:   "http://iiif.io/api/image/2/context.json",
		Type:      "iiif:ImageProfile",
		Formats:   []string{"jpg", "webp"},
		MaxArea:   1000,
		Qualities: []string{"bitonal"},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if _, err := Decode(map[string]interface{}{"formats": "jpg"}); err == nil {
		t.Errorf("formats must be a list")
	}
}

func TestFetch(t *testing.T) {
	src := source.Func(func(_ context.Context, uri string) ([]byte, error) {
		if uri == "broken" {
			return []byte("{"), nil
		}
		return []byte(`{"formats": ["gif"]}`), nil
	})

	doc, err := Fetch(context.Background(), src, "http://iiif.io/api/image/2/level2.json")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"gif"}, doc.Formats); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if _, err := Fetch(context.Background(), src, "broken"); err == nil {
		t.Errorf("invalid JSON should fail")
	}
}
