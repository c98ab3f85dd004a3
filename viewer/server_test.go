package viewer

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/greut/tileview/config"
	"github.com/greut/tileview/image"
	"github.com/greut/tileview/source"
)

// newServers starts a fake IIIF server and the viewer API in front of it.
func newServers(t *testing.T) (*httptest.Server, *httptest.Server) {
	t.Helper()

	var upstream *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/iiif/a/info.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(strings.Replace(infoJSON, "%s", upstream.URL+"/iiif/a", 1)))
	})
	mux.HandleFunc("/iiif/a/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tile " + r.URL.Path))
	})
	upstream = httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	src := source.NewHTTP(5*time.Second, "")
	loader := &Loader{
		Metadata:  source.NewGroup(src, 1<<20),
		Tiles:     src,
		Options:   image.Options{Decoder: acceptAll{}},
		Viewport:  image.Extent{Width: 800, Height: 600},
		TileBytes: 1 << 20,
	}
	registry := NewRegistry(loader)
	t.Cleanup(registry.Close)

	ts := httptest.NewServer(NewHandler(config.Resolved(), registry))
	t.Cleanup(ts.Close)

	return upstream, ts
}

func get(ts *httptest.Server, path string, address string, params string) *http.Response {
	client := &http.Client{
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	u := ts.URL + path + "?url=" + url.QueryEscape(address)
	if params != "" {
		u += "&" + params
	}
	resp, err := client.Get(u)
	if err != nil {
		log.Fatal(err)
	}
	return resp
}

func TestStatusCodes(t *testing.T) {
	upstream, ts := newServers(t)
	address := upstream.URL + "/iiif/a/info.json"

	var tests = []struct {
		path    string
		address string
		params  string
		status  int
	}{
		{"/info", address, "", http.StatusOK},
		{"/info", "", "", http.StatusBadRequest},
		{"/info", upstream.URL + "/nothing", "", http.StatusNotImplemented},
		{"/info", upstream.URL + "/iiif/b/info.json", "", http.StatusNotFound},
		{"/geometry", address, "width=1024&height=768", http.StatusOK},
		{"/geometry", address, "width=wide&height=768", http.StatusBadRequest},
		{"/geometry", address, "width=0&height=768", http.StatusBadRequest},
		{"/tile/3/0/0", address, "", http.StatusOK},
		{"/tile/3/16/0", address, "", http.StatusNotFound},
		{"/tile/3/-1/0", address, "", http.StatusNotFound},
		{"/tiles/3/0/0", address, "", http.StatusOK},
		{"/tiles/9/0/0", address, "", http.StatusNotFound},
		{"/tiles/3/0/0", address, "format=gif", http.StatusBadRequest},
		{"/background", address, "", http.StatusSeeOther},
	}

	for _, test := range tests {
		resp := get(ts, test.path, test.address, test.params)
		resp.Body.Close()

		if status := resp.StatusCode; status != test.status {
			t.Errorf("%s %s %s: handler returned wrong status code: got %#v want %#v", test.path, test.address, test.params, status, test.status)
		}
	}
}

func TestInfoHandler(t *testing.T) {
	upstream, ts := newServers(t)

	resp := get(ts, "/info", upstream.URL+"/iiif/a/info.json", "")
	defer resp.Body.Close()

	if contentType := resp.Header.Get("Content-Type"); contentType != "application/json" {
		t.Errorf("got %#v want application/json", contentType)
	}

	var info Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}

	if info.Protocol != "IIIF" || info.Variant != "IIIFv2" || info.Width != 4000 || info.Height != 3000 {
		t.Errorf("got %#v", info)
	}
	if info.BaseURL != upstream.URL+"/iiif/a" {
		t.Errorf("got %#v", info.BaseURL)
	}
	if len(info.TileSizes) != 4 || strings.Join(info.Formats, ",") != "jpg,png" {
		t.Errorf("got %#v and %#v", info.TileSizes, info.Formats)
	}
}

func TestGeometryHandler(t *testing.T) {
	upstream, ts := newServers(t)

	resp := get(ts, "/geometry", upstream.URL+"/iiif/a/info.json", "width=400&height=300")
	defer resp.Body.Close()

	var layout Layout
	if err := json.NewDecoder(resp.Body).Decode(&layout); err != nil {
		t.Fatal(err)
	}

	if layout.Canvas != (image.Extent{Width: 250, Height: 187.5}) {
		t.Errorf("got %#v", layout.Canvas)
	}
	if layout.MaxScale != 16 || layout.MaxLevel != 4 {
		t.Errorf("got %v and %v", layout.MaxScale, layout.MaxLevel)
	}
	if want := upstream.URL + "/iiif/a/full/250,187/0/default.jpg"; layout.Background != want {
		t.Errorf("got %#v want %#v", layout.Background, want)
	}
}

func TestTileHandlers(t *testing.T) {
	upstream, ts := newServers(t)
	address := upstream.URL + "/iiif/a/info.json"
	want := upstream.URL + "/iiif/a/256,0,256,256/256,/0/default.jpg"

	resp := get(ts, "/tile/3/1/0", address, "")
	var tile image.Tile
	err := json.NewDecoder(resp.Body).Decode(&tile)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if tile.URL != want {
		t.Errorf("got %#v want %#v", tile.URL, want)
	}

	resp = get(ts, "/tiles/3/1/0", address, "")
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "tile /iiif/a/256,0,256,256/256,/0/default.jpg" {
		t.Errorf("got %#v", string(body))
	}

	resp = get(ts, "/tiles/3/1/0", address, "format=png")
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.HasSuffix(string(body), "/default.png") {
		t.Errorf("the format should apply: got %#v", string(body))
	}

	resp = get(ts, "/background", address, "")
	resp.Body.Close()
	if location := resp.Header.Get("Location"); location != upstream.URL+"/iiif/a/full/500,375/0/default.png" {
		t.Errorf("got %#v", location)
	}
}

func TestTileHeaders(t *testing.T) {
	upstream, ts := newServers(t)

	resp := get(ts, "/tiles/3/0/0", upstream.URL+"/iiif/a/info.json", "")
	resp.Body.Close()

	var tests = []struct {
		header string
		want   string
	}{
		{"Accept-Ranges", "bytes"},
		{"Cache-Control", "max-age=3600, public"},
		{"Content-Type", "text/plain; charset=utf-8"},
	}

	for _, test := range tests {
		if value := resp.Header.Get(test.header); value != test.want {
			t.Errorf("%s: got %#v want %#v", test.header, value, test.want)
		}
	}
	if etag := resp.Header.Get("ETag"); etag == "" {
		t.Errorf("handler should have a ETag header, got nothing.")
	}
}

func TestTileRange(t *testing.T) {
	upstream, ts := newServers(t)

	u := ts.URL + "/tiles/3/0/0?url=" + url.QueryEscape(upstream.URL+"/iiif/a/info.json")
	req, err := http.NewRequest("GET", u, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Range", "bytes=0-3")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	if status := resp.StatusCode; status != http.StatusPartialContent {
		t.Errorf("handler returned wrong status code: got %#v want %#v", status, http.StatusPartialContent)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "tile" {
		t.Errorf("got %#v want \"tile\"", string(body))
	}
}

func TestForgetHandler(t *testing.T) {
	upstream, ts := newServers(t)
	address := upstream.URL + "/iiif/a/info.json"

	resp := get(ts, "/background", address, "format=png")
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/session?url="+url.QueryEscape(address), nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	resp.Body.Close()
	if status := resp.StatusCode; status != http.StatusNoContent {
		t.Errorf("handler returned wrong status code: got %#v want %#v", status, http.StatusNoContent)
	}

	resp = get(ts, "/background", address, "")
	resp.Body.Close()
	if location := resp.Header.Get("Location"); !strings.HasSuffix(location, "/default.jpg") {
		t.Errorf("a new session starts from the defaults: got %#v", location)
	}
}
