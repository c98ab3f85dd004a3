package viewer

import (
	"bytes"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/greut/tileview/config"
	"github.com/greut/tileview/image"
)

// Info describes a loaded image.
type Info struct {
	Address      string       `json:"address"`
	Protocol     string       `json:"protocol"`
	Variant      string       `json:"variant"`
	BaseURL      string       `json:"baseUrl"`
	Width        int          `json:"width"`
	Height       int          `json:"height"`
	TileSizes    []image.Size `json:"tileSizes"`
	ScaleFactors []float64    `json:"scaleFactors,omitempty"`
	Formats      []string     `json:"formats,omitempty"`
	Qualities    []string     `json:"qualities,omitempty"`
	Format       string       `json:"format,omitempty"`
	Quality      string       `json:"quality,omitempty"`
	Attribution  string       `json:"attribution,omitempty"`
	License      string       `json:"license,omitempty"`
	Logo         string       `json:"logo,omitempty"`
}

// NewInfo summarizes a descriptor. lang picks the attribution language.
func NewInfo(address string, d image.Descriptor, lang string) Info {
	info := Info{
		Address:      address,
		Protocol:     d.Protocol().String(),
		Variant:      d.Variant().String(),
		BaseURL:      d.BaseURL(),
		Width:        d.Width(),
		Height:       d.Height(),
		TileSizes:    d.TileSizes(),
		ScaleFactors: d.ScaleFactors(),
		Formats:      d.Formats(),
		Qualities:    d.Qualities(),
		Format:       d.Format(),
		Quality:      d.Quality(),
	}
	if v2, ok := d.(*image.IIIFv2); ok {
		if rights := v2.Rights(); rights != nil {
			info.Attribution = rights.Attribution(lang)
			info.License = rights.License
			info.Logo = rights.Logo
		}
	}
	return info
}

// Layout is the geometry of an image with its background.
type Layout struct {
	image.Geometry
	Background string `json:"background"`
}

// session reads the url parameter and returns its session, applying the
// format and quality parameters.
func session(r *http.Request) (*Session, error) {
	address := r.URL.Query().Get("url")
	if address == "" {
		return nil, HTTPError{http.StatusBadRequest, "missing url parameter"}
	}

	registry, err := registryFrom(r)
	if err != nil {
		return nil, err
	}

	s, err := registry.Session(r.Context(), address)
	if err != nil {
		return nil, err
	}

	query := r.URL.Query()
	if format := query.Get("format"); format != "" && !s.SetFormat(format) {
		return nil, HTTPError{http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format)}
	}
	if quality := query.Get("quality"); quality != "" && !s.SetQuality(quality) {
		return nil, HTTPError{http.StatusBadRequest, fmt.Sprintf("unsupported quality %q", quality)}
	}
	return s, nil
}

func registryFrom(r *http.Request) (*Registry, error) {
	registry, _ := r.Context().Value(ContextKey("registry")).(*Registry)
	if registry == nil {
		return nil, HTTPError{http.StatusInternalServerError, "no registry"}
	}
	return registry, nil
}

// viewport reads the width and height parameters, ok is false when they are
// absent.
func viewport(r *http.Request) (image.Extent, bool, error) {
	query := r.URL.Query()
	if query.Get("width") == "" && query.Get("height") == "" {
		return image.Extent{}, false, nil
	}

	width, err := strconv.ParseFloat(query.Get("width"), 64)
	if err != nil {
		return image.Extent{}, false, HTTPError{http.StatusBadRequest, fmt.Sprintf("width: %v", err)}
	}
	height, err := strconv.ParseFloat(query.Get("height"), 64)
	if err != nil {
		return image.Extent{}, false, HTTPError{http.StatusBadRequest, fmt.Sprintf("height: %v", err)}
	}
	return image.Extent{Width: width, Height: height}, true, nil
}

// coordinates reads the level, column and row route variables.
func coordinates(r *http.Request) (int, int, int, error) {
	vars := mux.Vars(r)
	var values [3]int
	for i, name := range []string{"level", "column", "row"} {
		v, err := strconv.Atoi(vars[name])
		if err != nil {
			return 0, 0, 0, HTTPError{http.StatusBadRequest, fmt.Sprintf("%s: %v", name, err)}
		}
		values[i] = v
	}
	return values[0], values[1], values[2], nil
}

// InfoHandler responds with the normalized image description.
func InfoHandler(w http.ResponseWriter, r *http.Request) {
	s, err := session(r)
	if err != nil {
		writeError(w, err)
		return
	}

	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = r.Header.Get("Accept-Language")
	}
	writeJSON(w, r, NewInfo(s.Address(), s.Descriptor(), lang))
}

// GeometryHandler lays the image out in the requested viewport, or the
// session's one. The session itself is left untouched.
func GeometryHandler(w http.ResponseWriter, r *http.Request) {
	s, err := session(r)
	if err != nil {
		writeError(w, err)
		return
	}

	g := s.Geometry()
	if v, ok, err := viewport(r); err != nil {
		writeError(w, err)
		return
	} else if ok {
		g, err = image.ResolveGeometry(s.Descriptor(), v)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, r, Layout{g, image.BackgroundURL(s.Descriptor(), g)})
}

// resize applies the requested viewport to the session, if any.
func resize(r *http.Request, s *Session) error {
	v, ok, err := viewport(r)
	if err != nil || !ok {
		return err
	}
	return s.Resize(v)
}

// TileHandler responds with the region and URL of a tile.
func TileHandler(w http.ResponseWriter, r *http.Request) {
	level, column, row, err := coordinates(r)
	if err != nil {
		writeError(w, err)
		return
	}

	s, err := session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := resize(r, s); err != nil {
		writeError(w, err)
		return
	}

	t, ok := s.Resolve(level, column, row)
	if !ok {
		writeError(w, fmt.Errorf("%w: %d:[%d,%d]", image.ErrNoTile, level, column, row))
		return
	}
	writeJSON(w, r, t)
}

// TileBytesHandler responds with the tile itself, read through the session
// cache.
func TileBytesHandler(w http.ResponseWriter, r *http.Request) {
	level, column, row, err := coordinates(r)
	if err != nil {
		writeError(w, err)
		return
	}

	s, err := session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := resize(r, s); err != nil {
		writeError(w, err)
		return
	}

	data, err := s.Tile(r.Context(), level, column, row)
	if err != nil {
		writeError(w, err)
		return
	}

	header := w.Header()
	header.Set("Content-Type", http.DetectContentType(data))
	header.Set("ETag", getETag(r.URL.String()))
	setCacheControl(w, r)
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(data))
}

// BackgroundHandler redirects to the image drawn behind the tiles.
func BackgroundHandler(w http.ResponseWriter, r *http.Request) {
	s, err := session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := resize(r, s); err != nil {
		writeError(w, err)
		return
	}

	background := s.Background()
	if background == "" {
		writeError(w, HTTPError{http.StatusNotFound, "no background"})
		return
	}
	http.Redirect(w, r, background, http.StatusSeeOther)
}

// ForgetHandler closes the session of an address, its tiles are dropped.
func ForgetHandler(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("url")
	if address == "" {
		writeError(w, HTTPError{http.StatusBadRequest, "missing url parameter"})
		return
	}

	registry, err := registryFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	registry.Forget(address)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, r *http.Request, value interface{}) {
	buffer, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		http.Error(w, "Cannot encode response", http.StatusInternalServerError)
		return
	}

	header := w.Header()
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/ld+json") {
		header.Set("Content-Type", "application/ld+json")
	} else {
		header.Set("Content-Type", "application/json")
	}
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	w.Write(buffer)
}

func setCacheControl(w http.ResponseWriter, r *http.Request) {
	cfg, _ := r.Context().Value(ContextKey("config")).(*config.Config)
	if cfg == nil || cfg.Cache.HTTP <= 0 {
		return
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%v, public", cfg.Cache.HTTP))
}

func getETag(str string) string {
	return fmt.Sprintf("\"%x\"", sha1.Sum([]byte(str)))
}
