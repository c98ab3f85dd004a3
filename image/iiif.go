package image

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/greut/tileview/profile"
	"github.com/mitchellh/mapstructure"
)

// IIIF property document and contexts.
const (
	IIIFPropertyFile = "info.json"
	ContextV1        = "http://library.stanford.edu/iiif/image-api/1.1/context.json"
	ContextV2        = "http://iiif.io/api/image/2/context.json"
	contextV2Secure  = "https://iiif.io/api/image/2/context.json"
)

// iiif is shared by both IIIF versions.
type iiif struct {
	base

	profile      *profile.Profile
	tileSizes    []Size
	scaleFactors []float64

	selection sync.RWMutex
	format    string
	quality   string
}

func (i *iiif) Protocol() Protocol {
	return ProtocolIIIF
}

func (i *iiif) TileSizes() []Size {
	return append([]Size(nil), i.tileSizes...)
}

func (i *iiif) ScaleFactors() []float64 {
	return append([]float64(nil), i.scaleFactors...)
}

func (i *iiif) FitPolicy() FitPolicy {
	return FitHalving
}

// Profile exposes the capability set, it may grow after the load.
func (i *iiif) Profile() *profile.Profile {
	return i.profile
}

func (i *iiif) Formats() []string {
	return i.profile.Formats()
}

func (i *iiif) Qualities() []string {
	return i.profile.Qualities()
}

func (i *iiif) Format() string {
	i.selection.RLock()
	defer i.selection.RUnlock()
	return i.format
}

func (i *iiif) Quality() string {
	i.selection.RLock()
	defer i.selection.RUnlock()
	return i.quality
}

func (i *iiif) SetFormat(format string) bool {
	if !i.profile.HasFormat(format) {
		return false
	}
	i.selection.Lock()
	i.format = format
	i.selection.Unlock()
	return true
}

func (i *iiif) SetQuality(quality string) bool {
	if !i.profile.HasQuality(quality) {
		return false
	}
	i.selection.Lock()
	i.quality = quality
	i.selection.Unlock()
	return true
}

func (i *iiif) candidateScales(float64) []float64 {
	return i.scaleFactors
}

func (i *iiif) maxLevel(maxScale float64) int {
	return roundLevel(maxScale)
}

func (i *iiif) tileSizeAt(level int) Size {
	if level >= 0 && level < len(i.tileSizes) {
		return i.tileSizes[level]
	}
	return i.tileSizes[len(i.tileSizes)-1]
}

func (i *iiif) tile(g Geometry, level, column, row int) (Tile, bool) {
	if level < 0 || level > g.MaxLevel {
		return Tile{}, false
	}

	ts := i.tileSizeAt(level)
	s := g.Downsample(level)
	region, ok := clip(column, row, ts, s, i.width, i.height)
	if !ok {
		return Tile{}, false
	}

	// edge tiles keep the declared size in the URL, the server clips them
	size := Size{ceilDiv(region.Width, s), ceilDiv(region.Height, s)}
	url := fmt.Sprintf("%s/%s/%s/0/%s.%s", i.baseURL, region, sizeParam(ts), i.Quality(), i.Format())

	return Tile{
		Level:  level,
		Column: column,
		Row:    row,
		Region: region,
		Size:   size,
		URL:    url,
	}, true
}

func (i *iiif) background(g Geometry) string {
	return fmt.Sprintf("%s/full/%d,%d/0/%s.%s", i.baseURL, int(g.Canvas.Width), int(g.Canvas.Height), i.Quality(), i.Format())
}

// IIIFv1 is an image served with the IIIF Image API 1.1.
type IIIFv1 struct {
	iiif

	// ComplianceURL is the declared compliance level.
	ComplianceURL string
}

// Variant implements Descriptor.
func (*IIIFv1) Variant() Variant {
	return VariantIIIFv1
}

// IIIFv2 is an image served with the IIIF Image API 2.x.
type IIIFv2 struct {
	iiif

	sizes  []Size
	rights *Rights
	merged chan struct{}
}

// Variant implements Descriptor.
func (*IIIFv2) Variant() Variant {
	return VariantIIIFv2
}

// Sizes are the preferred full image sizes declared by the server.
func (i *IIIFv2) Sizes() []Size {
	return append([]Size(nil), i.sizes...)
}

// Rights holds the attribution, license and logo, nil when absent.
func (i *IIIFv2) Rights() *Rights {
	return i.rights
}

// ProfileMerged is closed once every remote profile has been merged, or has
// failed to.
func (i *IIIFv2) ProfileMerged() <-chan struct{} {
	return i.merged
}

type infoV1 struct {
	Formats      []string    `mapstructure:"formats"`
	Qualities    []string    `mapstructure:"qualities"`
	ScaleFactors []int       `mapstructure:"scale_factors"`
	TileWidth    int         `mapstructure:"tile_width"`
	TileHeight   int         `mapstructure:"tile_height"`
	Profile      interface{} `mapstructure:"profile"`
}

type infoV2 struct {
	Profile     interface{} `mapstructure:"profile"`
	Sizes       []Size      `mapstructure:"sizes"`
	Tiles       []tileInfo  `mapstructure:"tiles"`
	Attribution interface{} `mapstructure:"attribution"`
	License     interface{} `mapstructure:"license"`
	Logo        interface{} `mapstructure:"logo"`
}

// tileInfo accepts both {width, height} and {size: {width, height}}.
type tileInfo struct {
	Width        int   `mapstructure:"width"`
	Height       int   `mapstructure:"height"`
	Size         *Size `mapstructure:"size"`
	ScaleFactors []int `mapstructure:"scaleFactors"`
}

func (t tileInfo) size(fallback int) Size {
	w, h := t.Width, t.Height
	if t.Size != nil {
		w, h = t.Size.Width, t.Size.Height
	}
	return squareSize(w, h, fallback)
}

// ParseIIIF decodes an info.json document, the @context selects the version.
func ParseIIIF(ctx context.Context, data []byte, opts Options) (Descriptor, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, malformed("info.json: %v", err)
	}

	version, _ := raw["@context"].(string)
	switch version {
	case ContextV1:
		d, err := parseV1(raw, opts)
		if err != nil {
			return nil, err
		}
		return d, nil
	case ContextV2, contextV2Secure:
		d, err := parseV2(ctx, raw, opts)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, fmt.Errorf("%w: %#v", ErrUnsupportedVersion, raw["@context"])
}

func parseBase(raw map[string]interface{}) (string, int, int, error) {
	id, ok := raw["@id"].(string)
	if !ok || id == "" {
		return "", 0, 0, malformed("info.json: `@id` is missing")
	}
	width, err := requiredInt(raw, "width")
	if err != nil {
		return "", 0, 0, err
	}
	height, err := requiredInt(raw, "height")
	if err != nil {
		return "", 0, 0, err
	}
	return strings.TrimSuffix(id, "/"), width, height, nil
}

func requiredInt(raw map[string]interface{}, key string) (int, error) {
	value, ok := raw[key]
	if !ok {
		return 0, malformed("info.json: `%s` is missing", key)
	}
	f, ok := value.(float64)
	if !ok || f <= 0 || f != math.Trunc(f) {
		return 0, malformed("info.json: `%s` is not a positive integer: %#v", key, value)
	}
	return int(f), nil
}

func parseV1(raw map[string]interface{}, opts Options) (*IIIFv1, error) {
	id, width, height, err := parseBase(raw)
	if err != nil {
		return nil, err
	}

	var info infoV1
	if err := mapstructure.Decode(raw, &info); err != nil {
		return nil, malformed("info.json: %v", err)
	}

	p := profile.New([]string{"jpg"}, []string{"native"})
	p.AddFormats(info.Formats...)
	p.AddQualities(info.Qualities...)

	ts := squareSize(info.TileWidth, info.TileHeight, opts.tileSize())
	levels := len(info.ScaleFactors)
	if levels == 0 {
		levels = 1
	}

	d := &IIIFv1{
		iiif: iiif{
			base:         base{baseURL: id, width: width, height: height},
			profile:      p,
			tileSizes:    repeat(ts, levels),
			scaleFactors: ascending(info.ScaleFactors),
			format:       "jpg",
			quality:      "native",
		},
	}
	d.ComplianceURL, _ = info.Profile.(string)

	debug("IIIF 1.1 %s (%dx%d), %d levels", d.baseURL, d.width, d.height, levels)
	return d, nil
}

func parseV2(ctx context.Context, raw map[string]interface{}, opts Options) (*IIIFv2, error) {
	id, width, height, err := parseBase(raw)
	if err != nil {
		return nil, err
	}

	var info infoV2
	if err := mapstructure.Decode(raw, &info); err != nil {
		return nil, malformed("info.json: %v", err)
	}

	d := &IIIFv2{
		iiif: iiif{
			base:    base{baseURL: id, width: width, height: height},
			profile: profile.New([]string{"jpg"}, []string{"default"}),
			format:  "jpg",
			quality: "default",
		},
		sizes:  info.Sizes,
		rights: parseRights(info.Attribution, info.License, info.Logo),
		merged: make(chan struct{}),
	}

	var factors []int
	for _, t := range info.Tiles {
		levels := len(t.ScaleFactors)
		if levels == 0 {
			levels = 1
		}
		d.tileSizes = append(d.tileSizes, repeat(t.size(opts.tileSize()), levels)...)
		factors = append(factors, t.ScaleFactors...)
	}
	if len(d.tileSizes) == 0 {
		d.tileSizes = []Size{{opts.tileSize(), opts.tileSize()}}
	}
	d.scaleFactors = ascending(factors)

	var remotes []string
	for _, entry := range profileEntries(info.Profile) {
		switch v := entry.(type) {
		case map[string]interface{}:
			doc, err := profile.Decode(v)
			if err != nil {
				debug("Ignoring inline profile: %v", err)
				continue
			}
			d.profile.Merge(doc)
		case string:
			remotes = append(remotes, v)
		}
	}

	d.mergeRemote(context.WithoutCancel(ctx), remotes, opts)

	debug("IIIF 2 %s (%dx%d), %d levels", d.baseURL, d.width, d.height, len(d.tileSizes))
	return d, nil
}

// mergeRemote fetches the remote profiles in the background. A profile that
// cannot be read is skipped.
func (i *IIIFv2) mergeRemote(ctx context.Context, urls []string, opts Options) {
	if opts.Source == nil || !opts.RemoteProfiles || len(urls) == 0 {
		close(i.merged)
		return
	}

	var wg sync.WaitGroup
	for _, u := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			doc, err := profile.Fetch(ctx, opts.Source, u)
			if err != nil {
				debug("Profile %s not merged: %v", u, err)
				return
			}
			i.profile.Merge(doc)
		}(u)
	}

	go func() {
		wg.Wait()
		close(i.merged)
	}()
}

// profileEntries accepts a single profile as well as a list.
func profileEntries(value interface{}) []interface{} {
	switch v := value.(type) {
	case []interface{}:
		return v
	case nil:
		return nil
	}
	return []interface{}{value}
}

func squareSize(w, h, fallback int) Size {
	switch {
	case w > 0 && h > 0:
		return Size{w, h}
	case w > 0:
		return Size{w, w}
	case h > 0:
		return Size{h, h}
	}
	return Size{fallback, fallback}
}

func repeat(s Size, n int) []Size {
	out := make([]Size, n)
	for i := range out {
		out[i] = s
	}
	return out
}

// ascending sorts the scale factors, dropping duplicates and non positive
// values.
func ascending(factors []int) []float64 {
	sorted := append([]int(nil), factors...)
	sort.Ints(sorted)

	var out []float64
	for _, f := range sorted {
		if f <= 0 || (len(out) > 0 && out[len(out)-1] == float64(f)) {
			continue
		}
		out = append(out, float64(f))
	}
	return out
}
