// Package profile keeps the capabilities an IIIF image service advertises.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/greut/tileview/source"
	"github.com/mitchellh/mapstructure"
)

// Document is an IIIF 2 image profile as found inline in info.json or behind
// a profile URL.
type Document struct {
	Context   string   `mapstructure:"@context"`
	ID        string   `mapstructure:"@id"`
	Type      string   `mapstructure:"@type"` // empty or iiif:ImageProfile
	Formats   []string `mapstructure:"formats"`
	MaxArea   int      `mapstructure:"maxArea"`
	MaxHeight int      `mapstructure:"maxHeight"`
	MaxWidth  int      `mapstructure:"maxWidth"`
	Qualities []string `mapstructure:"qualities"`
	Supports  []string `mapstructure:"supports"`
}

// Decode converts a raw JSON object into a Document.
func Decode(raw map[string]interface{}) (*Document, error) {
	var doc Document
	if err := mapstructure.Decode(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Fetch downloads and decodes a remote profile.
func Fetch(ctx context.Context, src source.Source, uri string) (*Document, error) {
	body, err := src.Read(ctx, uri)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("profile %s: %v", uri, err)
	}
	return Decode(raw)
}

// Profile is the capability set of one image. It may grow after the image
// has been loaded, all the accessors are safe for concurrent use.
type Profile struct {
	mu        sync.RWMutex
	formats   map[string]struct{}
	qualities map[string]struct{}
	supports  map[string]struct{}
	maxArea   int
	maxWidth  int
	maxHeight int
}

// New creates a profile holding the given defaults.
func New(formats, qualities []string) *Profile {
	p := &Profile{
		formats:   make(map[string]struct{}),
		qualities: make(map[string]struct{}),
	}
	p.AddFormats(formats...)
	p.AddQualities(qualities...)
	return p
}

// AddFormats extends the supported formats.
func (p *Profile) AddFormats(values ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, v := range values {
		p.formats[v] = struct{}{}
	}
}

// AddQualities extends the supported qualities.
func (p *Profile) AddQualities(values ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, v := range values {
		p.qualities[v] = struct{}{}
	}
}

// Merge folds a profile document into p. maxHeight falls back to maxWidth
// when the service only declares the latter.
func (p *Profile) Merge(doc *Document) {
	if doc == nil {
		return
	}

	p.AddFormats(doc.Formats...)
	p.AddQualities(doc.Qualities...)

	p.mu.Lock()
	defer p.mu.Unlock()

	if doc.MaxArea != 0 {
		p.maxArea = doc.MaxArea
	}
	if doc.MaxHeight != 0 {
		p.maxHeight = doc.MaxHeight
	}
	if doc.MaxWidth != 0 {
		p.maxWidth = doc.MaxWidth
		if p.maxHeight == 0 {
			p.maxHeight = doc.MaxWidth
		}
	}
	if doc.Supports != nil {
		p.supports = make(map[string]struct{}, len(doc.Supports))
		for _, s := range doc.Supports {
			p.supports[s] = struct{}{}
		}
	}
}

// Formats returns the supported formats, sorted.
func (p *Profile) Formats() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return keys(p.formats)
}

// Qualities returns the supported qualities, sorted.
func (p *Profile) Qualities() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return keys(p.qualities)
}

// Supports returns the declared features, sorted.
func (p *Profile) Supports() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return keys(p.supports)
}

// HasFormat tells whether format may be requested.
func (p *Profile) HasFormat(format string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.formats[format]
	return ok
}

// HasQuality tells whether quality may be requested.
func (p *Profile) HasQuality(quality string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.qualities[quality]
	return ok
}

// Limits returns maxArea, maxWidth and maxHeight, 0 when undeclared.
func (p *Profile) Limits() (int, int, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxArea, p.maxWidth, p.maxHeight
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
