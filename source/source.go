// Package source reads property documents and tiles from remote servers or
// the local disk.
package source

import (
	"context"
	"strings"
	"time"

	d "github.com/tj/go-debug"
)

var debug = d.Debug("tileview:source")

// Source reads the whole content behind an address.
type Source interface {
	Read(ctx context.Context, uri string) ([]byte, error)
}

// Func adapts a plain function to the Source interface.
type Func func(ctx context.Context, uri string) ([]byte, error)

// Read calls f.
func (f Func) Read(ctx context.Context, uri string) ([]byte, error) {
	return f(ctx, uri)
}

// Options configures the default sources.
type Options struct {
	Root      string
	UserAgent string
	Timeout   time.Duration
}

// Auto dispatches http(s) addresses to the network and anything else to the
// disk.
type Auto struct {
	Remote Source
	Local  Source
}

// NewAuto builds the default network and disk sources.
func NewAuto(opts Options) *Auto {
	return &Auto{
		Remote: NewHTTP(opts.Timeout, opts.UserAgent),
		Local:  NewDisk(opts.Root),
	}
}

// Read implements Source.
func (a *Auto) Read(ctx context.Context, uri string) ([]byte, error) {
	if IsRemote(uri) {
		return a.Remote.Read(ctx, uri)
	}
	return a.Local.Read(ctx, uri)
}

// IsRemote tells whether the address must go through HTTP.
func IsRemote(uri string) bool {
	lower := strings.ToLower(uri)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
