package viewer

import (
	"context"
	"sync"

	"github.com/golang/groupcache/singleflight"
	"github.com/greut/tileview/config"
	"github.com/greut/tileview/image"
	"github.com/greut/tileview/source"
)

// Loader turns addresses into descriptors and sessions.
type Loader struct {
	// Metadata reads property documents and raw images.
	Metadata source.Source
	// Tiles reads the tiles, they are cached per session.
	Tiles source.Source

	Options   image.Options
	Viewport  image.Extent
	TileBytes int64
}

// NewLoader builds the sources described by the configuration. Property
// documents go through a shared groupcache group.
func NewLoader(cfg *config.Config) *Loader {
	auto := source.NewAuto(source.Options{
		Root:      cfg.Root,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.TimeoutDuration(),
	})

	var metadata source.Source = auto
	if cfg.Cache.MetadataBytes > 0 {
		metadata = source.NewGroup(auto, cfg.Cache.MetadataBytes)
	}

	return &Loader{
		Metadata: metadata,
		Tiles:    auto,
		Options: image.Options{
			TileSize:       cfg.TileSize,
			Source:         metadata,
			RemoteProfiles: cfg.RemoteProfiles,
		},
		Viewport:  image.Extent{Width: cfg.Viewport.Width, Height: cfg.Viewport.Height},
		TileBytes: cfg.Cache.TilesBytes,
	}
}

// Load detects, fetches and parses the image at address.
func (l *Loader) Load(ctx context.Context, address string) (image.Descriptor, error) {
	return image.Load(ctx, address, l.Metadata, l.Options)
}

// Open loads the image and lays it out in viewport, the default viewport
// being used when it is empty.
func (l *Loader) Open(ctx context.Context, address string, viewport image.Extent) (*Session, error) {
	d, err := l.Load(ctx, address)
	if err != nil {
		return nil, err
	}
	if viewport.Width <= 0 || viewport.Height <= 0 {
		viewport = l.Viewport
	}
	return NewSession(address, d, viewport, l.Tiles, l.Options.Decoder, l.TileBytes)
}

// Registry keeps one session per address.
type Registry struct {
	loader *Loader

	mu       sync.Mutex
	sessions map[string]*Session
	loads    singleflight.Group
}

// NewRegistry creates an empty registry.
func NewRegistry(loader *Loader) *Registry {
	return &Registry{
		loader:   loader,
		sessions: make(map[string]*Session),
	}
}

// Loader returns the loader used to open the sessions.
func (r *Registry) Loader() *Loader {
	return r.loader
}

// Session returns the session of address, loading the image the first time.
// Concurrent first requests share the load, which keeps running when one of
// them gives up on ctx.
func (r *Registry) Session(ctx context.Context, address string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[address]
	r.mu.Unlock()
	if ok {
		return s, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	done := make(chan opened, 1)
	go func() {
		value, err := r.loads.Do(address, func() (interface{}, error) {
			r.mu.Lock()
			previous, ok := r.sessions[address]
			r.mu.Unlock()
			if ok {
				return previous, nil
			}

			s, err := r.loader.Open(loadCtx, address, image.Extent{})
			if err != nil {
				return nil, err
			}

			r.mu.Lock()
			defer r.mu.Unlock()
			if previous, ok := r.sessions[address]; ok {
				s.Close()
				return previous, nil
			}
			r.sessions[address] = s
			debug("Session opened for %s", address)
			return s, nil
		})
		if err != nil {
			done <- opened{err: err}
			return
		}
		done <- opened{session: value.(*Session)}
	}()

	select {
	case o := <-done:
		return o.session, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type opened struct {
	session *Session
	err     error
}

// Forget closes and removes the session of address.
func (r *Registry) Forget(address string) {
	r.mu.Lock()
	s, ok := r.sessions[address]
	delete(r.sessions, address)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
