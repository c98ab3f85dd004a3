package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/greut/tileview/cache"
	"github.com/greut/tileview/image"
	"github.com/greut/tileview/source"
)

// errorsBuffer is the number of tile errors kept until someone reads them.
const errorsBuffer = 64

// Session is the state of one loaded image: its geometry inside the current
// viewport and the tiles fetched so far.
type Session struct {
	address    string
	descriptor image.Descriptor
	source     source.Source
	decoder    image.Decoder
	tiles      *cache.Memory
	errors     chan error

	mu          sync.Mutex
	geometry    image.Geometry
	interacting bool
	pending     *image.Extent
	level       int
	ctx         context.Context
	cancel      context.CancelFunc
	closed      bool
}

// NewSession lays the descriptor out in viewport. Tiles are read through src
// and checked with dec; tileBytes bounds the tile cache, zero means no bound.
func NewSession(address string, d image.Descriptor, viewport image.Extent, src source.Source, dec image.Decoder, tileBytes int64) (*Session, error) {
	g, err := image.ResolveGeometry(d, viewport)
	if err != nil {
		return nil, err
	}
	if dec == nil {
		dec = image.BimgDecoder{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		address:    address,
		descriptor: d,
		source:     src,
		decoder:    dec,
		tiles:      cache.New(tileBytes),
		errors:     make(chan error, errorsBuffer),
		geometry:   g,
		level:      g.MaxLevel,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Address is the address the image was loaded from.
func (s *Session) Address() string {
	return s.address
}

// Descriptor returns the loaded image.
func (s *Session) Descriptor() image.Descriptor {
	return s.descriptor
}

// Cache exposes the tile store shared by the detail and background layers.
func (s *Session) Cache() *cache.Memory {
	return s.tiles
}

// Geometry returns the current layout.
func (s *Session) Geometry() image.Geometry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.geometry
}

// Errors receives the tile errors. They never end the session.
func (s *Session) Errors() <-chan error {
	return s.errors
}

// Resize adapts the scale bounds to a new viewport. While an interaction is
// running the new viewport is only recorded and applied once it ends.
func (s *Session) Resize(viewport image.Extent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interacting {
		s.pending = &viewport
		return nil
	}
	return s.adjust(viewport)
}

func (s *Session) adjust(viewport image.Extent) error {
	g, err := s.geometry.Adjust(s.descriptor, viewport)
	if err != nil {
		return err
	}
	s.geometry = g
	return nil
}

// BeginInteraction marks the start of a zoom gesture.
func (s *Session) BeginInteraction() {
	s.mu.Lock()
	s.interacting = true
	s.mu.Unlock()
}

// EndInteraction applies the viewport recorded during the gesture, if any.
func (s *Session) EndInteraction() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interacting = false
	if s.pending == nil {
		return nil
	}
	viewport := *s.pending
	s.pending = nil
	return s.adjust(viewport)
}

// SetFormat selects another format. The cached tiles are dropped and the
// running fetches cancelled when the selection changes.
func (s *Session) SetFormat(format string) bool {
	previous := s.descriptor.Format()
	if !s.descriptor.SetFormat(format) {
		return false
	}
	if previous != format {
		s.reset()
	}
	return true
}

// SetQuality selects another quality, like SetFormat.
func (s *Session) SetQuality(quality string) bool {
	previous := s.descriptor.Quality()
	if !s.descriptor.SetQuality(quality) {
		return false
	}
	if previous != quality {
		s.reset()
	}
	return true
}

func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.tiles.Clear()
}

// Level is the level drawn by the detail layer.
func (s *Session) Level() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// SwitchLevel changes the level of the detail layer. Only its tiles and those
// of the last usable level below it, kept for the background, stay cached.
func (s *Session) SwitchLevel(level int) {
	s.mu.Lock()
	s.level = level
	s.mu.Unlock()

	keep := s.tiles.LastUsableLevel(level)
	for _, l := range s.tiles.Levels() {
		if l != level && l != keep {
			s.tiles.InvalidateLevel(l)
		}
	}
}

// SwitchScale switches to the level drawn at the given zoom scale.
func (s *Session) SwitchScale(scale float64) int {
	level := s.Geometry().LevelForScale(scale)
	s.SwitchLevel(level)
	return level
}

// Resolve computes the region and URL of a tile with the current geometry.
func (s *Session) Resolve(level, column, row int) (image.Tile, bool) {
	return image.ResolveTile(s.descriptor, s.Geometry(), level, column, row)
}

// Background is the address of the image drawn behind the tiles.
func (s *Session) Background() string {
	return image.BackgroundURL(s.descriptor, s.Geometry())
}

// Tile returns the bytes of a tile, fetching them once. Coordinates outside
// of the image give ErrNoTile. Fetch and decode failures are returned and
// reported on Errors, unless the fetch was cancelled by a reset.
func (s *Session) Tile(ctx context.Context, level, column, row int) ([]byte, error) {
	// the URL must be resolved under the context a reset cancels
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, context.Canceled
	}
	sessionCtx := s.ctx
	s.mu.Unlock()

	t, ok := s.Resolve(level, column, row)
	if !ok {
		return nil, fmt.Errorf("%w: %d:[%d,%d]", image.ErrNoTile, level, column, row)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(sessionCtx, cancel)
	defer stop()

	key := cache.Key{Level: level, Column: column, Row: row}
	data, err := s.tiles.Load(ctx, key, func(ctx context.Context) ([]byte, error) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(sessionCtx, cancel)
		defer stop()

		data, err := s.source.Read(ctx, t.URL)
		if err != nil {
			return nil, image.NewFetchError(image.ErrTileFetchFailed, t.URL, err)
		}
		if err := sessionCtx.Err(); err != nil {
			return nil, err
		}
		if err := s.decoder.Validate(data); err != nil {
			return nil, fmt.Errorf("%s: %w", t.URL, err)
		}
		return data, nil
	})
	if err != nil {
		if sessionCtx.Err() != nil {
			debug("Discarding %s, session was reset", key)
			return nil, sessionCtx.Err()
		}
		s.report(err)
		return nil, err
	}
	return data, nil
}

func (s *Session) report(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.errors <- err:
	default:
		debug("Dropping tile error: %v", err)
	}
}

// Purge drops every cached tile, e.g. on memory pressure.
func (s *Session) Purge() {
	s.tiles.Clear()
}

// Close cancels the running fetches and releases the tiles.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	s.tiles.Clear()
	close(s.errors)
}
