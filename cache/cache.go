// Package cache stores the fetched tiles of one image session.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/golang/groupcache/singleflight"
	d "github.com/tj/go-debug"
)

var debug = d.Debug("tileview:cache")

// Key identifies a tile of the pyramid.
type Key struct {
	Level  int `json:"level"`
	Column int `json:"column"`
	Row    int `json:"row"`
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d,%d", k.Level, k.Column, k.Row)
}

// FetchFunc reads the bytes of one tile. Its context belongs to the cache
// generation, not to any caller.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Memory is an in-memory tile store. Concurrent loads of the same key share
// one fetch, and a Clear cancels and discards the fetches started before it.
type Memory struct {
	mu         sync.Mutex
	entries    *lru.Cache
	levels     map[int]map[Key]struct{}
	size       int64
	maxBytes   int64
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc

	flight singleflight.Group
}

type result struct {
	data []byte
	err  error
}

// New creates a cache holding at most maxBytes of tiles, zero means
// unbounded. When bounded, the least recently used tiles go first.
func New(maxBytes int64) *Memory {
	m := &Memory{
		entries:  lru.New(0),
		levels:   make(map[int]map[Key]struct{}),
		maxBytes: maxBytes,
	}
	m.entries.OnEvicted = m.evicted
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// evicted runs with mu held.
func (m *Memory) evicted(k lru.Key, value interface{}) {
	key := k.(Key)
	m.size -= int64(len(value.([]byte)))

	if level, ok := m.levels[key.Level]; ok {
		delete(level, key)
		if len(level) == 0 {
			delete(m.levels, key.Level)
		}
	}
}

// Get returns the tile bytes if present.
func (m *Memory) Get(key Key) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.entries.Get(key)
	if !ok {
		return nil, false
	}
	return value.([]byte), true
}

// Put stores the tile bytes, the last writer wins.
func (m *Memory) Put(key Key, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, data)
}

func (m *Memory) put(key Key, data []byte) {
	m.entries.Remove(key)
	m.entries.Add(key, data)
	m.size += int64(len(data))

	level, ok := m.levels[key.Level]
	if !ok {
		level = make(map[Key]struct{})
		m.levels[key.Level] = level
	}
	level[key] = struct{}{}

	for m.maxBytes > 0 && m.size > m.maxBytes && m.entries.Len() > 1 {
		m.entries.RemoveOldest()
	}
}

// Load returns the cached tile or fetches it. Concurrent loads of one key
// share a single fetch, which outlives any caller giving up on ctx and runs
// until it completes or the cache is cleared. The result is stored only if
// the cache has not been cleared in the meantime.
func (m *Memory) Load(ctx context.Context, key Key, fetch FetchFunc) ([]byte, error) {
	if data, ok := m.Get(key); ok {
		return data, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	generation, flightCtx := m.generation, m.ctx
	m.mu.Unlock()

	done := make(chan result, 1)
	go func() {
		value, err := m.flight.Do(fmt.Sprintf("%d/%s", generation, key), func() (interface{}, error) {
			// a previous flight may have completed since the miss
			if data, ok := m.Get(key); ok {
				return data, nil
			}

			data, err := fetch(flightCtx)
			if err != nil {
				return nil, err
			}

			m.mu.Lock()
			defer m.mu.Unlock()
			if m.generation != generation {
				debug("Discarding %s from generation %d", key, generation)
				return data, nil
			}
			m.put(key, data)
			return data, nil
		})
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{data: value.([]byte)}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Clear drops every tile, cancels the running fetches and starts a new
// generation.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancel()
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.entries.Clear()
	m.levels = make(map[int]map[Key]struct{})
	m.size = 0
	m.generation++
	debug("Cleared, generation %d", m.generation)
}

// InvalidateLevel drops the tiles of one level.
func (m *Memory) InvalidateLevel(level int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]Key, 0, len(m.levels[level]))
	for k := range m.levels[level] {
		keys = append(keys, k)
	}
	for _, k := range keys {
		m.entries.Remove(k)
	}
	debug("Invalidated level %d, %d tiles", level, len(keys))
}

// Levels lists the levels holding at least one tile, ascending.
func (m *Memory) Levels() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	levels := make([]int, 0, len(m.levels))
	for l := range m.levels {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	return levels
}

// LastUsableLevel is the most detailed level below the given one that still
// holds tiles, or -1. The background layer draws it while the detail layer
// fills in.
func (m *Memory) LastUsableLevel(below int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	last := -1
	for l := range m.levels {
		if l < below && l > last {
			last = l
		}
	}
	return last
}

// Generation is incremented by every Clear.
func (m *Memory) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Len is the number of tiles.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries.Len()
}

// Size is the number of bytes held.
func (m *Memory) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}
