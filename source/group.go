package source

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/golang/groupcache"
)

var groupSeq uint64

// Group caches the documents read through another source. Concurrent reads
// of the same address share a single request.
type Group struct {
	group *groupcache.Group
}

// NewGroup wraps src with a cache of at most cacheBytes.
func NewGroup(src Source, cacheBytes int64) *Group {
	name := fmt.Sprintf("tileview-metadata-%d", atomic.AddUint64(&groupSeq, 1))

	group := groupcache.NewGroup(name, cacheBytes, groupcache.GetterFunc(
		func(ctx context.Context, key string, dest groupcache.Sink) error {
			if ctx == nil {
				ctx = context.Background()
			}
			data, err := src.Read(ctx, key)
			if err != nil {
				return err
			}
			debug("Caching %s", key)
			return dest.SetBytes(data)
		},
	))

	return &Group{group: group}
}

// Read implements Source.
func (g *Group) Read(ctx context.Context, uri string) ([]byte, error) {
	var buffer []byte
	err := g.group.Get(ctx, uri, groupcache.AllocatingByteSliceSink(&buffer))
	if err != nil {
		return nil, err
	}
	return buffer, nil
}
