package image

import (
	"errors"
	"fmt"

	"github.com/greut/tileview/source"
)

// Load errors are fatal for the load attempt; tile errors only concern one
// tile.
var (
	ErrUnsupportedProtocol = errors.New("unsupported image protocol")
	ErrUnsupportedVersion  = errors.New("unsupported IIIF version")
	ErrMalformedMetadata   = errors.New("malformed image metadata")
	ErrMetadataFetchFailed = errors.New("metadata fetch failed")
	ErrTileFetchFailed     = errors.New("tile fetch failed")
	ErrTileDecodeFailed    = errors.New("tile decode failed")
	ErrInvalidViewport     = errors.New("invalid viewport")

	// ErrNoTile is the negative answer for a coordinate outside of the
	// image. It is not a failure and must not be retried.
	ErrNoTile = errors.New("no tile")
)

// FetchError reports a failed read of a property document or of a tile.
type FetchError struct {
	Kind       error // ErrMetadataFetchFailed or ErrTileFetchFailed
	URL        string
	StatusCode int
	Err        error
}

// NewFetchError wraps a source error, keeping its HTTP status if any.
func NewFetchError(kind error, url string, err error) *FetchError {
	return &FetchError{
		Kind:       kind,
		URL:        url,
		StatusCode: source.StatusCode(err),
		Err:        err,
	}
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v: %s (status %d)", e.Kind, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.URL, e.Err)
}

// Unwrap returns the transport error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches the error kind.
func (e *FetchError) Is(target error) bool {
	return target == e.Kind
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedMetadata, fmt.Sprintf(format, args...))
}
