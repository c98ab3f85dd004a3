package image

import (
	"context"
	"fmt"

	"github.com/greut/tileview/source"
)

// Options tunes the metadata parsers.
type Options struct {
	// TileSize is the square tile size used when none is declared.
	TileSize int
	// Source fetches the remote IIIF profiles.
	Source source.Source
	// RemoteProfiles enables the background merge of remote profiles.
	RemoteProfiles bool
	// Decoder reads the dimensions of raw images, bimg by default.
	Decoder Decoder
}

func (o Options) tileSize() int {
	if o.TileSize > 0 {
		return o.TileSize
	}
	return DefaultTileSize
}

// Parse builds the descriptor from the metadata read at det.MetadataURL, or
// from the image itself for raw images.
func Parse(ctx context.Context, det Detection, data []byte, opts Options) (Descriptor, error) {
	var (
		d   Descriptor
		err error
	)

	switch det.Protocol {
	case ProtocolIIIF:
		d, err = ParseIIIF(ctx, data, opts)
	case ProtocolZoomify:
		d, err = ParseZoomify(data, det.MetadataURL)
	case ProtocolRaw:
		d, err = ParseRaw(data, det.MetadataURL, opts.Decoder)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedProtocol, det.Protocol)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Load detects, fetches and parses the image behind address. Every error it
// returns is a load error: the image cannot be displayed.
func Load(ctx context.Context, address string, src source.Source, opts Options) (Descriptor, error) {
	det, err := Detect(ctx, address, src)
	if err != nil {
		return nil, err
	}

	data := det.Data
	if data == nil {
		data, err = src.Read(ctx, det.MetadataURL)
		if err != nil {
			return nil, NewFetchError(ErrMetadataFetchFailed, det.MetadataURL, err)
		}
	}

	if opts.Source == nil {
		opts.Source = src
	}
	return Parse(ctx, det, data, opts)
}
