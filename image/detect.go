package image

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/greut/tileview/source"
)

const (
	iiifFullSuffix  = "/full/full/0/default.jpg"
	zoomifyTileHint = "TileGroup"
)

// RawExtensions are the flat raster formats recognized by their extension.
var RawExtensions = []string{"jpg", "png", "gif", "webp"}

// Detection is the outcome of the protocol detection.
type Detection struct {
	Protocol    Protocol `json:"protocol"`
	MetadataURL string   `json:"metadataUrl"`
	// Data holds the property document when probing had to read it.
	Data []byte `json:"-"`
}

// Classify detects the protocol from the address alone. It reports false
// when the address gives no hint and the server must be probed.
func Classify(address string) (Detection, bool) {
	p := strings.ToLower(addressPath(address))
	lower := strings.ToLower(address)

	switch {
	case strings.HasSuffix(p, IIIFPropertyFile):
		return Detection{Protocol: ProtocolIIIF, MetadataURL: address}, true

	case strings.HasSuffix(p, strings.ToLower(ZoomifyPropertyFile)):
		return Detection{Protocol: ProtocolZoomify, MetadataURL: address}, true

	case strings.HasSuffix(lower, iiifFullSuffix):
		prefix := address[:len(address)-len(iiifFullSuffix)]
		return Detection{Protocol: ProtocolIIIF, MetadataURL: prefix + "/" + IIIFPropertyFile}, true

	case strings.Contains(address, zoomifyTileHint):
		prefix := address[:strings.Index(address, zoomifyTileHint)]
		return Detection{Protocol: ProtocolZoomify, MetadataURL: withSlash(prefix) + ZoomifyPropertyFile}, true
	}

	ext := strings.TrimPrefix(path.Ext(p), ".")
	for _, e := range RawExtensions {
		if ext == e {
			return Detection{Protocol: ProtocolRaw, MetadataURL: address}, true
		}
	}

	return Detection{}, false
}

// Detect classifies the address, probing the server for a Zoomify then an
// IIIF property document when the address itself is not enough.
func Detect(ctx context.Context, address string, src source.Source) (Detection, error) {
	if det, ok := Classify(address); ok {
		debug("Detected %s for %s", det.Protocol, address)
		return det, nil
	}

	prefix := withSlash(address)
	probes := []Detection{
		{Protocol: ProtocolZoomify, MetadataURL: prefix + ZoomifyPropertyFile},
		{Protocol: ProtocolIIIF, MetadataURL: prefix + IIIFPropertyFile},
	}

	var errs []error
	for _, probe := range probes {
		data, err := src.Read(ctx, probe.MetadataURL)
		if err == nil {
			debug("Probed %s for %s", probe.Protocol, address)
			probe.Data = data
			return probe, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Detection{}, ctxErr
		}
		debug("Probe %s failed: %v", probe.MetadataURL, err)
		errs = append(errs, err)
	}

	return Detection{}, fmt.Errorf("%w: %s: %v", ErrUnsupportedProtocol, address, errors.Join(errs...))
}

// ForProtocol builds the detection for an address whose protocol is already
// known, adding the property document name when missing.
func ForProtocol(address string, protocol Protocol) (Detection, error) {
	var file string
	switch protocol {
	case ProtocolIIIF:
		file = IIIFPropertyFile
	case ProtocolZoomify:
		file = ZoomifyPropertyFile
	case ProtocolRaw:
		return Detection{Protocol: protocol, MetadataURL: address}, nil
	default:
		return Detection{}, fmt.Errorf("%w: %s", ErrUnsupportedProtocol, protocol)
	}

	if strings.HasSuffix(strings.ToLower(addressPath(address)), strings.ToLower(file)) {
		return Detection{Protocol: protocol, MetadataURL: address}, nil
	}
	return Detection{Protocol: protocol, MetadataURL: withSlash(address) + file}, nil
}

// addressPath strips the query and fragment, if any.
func addressPath(address string) string {
	u, err := url.Parse(address)
	if err != nil || u.Path == "" {
		return address
	}
	return u.Path
}

func withSlash(address string) string {
	if strings.HasSuffix(address, "/") {
		return address
	}
	return address + "/"
}
