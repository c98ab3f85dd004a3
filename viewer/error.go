package viewer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/greut/tileview/image"
	"github.com/greut/tileview/source"
)

// HTTPError represents a HTTP error to be shown to the user.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error formats the HTTPError message.
func (e HTTPError) Error() string {
	return fmt.Sprintf("%d (%s) %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// toHTTPError maps the load and tile errors onto a response status.
func toHTTPError(err error) HTTPError {
	var e HTTPError
	if errors.As(err, &e) {
		return e
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, image.ErrNoTile):
		status = http.StatusNotFound
	case errors.Is(err, image.ErrInvalidViewport):
		status = http.StatusBadRequest
	case errors.Is(err, image.ErrUnsupportedProtocol), errors.Is(err, image.ErrUnsupportedVersion):
		status = http.StatusNotImplemented
	case errors.Is(err, image.ErrMetadataFetchFailed), errors.Is(err, image.ErrTileFetchFailed):
		status = http.StatusBadGateway
		if source.StatusCode(err) == http.StatusNotFound {
			status = http.StatusNotFound
		}
	case errors.Is(err, image.ErrMalformedMetadata), errors.Is(err, image.ErrTileDecodeFailed):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	return HTTPError{status, err.Error()}
}

func writeError(w http.ResponseWriter, err error) {
	e := toHTTPError(err)
	debug("%v", e)
	http.Error(w, e.Error(), e.StatusCode)
}
