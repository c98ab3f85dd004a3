package source

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError represents a non successful answer from a source.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error formats the HTTPError message.
func (e HTTPError) Error() string {
	return fmt.Sprintf("%d (%s) %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e HTTPError
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
