package source

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
)

// DefaultUserAgent is sent when none is configured.
const DefaultUserAgent = "tileview/1.0"

// HTTP reads addresses with a GET request.
type HTTP struct {
	client    *http.Client
	userAgent string
}

// NewHTTP creates a network source. The timeout bounds every single request,
// zero means no timeout.
func NewHTTP(timeout time.Duration, userAgent string) *HTTP {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTP{
		client: &http.Client{
			Timeout:   timeout,
			Transport: gzhttp.Transport(http.DefaultTransport),
		},
		userAgent: userAgent,
	}
}

// Read implements Source.
func (s *HTTP) Read(ctx context.Context, uri string) ([]byte, error) {
	debug("downloading %v", uri)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		debug("Download error: %q : %#v.", uri, err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, HTTPError{resp.StatusCode, uri}
	}

	if resp.ContentLength > 0 {
		b := bytes.NewBuffer(make([]byte, 0, resp.ContentLength))
		_, err = b.ReadFrom(resp.Body)
		return b.Bytes(), err
	}
	return io.ReadAll(resp.Body)
}
