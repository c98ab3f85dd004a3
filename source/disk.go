package source

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Disk reads local files, e.g. an exported Zoomify directory.
type Disk struct {
	root string
}

// NewDisk creates a disk source; relative paths are resolved against root.
func NewDisk(root string) *Disk {
	return &Disk{root: root}
}

// Read implements Source.
func (ds *Disk) Read(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := strings.TrimPrefix(uri, "file://")
	path = strings.Replace(path, "../", "", -1)
	if !filepath.IsAbs(path) {
		path = filepath.Join(ds.root, path)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, HTTPError{http.StatusNotFound, uri}
		}
		return nil, err
	}
	return body, nil
}
