// Package storage stores uploaded files such as payment proofs and event covers
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrEmptyPath is returned when an object path is blank
var ErrEmptyPath = errors.New("storage path is required")

// Object is a stored file
type Object struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// ObjectStorage is the object store the ticketing core writes files to
type ObjectStorage interface {
	// Upload stores r under path and returns its public URL
	Upload(ctx context.Context, path string, r io.Reader) (string, error)
	// Delete removes the object served at url
	Delete(ctx context.Context, url string) error
	// List returns the objects whose path starts with prefix
	List(ctx context.Context, prefix string) ([]Object, error)
}

// PublicIDFromPath drops the file extension, which Cloudinary keeps out of public IDs
func PublicIDFromPath(p string) string {
	p = strings.Trim(p, "/")
	return strings.TrimSuffix(p, path.Ext(p))
}

// PublicIDFromURL extracts the public ID from a delivery URL such as
// https://res.cloudinary.com/demo/image/upload/v1712/events/gala/cover.jpg
func PublicIDFromURL(url string) string {
	idx := strings.Index(url, "/upload/")
	if idx < 0 {
		return ""
	}
	rest := url[idx+len("/upload/"):]
	if q := strings.IndexAny(rest, "?#"); q >= 0 {
		rest = rest[:q]
	}

	segments := strings.Split(rest, "/")
	if len(segments) > 1 && isVersion(segments[0]) {
		segments = segments[1:]
	}
	return PublicIDFromPath(strings.Join(segments, "/"))
}

func isVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
