// Package storage abstracts the object store published reports land in.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"time"
)

// ErrObjectNotFound is returned by Get and Stat for missing keys.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified,omitzero"`
}

// PutOptions are per-object upload settings.
type PutOptions struct {
	ContentType string
}

// ObjectStore stores and retrieves objects by slash-separated key.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// ReportKey returns the key of one file of a published report.
func ReportKey(reportID, name string) (string, error) {
	if !idPattern.MatchString(reportID) {
		return "", fmt.Errorf("invalid report id: %q", reportID)
	}
	if !idPattern.MatchString(name) {
		return "", fmt.Errorf("invalid object name: %q", name)
	}
	return path.Join("reports", reportID, name), nil
}
