// Package objectstore persists submitted image bytes under their
// content-derived key and hands back a stable retrieval reference. Failures
// here are fatal to the upload path and irrelevant to aggregation.
package objectstore

import "context"

// Store persists immutable blobs keyed by record id.
type Store interface {
	// Put stores the bytes and returns the retrieval reference (a URL the
	// crowd workers' browsers can fetch).
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
