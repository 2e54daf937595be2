package uploads

import (
	"context"
	"io"
)

// ObjectStore port (penyimpanan file gambar)
type ObjectStore interface {
	// Put streams r to key. progress, when non-nil, receives the cumulative byte count.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, progress func(written int64)) (string, error)
}
