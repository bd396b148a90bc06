package storage

import "context"

// ObjectStorage persists opaque blobs and returns the key later exchanged
// for a download URL by the (external) file service.
type ObjectStorage interface {
	Upload(ctx context.Context, data []byte, path string) (fileKey string, err error)
}
