package storage

import (
	"bytes"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
)

// GridFSStorage implements ObjectStorage on MongoDB GridFS. Re-uploading to
// the same path replaces earlier revisions, so a settlement retried after an
// aborted transaction overwrites its own orphaned export.
type GridFSStorage struct {
	bucket *gridfs.Bucket
}

// NewGridFSStorage creates a new GridFSStorage
func NewGridFSStorage(db *mongo.Database) (*GridFSStorage, error) {
	bucket, err := gridfs.NewBucket(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create gridfs bucket: %w", err)
	}
	return &GridFSStorage{bucket: bucket}, nil
}

// Upload stores data under path and returns path as the file key
func (s *GridFSStorage) Upload(ctx context.Context, data []byte, path string) (string, error) {
	if err := s.deleteRevisions(ctx, path); err != nil {
		return "", err
	}
	if _, err := s.bucket.UploadFromStream(path, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return path, nil
}

func (s *GridFSStorage) deleteRevisions(ctx context.Context, path string) error {
	cursor, err := s.bucket.Find(bson.M{"filename": path})
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", path, err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var file struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&file); err != nil {
			return err
		}
		if err := s.bucket.Delete(file.ID); err != nil {
			return fmt.Errorf("failed to delete previous revision of %s: %w", path, err)
		}
	}
	return cursor.Err()
}
