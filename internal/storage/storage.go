package storage

import (
	"context"
	"errors"
	"io"
	"path"
)

var ErrFileNotFound = errors.New("file not found")

// FileStore keeps the files attached to entries. Entries only hold the key.
type FileStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// EntryFileKey returns the key of a file attached to an entry.
func EntryFileKey(organizationID, entryID, fileID, fileName string) string {
	return path.Join("organizations", organizationID, "entries", entryID, fileID+path.Ext(fileName))
}
