package session

import (
	"context"
	"errors"
	"time"
)

// CachedFile is the last file a session uploaded, already encoded.
type CachedFile struct {
	Name    string
	DataURL string
}

// FileCache remembers the most recent upload of each session so later chat
// turns can reuse it. A new upload always replaces the previous one.
type FileCache struct {
	store Store
	ttl   time.Duration
}

func NewFileCache(store Store, ttl time.Duration) *FileCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &FileCache{store: store, ttl: ttl}
}

// Reset clears everything stored for the session.
func (c *FileCache) Reset(ctx context.Context, sessionID string) error {
	return c.store.Delete(ctx, sessionID)
}

func (c *FileCache) Store(ctx context.Context, sessionID, filename, dataURL string) error {
	return c.store.Save(ctx, sessionID, Data{
		UploadedFileName: filename,
		UploadedFileData: dataURL,
	}, c.ttl)
}

func (c *FileCache) Fetch(ctx context.Context, sessionID string) (CachedFile, bool, error) {
	d, err := c.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return CachedFile{}, false, nil
		}
		return CachedFile{}, false, err
	}
	if d.UploadedFileData == "" {
		return CachedFile{}, false, nil
	}
	return CachedFile{Name: d.UploadedFileName, DataURL: d.UploadedFileData}, true, nil
}
