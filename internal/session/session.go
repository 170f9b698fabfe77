package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

// Data is everything kept per browser session: at most one uploaded file.
type Data struct {
	UploadedFileName string `json:"uploaded_file_name,omitempty"`
	UploadedFileData string `json:"uploaded_file_data,omitempty"` // data URL
}

// Store is keyed session state with an explicit TTL.
type Store interface {
	// Load returns ErrNotFound when the session is absent or expired.
	Load(ctx context.Context, id string) (Data, error)
	Save(ctx context.Context, id string, data Data, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}
