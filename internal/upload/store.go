package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/suPer8Hu/career-chat/internal/common"
	"github.com/suPer8Hu/career-chat/pkg/logger"
)

var ErrTooLarge = errors.New("upload exceeds size limit")

// Scheduler arranges for an upload to be removed once its retention passes.
type Scheduler interface {
	ScheduleCleanup(ctx context.Context, uploadID string, after time.Duration) error
}

// NoopScheduler leaves cleanup to SweepExpired.
type NoopScheduler struct{}

func (NoopScheduler) ScheduleCleanup(context.Context, string, time.Duration) error { return nil }

// Store writes uploads to disk under a per-session directory with a unique
// name per request, and remembers them in the repo until they expire.
type Store struct {
	dir       string
	repo      *Repo
	scheduler Scheduler
	retention time.Duration
	maxBytes  int64
	now       func() time.Time
}

func NewStore(dir string, repo *Repo, scheduler Scheduler, retention time.Duration, maxBytes int64) *Store {
	if scheduler == nil {
		scheduler = NoopScheduler{}
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Store{
		dir:       dir,
		repo:      repo,
		scheduler: scheduler,
		retention: retention,
		maxBytes:  maxBytes,
		now:       time.Now,
	}
}

func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save persists data for sessionID. filename must already be sanitized.
func (s *Store) Save(ctx context.Context, sessionID, filename string, data []byte) (*Record, error) {
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, ErrTooLarge
	}
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(s.dir, SanitizeFilename(sessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(dir, id+"-"+filename)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}

	now := s.now()
	rec := &Record{
		ID:         id,
		SessionID:  sessionID,
		FileName:   filename,
		StoredPath: path,
		MimeType:   MIMETypeFor(filename),
		Size:       int64(len(data)),
		ExpiresAt:  now.Add(s.retention),
		CreatedAt:  now,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("record upload: %w", err)
	}

	if err := s.scheduler.ScheduleCleanup(ctx, rec.ID, s.retention); err != nil {
		// the sweeper still picks it up after ExpiresAt
		logger.Warnf("schedule cleanup failed upload=%s err=%v", rec.ID, err)
	}
	return rec, nil
}

// Read returns the stored bytes of an upload.
func (s *Store) Read(ctx context.Context, id string) ([]byte, *Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(rec.StoredPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read upload: %w", err)
	}
	return data, rec, nil
}

// Remove deletes the file and its record; removing an unknown id is not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return s.removeRecord(ctx, rec)
}

func (s *Store) removeRecord(ctx context.Context, rec *Record) error {
	if err := os.Remove(rec.StoredPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload file: %w", err)
	}
	// drop the session dir once it is empty; fails harmlessly otherwise
	_ = os.Remove(filepath.Dir(rec.StoredPath))
	return s.repo.Delete(ctx, rec.ID)
}

// SweepExpired removes every upload whose retention ended at or before now
// and returns how many were removed.
func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	for {
		recs, err := s.repo.ListExpired(ctx, now, 100)
		if err != nil {
			return removed, err
		}
		if len(recs) == 0 {
			return removed, nil
		}
		for i := range recs {
			if err := s.removeRecord(ctx, &recs[i]); err != nil {
				return removed, err
			}
			removed++
		}
	}
}
