package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/suPer8Hu/career-chat/internal/session"
)

const (
	keyPrefix = "chat:session:"

	fieldFileName = "uploaded_file_name"
	fieldFileData = "uploaded_file_data"
)

// Store keeps session data as one redis hash per session, expiring with the
// session TTL.
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func key(id string) string { return keyPrefix + id }

func (s *Store) Load(ctx context.Context, id string) (session.Data, error) {
	vals, err := s.rdb.HGetAll(ctx, key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return session.Data{}, session.ErrNotFound
		}
		return session.Data{}, err
	}
	if len(vals) == 0 {
		return session.Data{}, session.ErrNotFound
	}
	return session.Data{
		UploadedFileName: vals[fieldFileName],
		UploadedFileData: vals[fieldFileData],
	}, nil
}

// Save replaces the whole hash so stale fields never survive an overwrite.
func (s *Store) Save(ctx context.Context, id string, data session.Data, ttl time.Duration) error {
	k := key(id)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		p.HSet(ctx, k, fieldFileName, data.UploadedFileName, fieldFileData, data.UploadedFileData)
		p.Expire(ctx, k, ttl)
		return nil
	})
	return err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, key(id)).Err()
}

var _ session.Store = (*Store)(nil)
