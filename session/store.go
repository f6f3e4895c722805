package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record is the persisted part of a session. The PIN verification is never
// persisted: a restored session is always LOCKED.
type Record struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Store persists the session between runs.
type Store interface {
	// Load returns the saved record, false if there is none.
	Load(ctx context.Context) (Record, bool, error)
	Save(ctx context.Context, r Record) error
	Clear(ctx context.Context) error
}

// DefaultSessionFile is the name of the session file in the temp dir.
const DefaultSessionFile = "dtc-session.json"

// FileStore saves the session in a private file.
type FileStore struct {
	Path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store in path, or in the temp dir if path is empty.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = filepath.Join(os.TempDir(), DefaultSessionFile)
	}
	return &FileStore{Path: path}
}

func (f *FileStore) Load(ctx context.Context) (Record, bool, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("cannot read session file %q: %w", f.Path, err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, false, fmt.Errorf("invalid session file %q: %w", f.Path, err)
	}
	return r, r.Token != "", nil
}

func (f *FileStore) Save(ctx context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("cannot encode session: %w", err)
	}
	if err := os.WriteFile(f.Path, data, 0600); err != nil {
		return fmt.Errorf("cannot write session file %q: %w", f.Path, err)
	}
	return nil
}

func (f *FileStore) Clear(ctx context.Context) error {
	err := os.Remove(f.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cannot remove session file %q: %w", f.Path, err)
	}
	return nil
}

// DefaultSessionKey is the redis key of the session.
const DefaultSessionKey = "dtc:session"

// RedisStore saves the session in redis, with an expiration.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration // 0 for no expiration.
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore returns a store saving the session under key.
func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultSessionKey
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context) (Record, bool, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("cannot read session %q: %w", r.key, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("invalid session %q: %w", r.key, err)
	}
	return rec, rec.Token != "", nil
}

func (r *RedisStore) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cannot encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("cannot write session %q: %w", r.key, err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("cannot remove session %q: %w", r.key, err)
	}
	return nil
}
