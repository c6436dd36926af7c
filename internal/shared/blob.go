package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrNoBlob indicates the key has never been written. Callers treat this
// as absence of data and fall back to defaults.
var ErrNoBlob = errors.New("blob not found")

// ErrBlobVersion indicates the stored envelope carries an unknown version.
var ErrBlobVersion = errors.New("blob version mismatch")

// envelope wraps persisted blobs so future shape changes can be detected
// and migrated instead of silently defaulting.
type envelope struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// BlobStore persists versioned JSON blobs keyed per user in Redis.
type BlobStore struct {
	client  *redis.Client
	prefix  string
	version int
}

// NewBlobStore constructs a BlobStore. Keys are namespaced under prefix.
func NewBlobStore(client *redis.Client, prefix string, version int) *BlobStore {
	return &BlobStore{client: client, prefix: prefix, version: version}
}

// Get unmarshals the stored blob into target. Returns ErrNoBlob when the
// key does not exist and ErrBlobVersion when the envelope version differs.
func (b *BlobStore) Get(ctx context.Context, key string, target any) error {
	raw, err := b.client.Get(ctx, b.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNoBlob
		}
		return err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	if env.Version != b.version {
		return fmt.Errorf("%w: stored=%d want=%d", ErrBlobVersion, env.Version, b.version)
	}
	return json.Unmarshal(env.Data, target)
}

// Put stores value wrapped in the versioned envelope. No TTL: blobs live
// until explicitly removed.
func (b *BlobStore) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(envelope{Version: b.version, Data: data})
	if err != nil {
		return err
	}
	return b.client.Set(ctx, b.key(key), raw, 0).Err()
}

// Delete removes the blob.
func (b *BlobStore) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, b.key(key)).Err()
}

func (b *BlobStore) key(key string) string {
	return b.prefix + ":" + key
}
