package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/BoxResin/HttpRequester/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const (
	exchangeBucket   = "exchanges"
	expiryValueBytes = 8
	keyBytes         = 16
)

// boltStore implements a Store backed by BoltDB.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	entryTTL        time.Duration
	cleanupInterval time.Duration
	maxBodyBytes    int
	now             func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(exchangeBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		entryTTL:        opts.EntryTTL,
		cleanupInterval: opts.CleanupInterval,
		maxBodyBytes:    opts.MaxBodyBytes,
		now:             time.Now,
	}
	store.lastCleanup.Store(store.now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Record stores ex keyed by its start time and task id.
func (b *boltStore) Record(ex domain.Exchange) error {
	if b == nil || b.db == nil {
		return nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	if ex.StartedAt.IsZero() {
		ex.StartedAt = now
	}
	ex.Body = truncateUTF8(ex.Body, b.maxBodyBytes)

	payload, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("marshal exchange: %w", err)
	}
	value := make([]byte, expiryValueBytes+len(payload))
	binary.BigEndian.PutUint64(value, uint64(now.Add(b.entryTTL).Unix()))
	copy(value[expiryValueBytes:], payload)

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(exchangeBucket))
		if bucket == nil {
			return fmt.Errorf("exchange bucket missing")
		}
		return bucket.Put(encodeKey(ex.StartedAt, ex.TaskID), value)
	})
}

// Recent returns up to limit unexpired exchanges, newest first.
func (b *boltStore) Recent(limit int) ([]domain.Exchange, error) {
	if b == nil || b.db == nil || limit <= 0 {
		return nil, nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return nil, err
	}

	out := make([]domain.Exchange, 0, limit)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(exchangeBucket))
		if bucket == nil {
			return fmt.Errorf("exchange bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && len(out) < limit; k, v = cursor.Prev() {
			expiry, ok := decodeExpiry(v)
			if !ok || !expiry.After(now) {
				continue
			}
			var ex domain.Exchange
			if err := json.Unmarshal(v[expiryValueBytes:], &ex); err != nil {
				return fmt.Errorf("decode exchange %x: %w", k, err)
			}
			out = append(out, ex)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// maybeCleanupExpired removes expired exchanges on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(exchangeBucket))
		if bucket == nil {
			return fmt.Errorf("exchange bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			expiry, ok := decodeExpiry(v)
			if !ok || !expiry.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

// encodeKey orders entries by start time, then task id.
func encodeKey(startedAt time.Time, taskID uint64) []byte {
	key := make([]byte, keyBytes)
	binary.BigEndian.PutUint64(key, uint64(startedAt.UnixNano()))
	binary.BigEndian.PutUint64(key[8:], taskID)
	return key
}

// decodeExpiry decodes the expiry time from the stored byte slice.
func decodeExpiry(value []byte) (time.Time, bool) {
	if len(value) < expiryValueBytes {
		return time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value[:expiryValueBytes]))
	if unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}

func truncateUTF8(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
