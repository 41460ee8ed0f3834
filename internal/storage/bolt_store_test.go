package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/BoxResin/HttpRequester/internal/domain"
	bolt "go.etcd.io/bbolt"
)

func openTestStore(t *testing.T, opts Options) *boltStore {
	t.Helper()
	storeRaw, err := openBolt(t.TempDir()+"/history.db", normalizeOptions(opts))
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStoreRecentNewestFirst(t *testing.T) {
	store := openTestStore(t, Options{})
	base := time.Now()

	for i := 0; i < 3; i++ {
		ex := domain.Exchange{
			TaskID:    uint64(i + 1),
			Address:   "http://example.test",
			Method:    "GET",
			Kind:      "ok",
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.Record(ex); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := store.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 exchanges, got %d", len(got))
	}
	if got[0].TaskID != 3 || got[1].TaskID != 2 {
		t.Fatalf("expected newest first, got %d then %d", got[0].TaskID, got[1].TaskID)
	}
}

func TestBoltStoreExpiresEntries(t *testing.T) {
	store := openTestStore(t, Options{
		EntryTTL:        time.Minute,
		CleanupInterval: time.Minute,
	})
	now := time.Now()
	store.now = func() time.Time { return now }

	if err := store.Record(domain.Exchange{TaskID: 1, Kind: "ok"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got, _ := store.Recent(10); len(got) != 1 {
		t.Fatalf("expected entry before expiry, got %d", len(got))
	}

	now = now.Add(2 * time.Minute)
	got, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent after expiry: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected entry to expire, got %d", len(got))
	}

	var keys int
	_ = store.db.View(func(tx *bolt.Tx) error {
		keys = tx.Bucket([]byte(exchangeBucket)).Stats().KeyN
		return nil
	})
	if keys != 0 {
		t.Fatalf("expected cleanup to remove expired keys, %d left", keys)
	}
}

func TestBoltStoreTruncatesBody(t *testing.T) {
	store := openTestStore(t, Options{MaxBodyBytes: 5})

	if err := store.Record(domain.Exchange{TaskID: 1, Body: "abcd" + "é" + "fgh"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := store.Recent(1)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent: %v (%d)", err, len(got))
	}
	if got[0].Body != "abcd" {
		t.Fatalf("expected body cut at rune boundary, got %q", got[0].Body)
	}
}

func TestNewStoreSupportsNoop(t *testing.T) {
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if err := store.Record(domain.Exchange{TaskID: 1}); err != nil {
		t.Fatalf("noop store Record: %v", err)
	}
	if got, err := store.Recent(5); err != nil || got != nil {
		t.Fatalf("noop store Recent: %v %v", got, err)
	}
}

func TestNewStoreRejectsUnknownType(t *testing.T) {
	if _, err := NewStore("redis", "", Options{}); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported storage error, got %v", err)
	}
	if _, err := NewStore("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected missing path error")
	}
}
