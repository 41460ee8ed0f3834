package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/BoxResin/HttpRequester/internal/domain"
)

// Package storage keeps a local history of delivered exchanges.

// Store records delivered exchanges.
type Store interface {
	Close() error
	Record(ex domain.Exchange) error
	Recent(limit int) ([]domain.Exchange, error)
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	EntryTTL        time.Duration
	CleanupInterval time.Duration
	// MaxBodyBytes caps the stored response body; zero keeps the default.
	MaxBodyBytes int
}

const (
	defaultEntryTTL        = 7 * 24 * time.Hour
	defaultCleanupInterval = 6 * time.Hour
	defaultMaxBodyBytes    = 4 << 10
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.EntryTTL <= 0 {
		opts.EntryTTL = defaultEntryTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                          { return nil }
func (noopStore) Record(domain.Exchange) error          { return nil }
func (noopStore) Recent(int) ([]domain.Exchange, error) { return nil, nil }
