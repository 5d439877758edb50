// Package tilecache caches resolved map tiles for the lifetime of an
// explicitly created session.
//
// A Session fetches every (source, x, y, z) key at most once: concurrent
// requests for a key that is being fetched wait for the in-flight result.
// Fetch failures are cached too, except those caused by a cancelled
// context.
package tilecache

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrSessionClosed is returned by a Session after Close.
var ErrSessionClosed = errors.New("tile cache session closed")

// FetchFunc resolves the tile of a key on a cache miss.
type FetchFunc func(ctx context.Context) (image.Image, error)

// Stats are the counters of a Session.
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Fetches  int64 `json:"fetches"`
	Failures int64 `json:"failures"`
	Entries  int   `json:"entries"`
}

type Session struct {
	id     uuid.UUID
	store  Store
	group  singleflight.Group
	log    *zap.Logger
	closed atomic.Bool

	hits     atomic.Int64
	misses   atomic.Int64
	fetches  atomic.Int64
	failures atomic.Int64
}

// NewSession creates a session backed by store. A nil store means a
// fresh MapStore, a nil logger discards output.
func NewSession(store Store, log *zap.Logger) *Session {
	if store == nil {
		store = NewMapStore()
	}
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.New()
	return &Session{
		id:    id,
		store: store,
		log:   log.With(zap.String("session", id.String())),
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// GetOrFetch returns the cached tile for key, calling fetch on a miss.
// A cached failure is returned as the error it was recorded with.
func (s *Session) GetOrFetch(ctx context.Context, key Key, fetch FetchFunc) (image.Image, error) {
	for {
		if s.closed.Load() {
			return nil, ErrSessionClosed
		}

		if entry, ok := s.store.Get(key); ok {
			s.hits.Add(1)
			return entry.Image, entry.Err
		}
		s.misses.Add(1)

		ch := s.group.DoChan(key.String(), func() (interface{}, error) {
			return s.fetch(ctx, key, fetch), nil
		})

		var res singleflight.Result
		select {
		case res = <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		result := res.Val.(fetchResult)
		if result.cancelled && ctx.Err() == nil {
			// the leader's context ended, not ours
			continue
		}
		return result.Image, result.Err
	}
}

// fetchResult is a fetched entry. cancelled marks a fetch abandoned
// because the leader's context ended; such entries are not stored.
type fetchResult struct {
	Entry
	cancelled bool
}

func (s *Session) fetch(ctx context.Context, key Key, fetch FetchFunc) fetchResult {
	// a concurrent leader may have stored the key since our lookup
	if entry, ok := s.store.Get(key); ok {
		return fetchResult{Entry: entry}
	}

	start := time.Now()
	s.fetches.Add(1)
	img, err := fetch(ctx)
	entry := Entry{Image: img, Err: err}

	fields := []zap.Field{
		zap.String("source", key.Source),
		zap.Uint32("z", uint32(key.Tile.Z)),
		zap.Uint32("x", key.Tile.X),
		zap.Uint32("y", key.Tile.Y),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	}

	if err != nil {
		// a deadline inside fetch, such as a client timeout, is a failure
		if ctx.Err() != nil {
			s.log.Debug("Tile fetch cancelled", fields...)
			return fetchResult{Entry: entry, cancelled: true}
		}
		s.failures.Add(1)
		s.log.Warn("Tile fetch failed", append(fields, zap.Error(err))...)
	} else {
		s.log.Debug("Tile fetched", fields...)
	}

	if !s.closed.Load() {
		s.store.Set(key, entry)
	}
	return fetchResult{Entry: entry}
}

func (s *Session) Stats() Stats {
	return Stats{
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
		Fetches:  s.fetches.Load(),
		Failures: s.failures.Load(),
		Entries:  s.store.Len(),
	}
}

// Close drops every cached tile. Later calls to GetOrFetch fail with
// ErrSessionClosed.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	stats := s.Stats()
	s.store.Clear()
	s.log.Info("Tile cache session closed",
		zap.Int64("hits", stats.Hits),
		zap.Int64("fetches", stats.Fetches),
		zap.Int64("failures", stats.Failures),
		zap.Int("tiles", stats.Entries))
	return nil
}
