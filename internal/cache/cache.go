// Package cache holds the derived, ephemeral results of feed assembly: pages
// keyed by everything that went into computing them, and friend-set snapshots
// used when the friend graph cannot be reached.
//
// Nothing in here is a source of truth. Entries are immutable once written and
// may be evicted or recomputed at will. An entry past its TTL is no longer
// fresh but is deliberately kept around, because a stale page beats no page
// when every upstream is down.
package cache

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/lmcintyre/gather/internal/gather"
)

// Fingerprint captures every input that affects a cached page's validity:
// the user, the resume position, and the friend-set snapshot version. A
// friendship forming or breaking changes the version and so misses the cache.
type Fingerprint uint64

// PageFingerprint derives the cache key for one (user, cursor, friend set)
// combination.
func PageFingerprint(userID, cursor string, friendsVersion uint64) Fingerprint {
	h := xxhash.New()
	h.WriteString(userID)
	h.Write([]byte{0})
	h.WriteString(cursor)
	h.Write([]byte{0})

	var v [8]byte
	binary.BigEndian.PutUint64(v[:], friendsVersion)
	h.Write(v[:])

	return Fingerprint(h.Sum64())
}

// Entry is one cached page. Freshness is computed at read time from the
// insertion timestamp, never by mutating the entry.
type Entry struct {
	Page gather.FeedPage `json:"page"`

	// Degraded records whether the page was assembled with upstream
	// failures, so a cache hit reports the page exactly as the original
	// assembly did.
	Degraded bool `json:"degraded,omitempty"`

	InsertedAt time.Time     `json:"insertedAt"`
	TTL        time.Duration `json:"ttl"`
}

// Fresh reports whether the entry is still within its TTL.
func (e Entry) Fresh(now time.Time) bool {
	return now.Before(e.InsertedAt.Add(e.TTL))
}

// Store is the shared cache behind the feed pipeline. Writes are
// last-writer-wins per key; entries are never mutated in place.
type Store interface {
	// GetPage looks a page up by its full fingerprint. Callers decide what
	// to do with entries that are no longer fresh.
	GetPage(ctx context.Context, fp Fingerprint) (Entry, bool, error)

	// PutPage writes a page through under its fingerprint and records it
	// as the most recent page for (userID, cursor). The degraded flag is
	// stored alongside the page so hits carry it back out.
	PutPage(ctx context.Context, fp Fingerprint, userID, cursor string, page gather.FeedPage, degraded bool) error

	// LastPage returns the most recent page stored for (userID, cursor)
	// regardless of freshness. This is the degradation path: it answers
	// even when the friend set that produced the page is unknowable.
	LastPage(ctx context.Context, userID, cursor string) (Entry, bool, error)

	// FriendSnapshot returns the last friend set resolved for the user.
	FriendSnapshot(ctx context.Context, userID string) (gather.FriendSet, bool, error)

	// PutFriendSnapshot records the user's friend set for later fallback.
	PutFriendSnapshot(ctx context.Context, userID string, fs gather.FriendSet) error
}

// lastKey collapses a (user, cursor) pair into a fixed-size lookup key.
// Cursors are long opaque strings; hashing keeps the index keys small.
func lastKey(userID, cursor string) uint64 {
	h := xxhash.New()
	h.WriteString(userID)
	h.Write([]byte{0})
	h.WriteString(cursor)
	return h.Sum64()
}
