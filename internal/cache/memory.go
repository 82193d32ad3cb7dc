package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lmcintyre/gather/internal/gather"
)

// MemoryStore is an in-process Store on top of fixed-size LRUs. Expired
// entries survive until capacity pushes them out, which is what lets LastPage
// serve during an outage.
type MemoryStore struct {
	ttl time.Duration

	pages   *lru.Cache[Fingerprint, Entry]
	last    *lru.Cache[uint64, Fingerprint]
	friends *lru.Cache[string, gather.FriendSet]
}

// NewMemoryStore builds a store whose page entries go stale after ttl.
func NewMemoryStore(ttl time.Duration, size int) *MemoryStore {
	pages, _ := lru.New[Fingerprint, Entry](size)
	last, _ := lru.New[uint64, Fingerprint](size)
	friends, _ := lru.New[string, gather.FriendSet](size)

	return &MemoryStore{
		ttl:     ttl,
		pages:   pages,
		last:    last,
		friends: friends,
	}
}

func (s *MemoryStore) GetPage(_ context.Context, fp Fingerprint) (Entry, bool, error) {
	ent, ok := s.pages.Get(fp)
	return ent, ok, nil
}

func (s *MemoryStore) PutPage(_ context.Context, fp Fingerprint, userID, cursor string, page gather.FeedPage, degraded bool) error {
	s.pages.Add(fp, Entry{
		Page:       page,
		Degraded:   degraded,
		InsertedAt: time.Now(),
		TTL:        s.ttl,
	})
	s.last.Add(lastKey(userID, cursor), fp)

	return nil
}

func (s *MemoryStore) LastPage(_ context.Context, userID, cursor string) (Entry, bool, error) {
	fp, ok := s.last.Get(lastKey(userID, cursor))
	if !ok {
		return Entry{}, false, nil
	}
	ent, ok := s.pages.Get(fp)

	return ent, ok, nil
}

func (s *MemoryStore) FriendSnapshot(_ context.Context, userID string) (gather.FriendSet, bool, error) {
	fs, ok := s.friends.Get(userID)
	return fs, ok, nil
}

func (s *MemoryStore) PutFriendSnapshot(_ context.Context, userID string, fs gather.FriendSet) error {
	s.friends.Add(userID, fs)
	return nil
}
