// Package feed is the fan-out coordinator: it turns one inbound feed request
// into a friend-set resolution, a bounded burst of post fetches, and a merge.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lmcintyre/gather/internal/cache"
	"github.com/lmcintyre/gather/internal/cursor"
	"github.com/lmcintyre/gather/internal/gather"
	"github.com/lmcintyre/gather/internal/merge"
	"github.com/lmcintyre/gather/internal/metrics"
)

type (
	// Config is the coordinator's complete set of knobs, fixed at
	// construction.
	Config struct {
		// FriendTimeout bounds the friend-graph call.
		FriendTimeout time.Duration
		// PostTimeout bounds each per-friend post fetch.
		PostTimeout time.Duration
		// MaxFanout caps how many post fetches run at once.
		MaxFanout int
		// CacheTTL is how long an assembled page stays fresh.
		CacheTTL time.Duration
		// PageDeadline is the wall-clock budget for the whole request.
		PageDeadline time.Duration
	}

	// Coordinator assembles feed pages. It owns no data: friends and posts
	// belong to their services, and the cache only ever holds derived
	// results.
	Coordinator struct {
		cfg     Config
		friends gather.FriendGraph
		posts   gather.PostStore
		store   cache.Store
		codec   *cursor.Codec
	}
)

const (
	defaultPageSize  = 20
	defaultMaxFanout = 20

	// maxFetchDepth caps how deep the per-friend fetch goes when a page's
	// worth of posts all sit on the cursor's exact timestamp.
	maxFetchDepth = 1024
)

func New(cfg Config, friends gather.FriendGraph, posts gather.PostStore, store cache.Store, codec *cursor.Codec) *Coordinator {
	if cfg.MaxFanout <= 0 {
		// errgroup treats a zero limit as "block forever", never that.
		cfg.MaxFanout = defaultMaxFanout
	}

	return &Coordinator{
		cfg:     cfg,
		friends: friends,
		posts:   posts,
		store:   store,
		codec:   codec,
	}
}

// GetFeedPage returns one page of the user's feed, newest first, resuming
// after cursorStr when given. The second return is the degraded flag: true
// when the page was assembled without some upstreams, or served stale from
// the cache.
func (c *Coordinator) GetFeedPage(ctx context.Context, userID, cursorStr string, pageSize int) (gather.FeedPage, bool, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var after cursor.Key
	if cursorStr != "" {
		k, err := c.codec.Decode(cursorStr)
		if err != nil {
			return gather.FeedPage{}, false, err
		}
		after = k
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.PageDeadline)
	defer cancel()

	degraded := false
	fs, err := c.resolveFriends(ctx, userID)
	if err != nil {
		// The graph is unreachable; a recent snapshot is still a valid
		// basis for a page, it just may not match the live graph.
		snap, ok, snapErr := c.store.FriendSnapshot(ctx, userID)
		if snapErr != nil {
			slog.Warn("error reading friend snapshot", "user_id", userID, "error", snapErr)
		}
		if !ok {
			return c.fallback(ctx, userID, cursorStr, err)
		}
		slog.Warn("friend graph unavailable, using cached snapshot", "user_id", userID, "error", err)
		fs = snap
		degraded = true
	}

	// A fresh page for the exact same inputs short-circuits the fan-out.
	fp := cache.PageFingerprint(userID, cursorStr, fs.Version)
	if ent, ok, err := c.store.GetPage(ctx, fp); err == nil && ok {
		if ent.Fresh(time.Now()) {
			metrics.CacheReads.WithLabelValues("hit").Inc()
			// A page assembled without some upstreams stays flagged
			// for as long as the cache serves it.
			return ent.Page, degraded || ent.Degraded, nil
		}
		metrics.CacheReads.WithLabelValues("stale").Inc()
	} else {
		metrics.CacheReads.WithLabelValues("miss").Inc()
	}

	sources, failed := c.fanOut(ctx, fs.Members, after, pageSize)
	if len(sources) == 0 {
		return c.fallback(ctx, userID, cursorStr, gather.ErrUpstreamUnavailable)
	}
	if failed > 0 {
		degraded = true
	}

	res := merge.Merge(sources, after, pageSize)

	// The post store paginates on timestamps alone, so a friend with a
	// burst of posts on the cursor's exact timestamp can fill their whole
	// fetch with items the cursor already covers. Fetch deeper before
	// handing back an unprogressed cursor.
	for fetch := pageSize; len(res.Posts) == 0 && !res.Exhausted && fetch < maxFetchDepth; {
		fetch *= 4
		deeper, moreFailed := c.fanOut(ctx, res.Pending, after, fetch)
		if moreFailed > 0 {
			degraded = true
		}
		for name, src := range deeper {
			sources[name] = src
		}
		res = merge.Merge(sources, after, pageSize)
	}

	page := gather.FeedPage{Posts: res.Posts}
	switch {
	case res.Exhausted:
		// No cursor: the feed ends here.
	case !res.NextKey.IsZero():
		next, err := c.codec.Encode(res.NextKey)
		if err != nil {
			return gather.FeedPage{}, false, fmt.Errorf("error encoding next cursor: %w", err)
		}
		page.NextCursor = next
	default:
		// Nothing emitted but sources remain; resume from where we were.
		page.NextCursor = cursorStr
	}

	if degraded {
		metrics.DegradedPages.Inc()
	}

	// Write-through is best effort; the page is already in hand.
	if err := c.store.PutPage(ctx, fp, userID, cursorStr, page, degraded); err != nil {
		slog.Warn("error caching feed page", "user_id", userID, "error", err)
	}

	return page, degraded, nil
}

// resolveFriends snapshots the user's friend set and records it for fallback.
func (c *Coordinator) resolveFriends(ctx context.Context, userID string) (gather.FriendSet, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.FriendTimeout)
	defer cancel()

	ids, err := c.friends.Friends(ctx, userID)
	if err != nil {
		return gather.FriendSet{}, err
	}

	// The user sees their own posts too.
	fs := gather.NewFriendSet(userID, ids)
	if err := c.store.PutFriendSnapshot(ctx, userID, fs); err != nil {
		slog.Warn("error caching friend snapshot", "user_id", userID, "error", err)
	}

	return fs, nil
}

// fanOut fetches every member's recent posts in parallel, bounded by
// MaxFanout. A member whose fetch fails is dropped from this page; the count
// of drops comes back so the caller can flag the page degraded.
func (c *Coordinator) fanOut(ctx context.Context, members []string, after cursor.Key, pageSize int) (map[string]merge.Source, int) {
	var (
		mu      sync.Mutex
		sources = make(map[string]merge.Source, len(members))
		failed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxFanout)
	for _, member := range members {
		member := member
		g.Go(func() error {
			// Each fetch fails alone: a slow friend costs their posts,
			// never the page. Errors stay out of the group so one
			// failure doesn't cancel the siblings.
			ap, err := c.posts.PostsByAuthor(gctx, member, after.CreatedAt, pageSize)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("dropping friend from page", "author_id", member, "error", err)
				failed++
				return nil
			}
			sources[member] = merge.Source{Posts: ap.Posts, HasMore: ap.HasMore}

			return nil
		})
	}
	g.Wait()

	return sources, failed
}

// fallback serves the most recent cached page for (userID, cursor) regardless
// of freshness, marked stale. With nothing cached, the original cause goes
// back to the caller.
func (c *Coordinator) fallback(ctx context.Context, userID, cursorStr string, cause error) (gather.FeedPage, bool, error) {
	// The request's deadline may already be blown; the cache read gets its
	// own small budget.
	readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	ent, ok, err := c.store.LastPage(readCtx, userID, cursorStr)
	if err != nil {
		slog.Warn("error reading fallback page", "user_id", userID, "error", err)
	}
	if ok {
		slog.Warn("serving stale page", "user_id", userID, "inserted_at", ent.InsertedAt)
		metrics.CacheReads.WithLabelValues("stale_serve").Inc()
		metrics.DegradedPages.Inc()
		page := ent.Page
		page.Stale = true
		return page, true, nil
	}

	if ctx.Err() != nil {
		return gather.FeedPage{}, false, fmt.Errorf("page deadline exhausted: %w", ctx.Err())
	}

	return gather.FeedPage{}, false, fmt.Errorf("%w: %s", gather.ErrUpstreamUnavailable, cause)
}
