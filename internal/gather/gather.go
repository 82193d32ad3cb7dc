package gather

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/cespare/xxhash/v2"
)

var (
	// ErrNotFound means the upstream has no record of the requested resource.
	ErrNotFound = errors.New("resource not found")

	// ErrUpstreamUnavailable means every upstream required for the request
	// failed and no usable cache entry could stand in for them.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInvalidCursor means a pagination token was malformed or did not
	// originate from this service.
	ErrInvalidCursor = errors.New("invalid cursor")
)

type (
	// PostSummary is a single post as the feed presents it: just enough to
	// render a timeline row, with a pointer at the full content.
	PostSummary struct {
		AuthorID   string    `json:"authorId"`
		PostID     string    `json:"postId"`
		CreatedAt  time.Time `json:"createdAt"`
		ContentRef string    `json:"contentRef"`
	}

	// FeedPage is one page of a user's feed, newest first.
	FeedPage struct {
		Posts []PostSummary `json:"posts"`

		// NextCursor resumes the feed after the last post in Posts.
		// Empty when the feed is exhausted.
		NextCursor string `json:"nextCursor,omitempty"`

		// Stale is set when the page was served from an expired cache
		// entry because the upstreams could not be reached.
		Stale bool `json:"stale,omitempty"`
	}

	// FriendSet is a snapshot of who a user can see posts from, taken at
	// request start. It includes the user themselves. The live graph may
	// have moved on by the time the snapshot is used.
	FriendSet struct {
		Members []string `json:"members"`
		Version uint64   `json:"version"`
	}

	// AuthorPosts is one author's slice of recent posts, newest first.
	// HasMore is set when the post store truncated the result at its own
	// page limit.
	AuthorPosts struct {
		Posts   []PostSummary
		HasMore bool
	}

	// FriendGraph answers who a user's friends are.
	FriendGraph interface {
		Friends(ctx context.Context, userID string) ([]string, error)
	}

	// PostStore answers an author's posts at or before a resume position,
	// newest first.
	PostStore interface {
		PostsByAuthor(ctx context.Context, authorID string, before time.Time, limit int) (AuthorPosts, error)
	}

	// Identity resolves an opaque bearer token to the user it belongs to.
	Identity interface {
		Resolve(ctx context.Context, token string) (string, error)
	}

	// Feed assembles a page of posts from a user's friends.
	Feed interface {
		GetFeedPage(ctx context.Context, userID, cursor string, pageSize int) (FeedPage, bool, error)
	}
)

// NewFriendSet builds a snapshot over the given member ids plus the user
// themselves. Members are sorted and deduplicated so that the same set always
// hashes to the same version, regardless of the order the graph returned it in.
func NewFriendSet(userID string, friendIDs []string) FriendSet {
	members := make([]string, 0, len(friendIDs)+1)
	members = append(members, friendIDs...)
	members = append(members, userID)
	slices.Sort(members)
	members = slices.Compact(members)

	h := xxhash.New()
	for _, m := range members {
		h.WriteString(m)
		h.Write([]byte{0})
	}

	return FriendSet{
		Members: members,
		Version: h.Sum64(),
	}
}
