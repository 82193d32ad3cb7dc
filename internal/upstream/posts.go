package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lmcintyre/gather/internal/gather"
)

// PostClient talks to the post store's internal read API.
type PostClient struct {
	client

	// internalKey authenticates service-to-service calls; the post store's
	// internal endpoints are not reachable with user credentials.
	internalKey string
}

func NewPostClient(baseURL string, timeout time.Duration, internalKey string) *PostClient {
	return &PostClient{
		client:      newClient("post-store", baseURL, timeout),
		internalKey: internalKey,
	}
}

type postsResp struct {
	Posts   []gather.PostSummary `json:"posts"`
	HasMore bool                 `json:"hasMore"`
}

// PostsByAuthor returns one author's posts newest-first, starting at or before
// the given resume position. A zero `before` starts from the author's newest
// post.
func (c *PostClient) PostsByAuthor(ctx context.Context, authorID string, before time.Time, limit int) (gather.AuthorPosts, error) {
	q := url.Values{
		"author": {authorID},
		"limit":  {strconv.Itoa(limit)},
	}
	if !before.IsZero() {
		q.Set("after", before.UTC().Format(time.RFC3339Nano))
	}

	hdr := http.Header{}
	if c.internalKey != "" {
		hdr.Set("X-Internal-Key", c.internalKey)
	}

	var resp postsResp
	if err := c.getJSON(ctx, "/posts", q, hdr, &resp); err != nil {
		return gather.AuthorPosts{}, fmt.Errorf("error fetching posts by %s: %w", authorID, err)
	}

	return gather.AuthorPosts{
		Posts:   resp.Posts,
		HasMore: resp.HasMore,
	}, nil
}
