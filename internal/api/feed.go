package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	gerrs "github.com/lmcintyre/gather/internal/errors"
	"github.com/lmcintyre/gather/internal/gather"
)

type (
	FeedResp struct {
		Posts      []PostResp `json:"posts"`
		NextCursor *string    `json:"nextCursor"`
		Degraded   bool       `json:"degraded"`

		// Stale marks a page served from an expired cache entry while
		// the upstreams were unreachable.
		Stale bool `json:"stale,omitempty"`
	}

	PostResp struct {
		AuthorID   string    `json:"authorId"`
		PostID     string    `json:"postId"`
		CreatedAt  time.Time `json:"createdAt"`
		ContentRef string    `json:"contentRef"`
	}
)

func apiFeedPage(page gather.FeedPage, degraded bool) FeedResp {
	posts := make([]PostResp, 0, len(page.Posts))
	for _, p := range page.Posts {
		posts = append(posts, PostResp{
			AuthorID:   p.AuthorID,
			PostID:     p.PostID,
			CreatedAt:  p.CreatedAt,
			ContentRef: p.ContentRef,
		})
	}

	resp := FeedResp{
		Posts:    posts,
		Degraded: degraded,
		Stale:    page.Stale,
	}
	if page.NextCursor != "" {
		resp.NextCursor = &page.NextCursor
	}

	return resp
}

func (s *Server) getFeed(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx    = r.Context()
		userID = mux.Vars(r)["userID"]
	)

	// The identity collaborator already resolved the caller; the path just
	// has to agree with it.
	if caller := callerID(ctx); caller != "" && caller != userID {
		return gerrs.E("feed belongs to another user", http.StatusForbidden)
	}

	limit := parseLimit(r, 20, 100) // default=20, max=100

	page, degraded, err := s.feed.GetFeedPage(ctx, userID, r.URL.Query().Get("cursor"), limit)
	switch {
	case errors.Is(err, gather.ErrInvalidCursor):
		return gerrs.E(err, http.StatusBadRequest)
	case errors.Is(err, context.DeadlineExceeded):
		return gerrs.E(err, http.StatusGatewayTimeout)
	case errors.Is(err, gather.ErrUpstreamUnavailable):
		return gerrs.E(err, http.StatusServiceUnavailable)
	case err != nil:
		return err
	}

	return writeJSON(w, http.StatusOK, apiFeedPage(page, degraded))
}
