package upstream

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// FriendClient talks to the friend-graph service.
type FriendClient struct {
	client
}

func NewFriendClient(baseURL string, timeout time.Duration) *FriendClient {
	return &FriendClient{client: newClient("friend-graph", baseURL, timeout)}
}

type friendsResp struct {
	FriendIDs []string `json:"friendIds"`
}

// Friends returns the ids of everyone the user is friends with.
func (c *FriendClient) Friends(ctx context.Context, userID string) ([]string, error) {
	var resp friendsResp
	if err := c.getJSON(ctx, "/friends/"+url.PathEscape(userID), nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("error fetching friends of %s: %w", userID, err)
	}

	return resp.FriendIDs, nil
}
