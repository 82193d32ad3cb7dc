package upstream

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// IdentityClient talks to the identity service that issued the caller's
// bearer token. The feed never inspects tokens itself.
type IdentityClient struct {
	client
}

func NewIdentityClient(baseURL string, timeout time.Duration) *IdentityClient {
	return &IdentityClient{client: newClient("identity", baseURL, timeout)}
}

type validateResp struct {
	UserID string `json:"userId"`
}

// Resolve validates an opaque token and returns the user it belongs to.
func (c *IdentityClient) Resolve(ctx context.Context, token string) (string, error) {
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+token)

	var resp validateResp
	if err := c.getJSON(ctx, "/validate", nil, hdr, &resp); err != nil {
		return "", fmt.Errorf("error validating token: %w", err)
	}

	return resp.UserID, nil
}
