package infra

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// AuthUser is the provider-agnostic slice of an identity we care about:
// who the caller is and what their capability inputs look like.
type AuthUser struct {
	ID     string   `json:"id"`
	Emails []string `json:"emails"`
	Role   string   `json:"role"`
}

// IdentityClient resolves session tokens against the identity provider.
type IdentityClient struct {
	client *resty.Client
}

func NewIdentityClient(baseURL string, timeout time.Duration) *IdentityClient {
	return &IdentityClient{
		client: resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
	}
}

func (c *IdentityClient) ResolveUser(ctx context.Context, token string) (*AuthUser, error) {
	var user AuthUser
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&user).
		Get("/v1/me")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode())
	}
	return &user, nil
}
