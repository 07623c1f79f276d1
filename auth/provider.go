package auth

import "context"

// Provider adapts a Client to the harness TokenProvider interface, pinning
// the simulated user each call authenticates as.
type Provider struct {
	client *Client
	req    TokenRequest
}

// Provider returns a TokenProvider-shaped adapter for the given user.
func (c *Client) Provider(req TokenRequest) *Provider {
	return &Provider{client: c, req: req}
}

// Token returns a bearer token for the pinned user, going through the
// client's cache and fallback policy.
func (p *Provider) Token(ctx context.Context) (string, error) {
	bundle, err := p.client.GetAuthToken(ctx, p.req)
	if err != nil {
		return "", err
	}
	return bundle.AccessToken, nil
}
