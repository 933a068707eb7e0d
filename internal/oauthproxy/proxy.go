// Package oauthproxy fronts Anthropic's OAuth token endpoint so browser
// clients can complete the authorization-code exchange without hitting
// CORS, using a fixed client ID and redirect URI (Spider issues no
// authorization redirects of its own — the console's own login flow
// produces the code this package exchanges).
package oauthproxy

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	tokenURL    = "https://console.anthropic.com/v1/oauth/token"
	clientID    = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"
	redirectURI = "https://console.anthropic.com/oauth/code/callback"

	// Timeout bounds both the code exchange and refresh calls.
	Timeout = 30 * time.Second
)

// Tokens is the normalized result of an exchange or refresh call.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// Proxy issues OAuth token requests against Anthropic's fixed endpoint
// using oauth2.Config's authorization-code exchange and refresh-token
// plumbing — the teacher's internal/auth package leans on the same
// library for its own OAuth flows, trimmed here to the single fixed
// provider Spider's OAuth Proxy describes.
type Proxy struct {
	config     oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

// New creates a Proxy.
func New() *Proxy {
	return &Proxy{
		config: oauth2.Config{
			ClientID:    clientID,
			RedirectURL: redirectURI,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{},
		now:        time.Now,
	}
}

// ExchangeCode trades an authorization code (Spider's console callback
// encodes "<code>#<state>") plus PKCE verifier for a token pair.
func (p *Proxy) ExchangeCode(ctx context.Context, code, verifier string) (Tokens, error) {
	parts := strings.SplitN(code, "#", 2)
	authCode := parts[0]
	state := ""
	if len(parts) > 1 {
		state = parts[1]
	}

	ctx, cancel := context.WithTimeout(contextWithHTTPClient(ctx, p.httpClient), Timeout)
	defer cancel()

	token, err := p.config.Exchange(ctx, authCode,
		oauth2.SetAuthURLParam("state", state),
		oauth2.SetAuthURLParam("code_verifier", verifier),
	)
	if err != nil {
		return Tokens{}, fmt.Errorf("oauthproxy: exchange failed: %w", err)
	}

	return p.normalize(token), nil
}

// Refresh trades a refresh token for a new token pair via oauth2's
// TokenSource refresh plumbing.
func (p *Proxy) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	ctx, cancel := context.WithTimeout(contextWithHTTPClient(ctx, p.httpClient), Timeout)
	defer cancel()

	source := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return Tokens{}, fmt.Errorf("oauthproxy: refresh failed: %w", err)
	}

	return p.normalize(token), nil
}

func (p *Proxy) normalize(token *oauth2.Token) Tokens {
	expiresAt := token.Expiry.Unix()
	if token.Expiry.IsZero() {
		expiresAt = p.now().Add(time.Hour).Unix()
	}
	return Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expiresAt,
	}
}

func contextWithHTTPClient(ctx context.Context, client *http.Client) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}
