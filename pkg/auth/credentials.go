// Package auth attaches credentials to outbound requests. Three schemes
// are supported: no authentication, a static bearer token, and an OAuth2
// client-credentials flow whose token is fetched lazily, cached until
// expiry, and refreshed by at most one caller at a time.
package auth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Credentials adds authentication headers to an outbound request. Attach
// may block (e.g. to fetch or refresh a token) and may be called
// concurrently from independent extractions sharing one client.
type Credentials interface {
	Attach(ctx context.Context, headers http.Header) error
}

// None returns credentials that attach nothing.
func None() Credentials { return noneCredentials{} }

type noneCredentials struct{}

func (noneCredentials) Attach(context.Context, http.Header) error { return nil }

// StaticBearer returns credentials that attach a fixed bearer token.
func StaticBearer(token string) Credentials {
	return &staticBearer{token: token}
}

type staticBearer struct {
	token string
}

func (b *staticBearer) Attach(_ context.Context, headers http.Header) error {
	headers.Set("Authorization", "Bearer "+b.token)
	return nil
}

// OAuth2Config configures the client-credentials token exchange.
type OAuth2Config struct {
	// TokenURL is the provider's token endpoint.
	TokenURL string

	// ClientID and ClientSecret identify this client to the provider.
	ClientID     string
	ClientSecret string

	// Scopes optionally restricts the requested token scope.
	Scopes []string

	// HTTPClient optionally overrides the client used for the token
	// exchange (tests point this at a local server).
	HTTPClient *http.Client
}

// NewClientCredentials returns credentials backed by the OAuth2
// client-credentials flow. The token is fetched on first Attach, cached,
// and refreshed transparently near expiry. oauth2.ReuseTokenSource
// serializes refreshes: when several extractions race on an expired token,
// one performs the exchange and the others block for its result.
func NewClientCredentials(cfg OAuth2Config) Credentials {
	cc := &clientcredentials.Config{
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.Scopes,
	}

	ctx := context.Background()
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}

	return &tokenCredentials{
		tokenURL: cfg.TokenURL,
		source:   oauth2.ReuseTokenSource(nil, cc.TokenSource(ctx)),
	}
}

// BearerSource returns credentials that draw bearer tokens from an
// arbitrary token source. Useful for providers with non-standard flows and
// for tests.
func BearerSource(source oauth2.TokenSource) Credentials {
	return &tokenCredentials{source: source}
}

type tokenCredentials struct {
	tokenURL string
	source   oauth2.TokenSource
}

func (c *tokenCredentials) Attach(ctx context.Context, headers http.Header) error {
	token, err := c.token(ctx)
	if err != nil {
		if c.tokenURL != "" {
			return fmt.Errorf("fetch token from %s: %w", c.tokenURL, err)
		}
		return fmt.Errorf("fetch token: %w", err)
	}
	token.SetAuthHeader(asRequest(headers))
	return nil
}

// token fetches from the source without outliving the caller's context.
// oauth2.TokenSource.Token takes no context, so the fetch runs in its own
// goroutine and the wait is abandoned on cancellation; a later Attach picks
// up the cached result if the exchange eventually completed.
func (c *tokenCredentials) token(ctx context.Context) (*oauth2.Token, error) {
	type result struct {
		token *oauth2.Token
		err   error
	}
	done := make(chan result, 1)
	go func() {
		token, err := c.source.Token()
		done <- result{token, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.token, r.err
	}
}

// asRequest wraps a header map in a throwaway request so that
// oauth2.Token.SetAuthHeader can be reused for token-type handling.
func asRequest(headers http.Header) *http.Request {
	return &http.Request{Header: headers}
}
