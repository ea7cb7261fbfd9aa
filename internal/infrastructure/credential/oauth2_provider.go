package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/apperrors"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/contract"
)

// TokenSourceProvider adapts an oauth2.TokenSource to the credential contract.
type TokenSourceProvider struct {
	source oauth2.TokenSource
}

// NewTokenSourceProvider wraps ts, caching tokens until they expire.
func NewTokenSourceProvider(ts oauth2.TokenSource) *TokenSourceProvider {
	return &TokenSourceProvider{source: oauth2.ReuseTokenSource(nil, ts)}
}

// NewClientCredentialsProvider fetches service tokens with the OAuth2 client-credentials grant.
func NewClientCredentialsProvider(ctx context.Context, clientID, clientSecret, tokenURL string, scopes ...string) *TokenSourceProvider {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	return NewTokenSourceProvider(cfg.TokenSource(ctx))
}

// Token returns a valid access token. A token endpoint that rejects the client yields
// apperrors.ErrAuthRequired; any other failure to reach it is returned as is.
func (p *TokenSourceProvider) Token(ctx context.Context) (string, error) {
	tok, err := p.source.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil &&
			(re.Response.StatusCode == http.StatusBadRequest || re.Response.StatusCode == http.StatusUnauthorized) {
			return "", fmt.Errorf("%w: %v", apperrors.ErrAuthRequired, err)
		}
		return "", fmt.Errorf("fetch service token: %w", err)
	}
	if !tok.Valid() {
		return "", apperrors.ErrAuthRequired
	}
	return tok.AccessToken, nil
}

var _ contract.ICredentialProvider = (*TokenSourceProvider)(nil)
