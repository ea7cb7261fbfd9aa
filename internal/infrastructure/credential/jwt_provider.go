package credential

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/apperrors"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/contract"
)

// expiryLeeway treats tokens about to expire as already expired so a call never leaves with a dead token.
const expiryLeeway = 5 * time.Second

// SessionTokenProvider holds the viewer's access token for the current session.
// JWTs are checked for expiry locally; opaque tokens are passed through untouched.
type SessionTokenProvider struct {
	mu     sync.RWMutex
	token  string
	now    func() time.Time
	parser *jwt.Parser
}

// NewSessionTokenProvider creates a provider seeded with token, which may be empty.
func NewSessionTokenProvider(token string) *SessionTokenProvider {
	return &SessionTokenProvider{
		token:  token,
		now:    time.Now,
		parser: jwt.NewParser(),
	}
}

// SetToken replaces the session token, e.g. after the user re-authenticates.
func (p *SessionTokenProvider) SetToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
}

// Clear drops the session token.
func (p *SessionTokenProvider) Clear() {
	p.SetToken("")
}

// Token returns the current token or apperrors.ErrAuthRequired.
func (p *SessionTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()

	if token == "" {
		return "", apperrors.ErrAuthRequired
	}
	claims, ok := p.claims(token)
	if !ok {
		return token, nil
	}
	if claims.ExpiresAt != nil && !p.now().Add(expiryLeeway).Before(claims.ExpiresAt.Time) {
		return "", fmt.Errorf("%w: token expired at %s", apperrors.ErrAuthRequired, claims.ExpiresAt.Time.Format(time.RFC3339))
	}
	return token, nil
}

// Subject returns the "sub" claim of the current token, if it is a JWT.
func (p *SessionTokenProvider) Subject() string {
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()
	claims, ok := p.claims(token)
	if !ok {
		return ""
	}
	return claims.Subject
}

// ViewerKey identifies the session's viewer for scoping persisted state: the "sub"
// claim of a JWT, or a digest of an opaque token. It is empty without a token.
func (p *SessionTokenProvider) ViewerKey() string {
	if sub := p.Subject(); sub != "" {
		return sub
	}
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return "t-" + hex.EncodeToString(sum[:8])
}

// claims decodes a JWT without verifying its signature; the engagement service verifies it.
func (p *SessionTokenProvider) claims(token string) (*jwt.RegisteredClaims, bool) {
	if token == "" {
		return nil, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := p.parser.ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

var _ contract.ICredentialProvider = (*SessionTokenProvider)(nil)
