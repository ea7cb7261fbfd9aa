package credential

import (
	"context"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/contract"
	usecasecontract "github.com/mikiasgoitom/articulate-engage/internal/usecase/contract"
)

// SessionRedirector ends the local session when the engagement service rejects the credential,
// so later actions fail fast until the UI completes its login flow.
type SessionRedirector struct {
	session     *SessionTokenProvider
	redirectURL string
	logger      usecasecontract.IAppLogger
}

func NewSessionRedirector(session *SessionTokenProvider, redirectURL string, logger usecasecontract.IAppLogger) *SessionRedirector {
	return &SessionRedirector{session: session, redirectURL: redirectURL, logger: logger}
}

func (r *SessionRedirector) RequireAuthentication(ctx context.Context, subjectID string, action string) {
	if r.session != nil {
		r.session.Clear()
	}
	r.logger.Infof("authentication required for %s on %s; redirecting to %s", action, subjectID, r.redirectURL)
}

// RedirectURL is where the UI should send the viewer to sign in again.
func (r *SessionRedirector) RedirectURL() string {
	return r.redirectURL
}

var _ contract.IAuthRedirector = (*SessionRedirector)(nil)
