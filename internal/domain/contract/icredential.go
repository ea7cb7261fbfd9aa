package contract

import "context"

// ICredentialProvider supplies the bearer credential for outbound calls.
// It returns apperrors.ErrAuthRequired when no usable credential exists.
type ICredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// IAuthRedirector hands control to the external re-authentication flow.
type IAuthRedirector interface {
	RequireAuthentication(ctx context.Context, subjectID string, action string)
}
