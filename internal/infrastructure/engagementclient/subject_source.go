package engagementclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/apperrors"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/contract"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/entity"
)

// SubjectSource reads a subject's authoritative engagement state from the engagement service.
type SubjectSource struct {
	client *Client
}

// NewSubjectSource reuses the client's credentials, base URL and HTTP settings.
func NewSubjectSource(client *Client) *SubjectSource {
	return &SubjectSource{client: client}
}

// FetchSubject issues GET /engagement/{subjectId}.
func (s *SubjectSource) FetchSubject(ctx context.Context, subjectID string) (*entity.SubjectSnapshot, error) {
	endpoint := fmt.Sprintf("%s/engagement/%s", s.client.baseURL, url.PathEscape(subjectID))
	body, err := s.client.do(ctx, http.MethodGet, endpoint, "fetch", subjectID, nil)
	if err != nil {
		return nil, err
	}
	snap, err := normalizeSnapshot(subjectID, body)
	if err != nil {
		return nil, &apperrors.TransportError{Action: "fetch", SubjectID: subjectID, Err: err}
	}
	return snap, nil
}

var _ contract.ISubjectSource = (*SubjectSource)(nil)
