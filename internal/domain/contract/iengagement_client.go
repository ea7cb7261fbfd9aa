package contract

import (
	"context"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/entity"
)

// IEngagementClient issues one call per action against the engagement service.
type IEngagementClient interface {
	Like(ctx context.Context, subjectID string) (*entity.EngagementResult, error)
	Dislike(ctx context.Context, subjectID string) (*entity.EngagementResult, error)
	Save(ctx context.Context, subjectID string) (*entity.EngagementResult, error)
	Share(ctx context.Context, subjectID string) (*entity.EngagementResult, error)
	Report(ctx context.Context, subjectID, reason string) (*entity.EngagementResult, error)
}

// ISubjectSource reads the authoritative state of a post or comment.
type ISubjectSource interface {
	FetchSubject(ctx context.Context, subjectID string) (*entity.SubjectSnapshot, error)
}
