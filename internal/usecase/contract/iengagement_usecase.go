package usecasecontract

import (
	"context"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/entity"
)

// Outcome describes how the coordinator settled an action.
type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeSuppressed   Outcome = "suppressed"
	OutcomeRolledBack   Outcome = "rolled_back"
	OutcomeAuthRequired Outcome = "auth_required"
	OutcomeInvalid      Outcome = "invalid"
	OutcomeDetached     Outcome = "detached"
)

// ActionFlags carries one boolean per engagement action.
type ActionFlags struct {
	Like    bool `json:"like"`
	Dislike bool `json:"dislike"`
	Save    bool `json:"save"`
	Share   bool `json:"share"`
	Report  bool `json:"report"`
}

// Set stores the flag for an action.
func (f *ActionFlags) Set(a entity.ActionType, v bool) {
	switch a {
	case entity.ActionLike:
		f.Like = v
	case entity.ActionDislike:
		f.Dislike = v
	case entity.ActionSave:
		f.Save = v
	case entity.ActionShare:
		f.Share = v
	case entity.ActionReport:
		f.Report = v
	}
}

// StatusFlags are the in-flight and transient error flags of a subject.
type StatusFlags struct {
	Loading ActionFlags `json:"loading"`
	Error   ActionFlags `json:"error"`
}

// Lifecycle tells the coordinator whether the view that started an action is still mounted.
type Lifecycle interface {
	Mounted() bool
}

// ActionRequest is a single user engagement action.
type ActionRequest struct {
	SubjectID string
	Action    entity.ActionType
	Reason    string
	Owner     Lifecycle
}

// IEngagementUseCase coordinates optimistic engagement updates.
type IEngagementUseCase interface {
	Perform(ctx context.Context, req ActionRequest) (Outcome, error)
	Load(ctx context.Context, subjectID string) (entity.CacheEntry, error)
	LoadListPage(ctx context.Context, key string, subjectIDs []string) (entity.ListPage, error)
	ResetViewer(ctx context.Context)
	Status(subjectID string) StatusFlags
	SubscribeStatus(subjectID string, fn func(StatusFlags)) (unsubscribe func())
}
