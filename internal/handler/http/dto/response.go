package dto

import (
	"github.com/mikiasgoitom/articulate-engage/internal/domain/entity"
	"github.com/mikiasgoitom/articulate-engage/internal/handler/presenter"
)

// MessageResponse is a generic response for success/error messages.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is a response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AuthRequiredResponse tells the UI where to send the viewer to sign in again.
type AuthRequiredResponse struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect"`
}

// ActionResponse is the result of an engagement action.
type ActionResponse struct {
	Outcome string              `json:"outcome"`
	View    presenter.ViewModel `json:"view"`
}

// ListPageResponse is a registered list view.
type ListPageResponse struct {
	Key     string                 `json:"key"`
	Entries []SubjectEntryResponse `json:"entries"`
}

// SubjectEntryResponse is one subject row of a list view.
type SubjectEntryResponse struct {
	SubjectID        string                  `json:"subject_id"`
	Metrics          entity.Metrics          `json:"metrics"`
	InteractionState entity.InteractionState `json:"interaction_state"`
}

// ToListPageResponse converts an entity.ListPage to its DTO.
func ToListPageResponse(page entity.ListPage) ListPageResponse {
	entries := make([]SubjectEntryResponse, len(page.Entries))
	for i, e := range page.Entries {
		entries[i] = SubjectEntryResponse{
			SubjectID:        e.SubjectID,
			Metrics:          e.Metrics,
			InteractionState: e.InteractionState,
		}
	}
	return ListPageResponse{Key: page.Key, Entries: entries}
}
