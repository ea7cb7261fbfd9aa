package dto

// Request DTOs for engagement handlers

// ReportRequest carries the reason for a report action. The reason is checked by the usecase.
type ReportRequest struct {
	Reason string `json:"reason"`
}

// ListPageRequest registers the subjects of a list view in display order.
type ListPageRequest struct {
	SubjectIDs []string `json:"subject_ids" binding:"required,min=1,max=100,dive,required"`
}

// SessionRequest replaces the viewer's access token.
type SessionRequest struct {
	Token string `json:"token" binding:"required"`
}
