package entity

// MetricsPatch is a partial Metrics update; nil fields are left untouched.
type MetricsPatch struct {
	LikeCount    *int64 `json:"like_count,omitempty"`
	DislikeCount *int64 `json:"dislike_count,omitempty"`
	SaveCount    *int64 `json:"save_count,omitempty"`
	ShareCount   *int64 `json:"share_count,omitempty"`
	CommentCount *int64 `json:"comment_count,omitempty"`
	ReportCount  *int64 `json:"report_count,omitempty"`
}

// Get returns the patched counter for an action, or nil when absent.
func (p MetricsPatch) Get(a ActionType) *int64 {
	switch a {
	case ActionLike:
		return p.LikeCount
	case ActionDislike:
		return p.DislikeCount
	case ActionSave:
		return p.SaveCount
	case ActionShare:
		return p.ShareCount
	case ActionReport:
		return p.ReportCount
	}
	return nil
}

// Set records a counter value for an action.
func (p *MetricsPatch) Set(a ActionType, v int64) {
	switch a {
	case ActionLike:
		p.LikeCount = &v
	case ActionDislike:
		p.DislikeCount = &v
	case ActionSave:
		p.SaveCount = &v
	case ActionShare:
		p.ShareCount = &v
	case ActionReport:
		p.ReportCount = &v
	}
}

// IsEmpty reports whether the patch carries no fields.
func (p MetricsPatch) IsEmpty() bool {
	return p.LikeCount == nil && p.DislikeCount == nil && p.SaveCount == nil &&
		p.ShareCount == nil && p.CommentCount == nil && p.ReportCount == nil
}

// FillFrom copies fields from other that are absent in p.
func (p *MetricsPatch) FillFrom(other MetricsPatch) {
	if p.LikeCount == nil {
		p.LikeCount = other.LikeCount
	}
	if p.DislikeCount == nil {
		p.DislikeCount = other.DislikeCount
	}
	if p.SaveCount == nil {
		p.SaveCount = other.SaveCount
	}
	if p.ShareCount == nil {
		p.ShareCount = other.ShareCount
	}
	if p.CommentCount == nil {
		p.CommentCount = other.CommentCount
	}
	if p.ReportCount == nil {
		p.ReportCount = other.ReportCount
	}
}

// ApplyTo overwrites the fields present in the patch, clamping at zero.
func (p MetricsPatch) ApplyTo(m *Metrics) {
	set := func(dst *int64, src *int64) {
		if src != nil {
			*dst = clamp(*src)
		}
	}
	set(&m.LikeCount, p.LikeCount)
	set(&m.DislikeCount, p.DislikeCount)
	set(&m.SaveCount, p.SaveCount)
	set(&m.ShareCount, p.ShareCount)
	set(&m.CommentCount, p.CommentCount)
	set(&m.ReportCount, p.ReportCount)
}

// InteractionPatch is a partial InteractionState update; nil fields are left untouched.
type InteractionPatch struct {
	Like    *bool `json:"like,omitempty"`
	Dislike *bool `json:"dislike,omitempty"`
	Save    *bool `json:"save,omitempty"`
	Share   *bool `json:"share,omitempty"`
	Report  *bool `json:"report,omitempty"`
}

// Get returns the patched flag for an action, or nil when absent.
func (p InteractionPatch) Get(a ActionType) *bool {
	switch a {
	case ActionLike:
		return p.Like
	case ActionDislike:
		return p.Dislike
	case ActionSave:
		return p.Save
	case ActionShare:
		return p.Share
	case ActionReport:
		return p.Report
	}
	return nil
}

// Set records a flag value for an action.
func (p *InteractionPatch) Set(a ActionType, v bool) {
	switch a {
	case ActionLike:
		p.Like = &v
	case ActionDislike:
		p.Dislike = &v
	case ActionSave:
		p.Save = &v
	case ActionShare:
		p.Share = &v
	case ActionReport:
		p.Report = &v
	}
}

// ApplyTo overwrites the flags present in the patch.
func (p InteractionPatch) ApplyTo(s *InteractionState) {
	for _, a := range AllActions {
		if v := p.Get(a); v != nil {
			s.SetActive(a, *v)
		}
	}
}
