package entity

import "fmt"

// ActionType identifies an engagement action a viewer can perform on a subject.
type ActionType string

const (
	ActionLike    ActionType = "like"
	ActionDislike ActionType = "dislike"
	ActionSave    ActionType = "save"
	ActionShare   ActionType = "share"
	ActionReport  ActionType = "report"
)

// AllActions lists every engagement action in a stable order.
var AllActions = []ActionType{ActionLike, ActionDislike, ActionSave, ActionShare, ActionReport}

// IsValid reports whether the action is one of the known engagement actions.
func (a ActionType) IsValid() bool {
	switch a {
	case ActionLike, ActionDislike, ActionSave, ActionShare, ActionReport:
		return true
	default:
		return false
	}
}

// IsToggle reports whether repeating the action turns it off. Share only ever increments.
func (a ActionType) IsToggle() bool {
	return a.IsValid() && a != ActionShare
}

// Opposite returns the mutually exclusive counterpart of like/dislike.
func (a ActionType) Opposite() (ActionType, bool) {
	switch a {
	case ActionLike:
		return ActionDislike, true
	case ActionDislike:
		return ActionLike, true
	default:
		return "", false
	}
}

// CountField is the wire name of the counter an action drives.
func (a ActionType) CountField() string {
	return string(a) + "_count"
}

// Metrics holds the public counters of a subject.
type Metrics struct {
	LikeCount    int64 `json:"like_count" bson:"like_count"`
	DislikeCount int64 `json:"dislike_count" bson:"dislike_count"`
	SaveCount    int64 `json:"save_count" bson:"save_count"`
	ShareCount   int64 `json:"share_count" bson:"share_count"`
	CommentCount int64 `json:"comment_count" bson:"comment_count"`
	ReportCount  int64 `json:"report_count" bson:"report_count"`
}

// Count returns the counter driven by the given action.
func (m Metrics) Count(a ActionType) int64 {
	switch a {
	case ActionLike:
		return m.LikeCount
	case ActionDislike:
		return m.DislikeCount
	case ActionSave:
		return m.SaveCount
	case ActionShare:
		return m.ShareCount
	case ActionReport:
		return m.ReportCount
	}
	return 0
}

// SetCount stores v (clamped at zero) in the counter driven by the given action.
func (m *Metrics) SetCount(a ActionType, v int64) {
	v = clamp(v)
	switch a {
	case ActionLike:
		m.LikeCount = v
	case ActionDislike:
		m.DislikeCount = v
	case ActionSave:
		m.SaveCount = v
	case ActionShare:
		m.ShareCount = v
	case ActionReport:
		m.ReportCount = v
	}
}

// AddCount adjusts the counter for the action by delta, never going below zero.
func (m *Metrics) AddCount(a ActionType, delta int64) {
	m.SetCount(a, m.Count(a)+delta)
}

// Clamp forces every counter to be non-negative.
func (m *Metrics) Clamp() {
	m.LikeCount = clamp(m.LikeCount)
	m.DislikeCount = clamp(m.DislikeCount)
	m.SaveCount = clamp(m.SaveCount)
	m.ShareCount = clamp(m.ShareCount)
	m.CommentCount = clamp(m.CommentCount)
	m.ReportCount = clamp(m.ReportCount)
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// InteractionState records which actions the current viewer has active on a subject.
type InteractionState struct {
	Like    bool `json:"like"`
	Dislike bool `json:"dislike"`
	Save    bool `json:"save"`
	Share   bool `json:"share"`
	Report  bool `json:"report"`
}

// Active returns the viewer flag for the given action.
func (s InteractionState) Active(a ActionType) bool {
	switch a {
	case ActionLike:
		return s.Like
	case ActionDislike:
		return s.Dislike
	case ActionSave:
		return s.Save
	case ActionShare:
		return s.Share
	case ActionReport:
		return s.Report
	}
	return false
}

// SetActive stores the viewer flag for the given action.
func (s *InteractionState) SetActive(a ActionType, v bool) {
	switch a {
	case ActionLike:
		s.Like = v
	case ActionDislike:
		s.Dislike = v
	case ActionSave:
		s.Save = v
	case ActionShare:
		s.Share = v
	case ActionReport:
		s.Report = v
	}
}

// CacheEntry is the single logical source of truth for a subject across all views.
type CacheEntry struct {
	SubjectID        string           `json:"subject_id"`
	Metrics          Metrics          `json:"metrics"`
	InteractionState InteractionState `json:"interaction_state"`
	// Version is stamped by the cache store on every write.
	Version int64 `json:"version"`
}

// NewCacheEntry returns a zeroed entry for the subject.
func NewCacheEntry(subjectID string) CacheEntry {
	return CacheEntry{SubjectID: subjectID}
}

// PendingActionKey suppresses duplicate in-flight requests for the same action on the same subject.
type PendingActionKey struct {
	SubjectID string
	Action    ActionType
}

func (k PendingActionKey) String() string {
	return fmt.Sprintf("%s:%s", k.SubjectID, k.Action)
}

// EngagementResult is the canonical server response to an action.
type EngagementResult struct {
	Action ActionType
	// Metrics carries every counter the server reported; nil fields were omitted.
	Metrics MetricsPatch
	// Active is the server's final flag for the acted-upon action. Nil for share or when omitted.
	Active *bool
}

// HasCount reports whether the server supplied the counter for the given action.
func (r *EngagementResult) HasCount(a ActionType) bool {
	return r != nil && r.Metrics.Get(a) != nil
}

// CommentCountField is the wire name of the comment counter, which no action drives.
const CommentCountField = "comment_count"

// SubjectSnapshot is the authoritative state of a subject as read from the post/comment store.
type SubjectSnapshot struct {
	SubjectID        string
	Metrics          Metrics
	InteractionState InteractionState
	// UnreportedFlags and UnreportedCounts name the fields the source left out. Their
	// values in the snapshot are zero and carry no information. Empty means fully reported.
	UnreportedFlags  []ActionType
	UnreportedCounts []string
}

// ReportsFlag reports whether the source supplied the viewer flag for a.
func (s SubjectSnapshot) ReportsFlag(a ActionType) bool {
	for _, u := range s.UnreportedFlags {
		if u == a {
			return false
		}
	}
	return true
}

// ReportsCount reports whether the source supplied the counter with the given wire name.
func (s SubjectSnapshot) ReportsCount(field string) bool {
	for _, u := range s.UnreportedCounts {
		if u == field {
			return false
		}
	}
	return true
}

// ToCacheEntry converts the snapshot into a fresh cache entry.
func (s SubjectSnapshot) ToCacheEntry() CacheEntry {
	m := s.Metrics
	m.Clamp()
	return CacheEntry{SubjectID: s.SubjectID, Metrics: m, InteractionState: s.InteractionState}
}
