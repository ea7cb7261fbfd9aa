package entity

// ListPage is a paginated collection view holding copies of cache entries.
type ListPage struct {
	Key     string       `json:"key"`
	Entries []CacheEntry `json:"entries"`
}

// IndexOf returns the position of the subject in the page, or -1.
func (p ListPage) IndexOf(subjectID string) int {
	for i, e := range p.Entries {
		if e.SubjectID == subjectID {
			return i
		}
	}
	return -1
}

// SubjectIDs returns the ids in page order.
func (p ListPage) SubjectIDs() []string {
	ids := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		ids[i] = e.SubjectID
	}
	return ids
}
