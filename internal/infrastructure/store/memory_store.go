package store

import (
	"context"
	"sync"
	"time"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/contract"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/entity"
	usecasecontract "github.com/mikiasgoitom/articulate-engage/internal/usecase/contract"
)

// DefaultInvalidationDelay is how long after a write the invalidation signal fires.
const DefaultInvalidationDelay = 150 * time.Millisecond

const mirrorTimeout = 2 * time.Second

// MemoryCacheStore is the in-process cache of subject engagement state. It owns one
// authoritative entry per subject and keeps every registered list page in sync with it.
type MemoryCacheStore struct {
	mu        sync.Mutex
	entries   map[string]entity.CacheEntry
	pages     map[string]*entity.ListPage
	version   int64
	scheduled map[string]bool

	subMu       sync.Mutex
	nextSubID   int64
	subscribers map[string]map[int64]func(entity.CacheEntry)
	invalidated map[int64]func(string)

	scheduler         contract.IScheduler
	invalidationDelay time.Duration
	mirror            contract.ICacheMirror
	logger            usecasecontract.IAppLogger
	onPropagate       func(pages int)
}

// Option configures a MemoryCacheStore.
type Option func(*MemoryCacheStore)

// WithMirror persists entries and list pages when their invalidation fires.
func WithMirror(m contract.ICacheMirror) Option {
	return func(s *MemoryCacheStore) { s.mirror = m }
}

// WithLogger sets the logger used for mirror failures.
func WithLogger(l usecasecontract.IAppLogger) Option {
	return func(s *MemoryCacheStore) { s.logger = l }
}

// WithInvalidationDelay overrides DefaultInvalidationDelay.
func WithInvalidationDelay(d time.Duration) Option {
	return func(s *MemoryCacheStore) { s.invalidationDelay = d }
}

// WithPropagationObserver is called with the number of list pages touched by each write.
func WithPropagationObserver(fn func(pages int)) Option {
	return func(s *MemoryCacheStore) { s.onPropagate = fn }
}

// NewMemoryCacheStore creates an empty store. One instance is shared per application session.
func NewMemoryCacheStore(sched contract.IScheduler, opts ...Option) *MemoryCacheStore {
	s := &MemoryCacheStore{
		entries:           make(map[string]entity.CacheEntry),
		pages:             make(map[string]*entity.ListPage),
		scheduled:         make(map[string]bool),
		subscribers:       make(map[string]map[int64]func(entity.CacheEntry)),
		invalidated:       make(map[int64]func(string)),
		scheduler:         sched,
		invalidationDelay: DefaultInvalidationDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached entry for a subject.
func (s *MemoryCacheStore) Get(subjectID string) (entity.CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[subjectID]
	return e, ok
}

// CreateDefault returns a zeroed entry without storing it.
func (s *MemoryCacheStore) CreateDefault(subjectID string) entity.CacheEntry {
	return entity.NewCacheEntry(subjectID)
}

// Put replaces the entry for entry.SubjectID and propagates it to every list page.
func (s *MemoryCacheStore) Put(entry entity.CacheEntry) entity.CacheEntry {
	return s.Update(entry.SubjectID, func(e *entity.CacheEntry) {
		e.Metrics = entry.Metrics
		e.InteractionState = entry.InteractionState
	})
}

// Patch merges the present fields of both patches into the entry.
func (s *MemoryCacheStore) Patch(subjectID string, metrics entity.MetricsPatch, state entity.InteractionPatch) entity.CacheEntry {
	return s.Update(subjectID, func(e *entity.CacheEntry) {
		metrics.ApplyTo(&e.Metrics)
		state.ApplyTo(&e.InteractionState)
	})
}

// Update applies fn to the current entry atomically, materializing a default entry for unseen subjects.
func (s *MemoryCacheStore) Update(subjectID string, fn func(entry *entity.CacheEntry)) entity.CacheEntry {
	s.mu.Lock()
	current, ok := s.entries[subjectID]
	if !ok {
		current = entity.NewCacheEntry(subjectID)
	}
	fn(&current)
	current.SubjectID = subjectID
	current.Metrics.Clamp()
	s.version++
	current.Version = s.version
	s.entries[subjectID] = current
	touched := s.propagateLocked(current)
	s.scheduleInvalidationLocked(subjectID)
	s.mu.Unlock()

	if s.onPropagate != nil && touched > 0 {
		s.onPropagate(touched)
	}
	s.notify(current)
	return current
}

// propagateLocked copies the entry into every list page holding the subject.
func (s *MemoryCacheStore) propagateLocked(entry entity.CacheEntry) int {
	touched := 0
	for _, page := range s.pages {
		if i := page.IndexOf(entry.SubjectID); i >= 0 {
			page.Entries[i] = entry
			touched++
		}
	}
	return touched
}

func (s *MemoryCacheStore) scheduleInvalidationLocked(subjectID string) {
	if s.scheduler == nil || s.scheduled[subjectID] {
		return
	}
	s.scheduled[subjectID] = true
	s.scheduler.AfterFunc(s.invalidationDelay, func() { s.invalidate(subjectID) })
}

func (s *MemoryCacheStore) invalidate(subjectID string) {
	s.mu.Lock()
	delete(s.scheduled, subjectID)
	entry, ok := s.entries[subjectID]
	var pages []entity.ListPage
	if s.mirror != nil {
		for _, p := range s.pages {
			if p.IndexOf(subjectID) >= 0 {
				pages = append(pages, copyPage(p))
			}
		}
	}
	s.mu.Unlock()

	if ok && s.mirror != nil {
		s.persist(entry, pages)
	}

	s.subMu.Lock()
	listeners := make([]func(string), 0, len(s.invalidated))
	for _, fn := range s.invalidated {
		listeners = append(listeners, fn)
	}
	s.subMu.Unlock()
	for _, fn := range listeners {
		fn(subjectID)
	}
}

func (s *MemoryCacheStore) persist(entry entity.CacheEntry, pages []entity.ListPage) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := s.mirror.SetEntry(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warnf("cache mirror: failed to persist %s: %v", entry.SubjectID, err)
	}
	for _, p := range pages {
		if err := s.mirror.SetListPage(ctx, p); err != nil && s.logger != nil {
			s.logger.Warnf("cache mirror: failed to persist list %s: %v", p.Key, err)
		}
	}
}

// RegisterListPage stores a list view. Subjects already cached keep their authoritative
// state; unseen subjects are materialized from the supplied entries.
func (s *MemoryCacheStore) RegisterListPage(key string, entries []entity.CacheEntry) entity.ListPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := &entity.ListPage{Key: key, Entries: make([]entity.CacheEntry, len(entries))}
	for i, e := range entries {
		current, ok := s.entries[e.SubjectID]
		if !ok {
			current = e
			current.Metrics.Clamp()
			s.version++
			current.Version = s.version
			s.entries[e.SubjectID] = current
		}
		page.Entries[i] = current
	}
	s.pages[key] = page
	return copyPage(page)
}

// ListPage returns a copy of a registered list page.
func (s *MemoryCacheStore) ListPage(key string) (entity.ListPage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[key]
	if !ok {
		return entity.ListPage{}, false
	}
	return copyPage(p), true
}

// RemoveListPage drops a list view and its mirrored copy; its subjects stay cached.
func (s *MemoryCacheStore) RemoveListPage(key string) {
	s.mu.Lock()
	delete(s.pages, key)
	s.mu.Unlock()

	if s.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := s.mirror.DeleteListPage(ctx, key); err != nil && s.logger != nil {
		s.logger.Warnf("cache mirror: failed to drop list %s: %v", key, err)
	}
}

// ResetViewerState clears the viewer flags of every entry and list page, keeping the
// public counters, and drops the mirrored list pages. Subscribers see the cleared state.
func (s *MemoryCacheStore) ResetViewerState() map[string]int64 {
	s.mu.Lock()
	versions := make(map[string]int64, len(s.entries))
	changed := make([]entity.CacheEntry, 0, len(s.entries))
	for id, e := range s.entries {
		e.InteractionState = entity.InteractionState{}
		s.version++
		e.Version = s.version
		s.entries[id] = e
		s.propagateLocked(e)
		versions[id] = e.Version
		changed = append(changed, e)
	}
	s.mu.Unlock()

	if s.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		if err := s.mirror.InvalidateListPages(ctx); err != nil && s.logger != nil {
			s.logger.Warnf("cache mirror: failed to drop list pages: %v", err)
		}
		cancel()
	}
	for _, e := range changed {
		s.notify(e)
	}
	return versions
}

// Warm loads entries for unseen subjects from the mirror and returns the ids it loaded.
func (s *MemoryCacheStore) Warm(ctx context.Context, subjectIDs []string) ([]string, error) {
	if s.mirror == nil {
		return nil, nil
	}
	var loaded []string
	for _, id := range subjectIDs {
		if _, ok := s.Get(id); ok {
			continue
		}
		e, found, err := s.mirror.GetEntry(ctx, id)
		if err != nil {
			return loaded, err
		}
		if found && s.adopt(*e) {
			loaded = append(loaded, id)
		}
	}
	return loaded, nil
}

// WarmListPage seeds unseen subjects from a mirrored list page and returns the ids it
// loaded. The page itself is not registered.
func (s *MemoryCacheStore) WarmListPage(ctx context.Context, key string) ([]string, error) {
	if s.mirror == nil {
		return nil, nil
	}
	if _, ok := s.ListPage(key); ok {
		return nil, nil
	}
	page, found, err := s.mirror.GetListPage(ctx, key)
	if err != nil || !found {
		return nil, err
	}
	var loaded []string
	for _, e := range page.Entries {
		if e.SubjectID != "" && s.adopt(e) {
			loaded = append(loaded, e.SubjectID)
		}
	}
	return loaded, nil
}

// adopt stores a mirrored entry unless the subject is already cached.
func (s *MemoryCacheStore) adopt(e entity.CacheEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[e.SubjectID]; exists {
		return false
	}
	e.Metrics.Clamp()
	s.version++
	e.Version = s.version
	s.entries[e.SubjectID] = e
	return true
}

// Subscribe registers fn for every write to the subject.
func (s *MemoryCacheStore) Subscribe(subjectID string, fn func(entity.CacheEntry)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	if s.subscribers[subjectID] == nil {
		s.subscribers[subjectID] = make(map[int64]func(entity.CacheEntry))
	}
	s.subscribers[subjectID][id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers[subjectID], id)
		if len(s.subscribers[subjectID]) == 0 {
			delete(s.subscribers, subjectID)
		}
	}
}

// OnInvalidate registers fn for the delayed invalidation signal that follows writes.
func (s *MemoryCacheStore) OnInvalidate(fn func(subjectID string)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.invalidated[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.invalidated, id)
	}
}

func (s *MemoryCacheStore) notify(entry entity.CacheEntry) {
	s.subMu.Lock()
	fns := make([]func(entity.CacheEntry), 0, len(s.subscribers[entry.SubjectID]))
	for _, fn := range s.subscribers[entry.SubjectID] {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(entry)
	}
}

func copyPage(p *entity.ListPage) entity.ListPage {
	out := entity.ListPage{Key: p.Key, Entries: make([]entity.CacheEntry, len(p.Entries))}
	copy(out.Entries, p.Entries)
	return out
}

var _ contract.IEngagementCache = (*MemoryCacheStore)(nil)
