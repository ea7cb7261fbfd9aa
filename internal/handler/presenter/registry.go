package presenter

import (
	"sync"
	"time"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/contract"
	usecasecontract "github.com/mikiasgoitom/articulate-engage/internal/usecase/contract"
)

// Registry shares one presenter per subject between the HTTP and stream surfaces.
// A presenter stays mounted while it is held and is unmounted once the last holder
// releases it, optionally after an idle grace period.
type Registry struct {
	engagement usecasecontract.IEngagementUseCase
	cache      contract.IEngagementCache
	logger     usecasecontract.IAppLogger

	scheduler contract.IScheduler
	idleTTL   time.Duration

	mu      sync.Mutex
	mounted map[string]*mountedPresenter
}

type mountedPresenter struct {
	presenter *SubjectPresenter
	refs      int
	idle      contract.ITimer
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIdleEviction keeps an unheld presenter mounted for ttl so that re-validation of
// the actions it started still runs.
func WithIdleEviction(sched contract.IScheduler, ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		r.scheduler = sched
		r.idleTTL = ttl
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(engagement usecasecontract.IEngagementUseCase, cache contract.IEngagementCache, logger usecasecontract.IAppLogger, opts ...RegistryOption) *Registry {
	r := &Registry{
		engagement: engagement,
		cache:      cache,
		logger:     logger,
		mounted:    make(map[string]*mountedPresenter),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire returns the presenter for subjectID, mounting one if needed, and a release
// func the caller must call when done with it. Release is safe to call more than once.
func (r *Registry) Acquire(subjectID string) (*SubjectPresenter, func()) {
	r.mu.Lock()
	m, ok := r.mounted[subjectID]
	if !ok {
		m = &mountedPresenter{presenter: NewSubjectPresenter(subjectID, r.engagement, r.cache, r.logger)}
		r.mounted[subjectID] = m
	}
	m.refs++
	if m.idle != nil {
		m.idle.Stop()
		m.idle = nil
	}
	r.mu.Unlock()

	var once sync.Once
	return m.presenter, func() { once.Do(func() { r.release(subjectID, m) }) }
}

func (r *Registry) release(subjectID string, m *mountedPresenter) {
	r.mu.Lock()
	m.refs--
	if m.refs > 0 || r.mounted[subjectID] != m {
		r.mu.Unlock()
		return
	}
	if r.scheduler != nil && r.idleTTL > 0 {
		m.idle = r.scheduler.AfterFunc(r.idleTTL, func() { r.evictIdle(subjectID, m) })
		r.mu.Unlock()
		return
	}
	delete(r.mounted, subjectID)
	r.mu.Unlock()
	m.presenter.Close()
}

func (r *Registry) evictIdle(subjectID string, m *mountedPresenter) {
	r.mu.Lock()
	if m.refs > 0 || r.mounted[subjectID] != m {
		r.mu.Unlock()
		return
	}
	delete(r.mounted, subjectID)
	r.mu.Unlock()
	m.presenter.Close()
}

// Len returns the number of mounted presenters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mounted)
}

// Close unmounts every presenter.
func (r *Registry) Close() {
	r.mu.Lock()
	mounted := r.mounted
	r.mounted = make(map[string]*mountedPresenter)
	r.mu.Unlock()
	for _, m := range mounted {
		if m.idle != nil {
			m.idle.Stop()
		}
		m.presenter.Close()
	}
}
