package presenter

import (
	"context"
	"sync"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/contract"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/entity"
	usecasecontract "github.com/mikiasgoitom/articulate-engage/internal/usecase/contract"
)

// ViewModel is what a subject view renders.
type ViewModel struct {
	SubjectID        string                      `json:"subject_id"`
	Metrics          entity.Metrics              `json:"metrics"`
	InteractionState entity.InteractionState     `json:"interaction_state"`
	Loading          usecasecontract.ActionFlags `json:"loading"`
	Error            usecasecontract.ActionFlags `json:"error"`
}

// SubjectPresenter binds one subject's cache entry and status flags to a view.
// It is the owner of the actions it starts; after Close their settles no longer write.
type SubjectPresenter struct {
	subjectID  string
	engagement usecasecontract.IEngagementUseCase
	cache      contract.IEngagementCache
	logger     usecasecontract.IAppLogger

	mu      sync.Mutex
	entry   entity.CacheEntry
	status  usecasecontract.StatusFlags
	closed  bool
	nextID  int64
	subs    map[int64]func(ViewModel)
	unbinds []func()
}

// NewSubjectPresenter mounts a presenter for subjectID.
func NewSubjectPresenter(subjectID string, engagement usecasecontract.IEngagementUseCase, cache contract.IEngagementCache, logger usecasecontract.IAppLogger) *SubjectPresenter {
	p := &SubjectPresenter{
		subjectID:  subjectID,
		engagement: engagement,
		cache:      cache,
		logger:     logger,
		status:     engagement.Status(subjectID),
		subs:       make(map[int64]func(ViewModel)),
	}
	p.entry = p.current()

	p.unbinds = append(p.unbinds,
		cache.Subscribe(subjectID, p.onEntry),
		cache.OnInvalidate(func(id string) {
			if id == subjectID {
				p.onEntry(p.current())
			}
		}),
		engagement.SubscribeStatus(subjectID, p.onStatus),
	)
	return p
}

func (p *SubjectPresenter) current() entity.CacheEntry {
	if e, ok := p.cache.Get(p.subjectID); ok {
		return e
	}
	return p.cache.CreateDefault(p.subjectID)
}

// SubjectID returns the subject this presenter shows.
func (p *SubjectPresenter) SubjectID() string { return p.subjectID }

// Mounted reports whether the presenter is still open.
func (p *SubjectPresenter) Mounted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

// Load reads the subject through the coordinator so a cold cache is seeded.
func (p *SubjectPresenter) Load(ctx context.Context) error {
	e, err := p.engagement.Load(ctx, p.subjectID)
	if err != nil {
		return err
	}
	p.onEntry(e)
	return nil
}

func (p *SubjectPresenter) HandleLike(ctx context.Context) usecasecontract.Outcome {
	return p.handle(ctx, entity.ActionLike)
}

func (p *SubjectPresenter) HandleDislike(ctx context.Context) usecasecontract.Outcome {
	return p.handle(ctx, entity.ActionDislike)
}

func (p *SubjectPresenter) HandleSave(ctx context.Context) usecasecontract.Outcome {
	return p.handle(ctx, entity.ActionSave)
}

func (p *SubjectPresenter) HandleShare(ctx context.Context) usecasecontract.Outcome {
	return p.handle(ctx, entity.ActionShare)
}

// HandleReport files a report. A missing reason comes back as a validation error.
func (p *SubjectPresenter) HandleReport(ctx context.Context, reason string) (usecasecontract.Outcome, error) {
	return p.engagement.Perform(ctx, usecasecontract.ActionRequest{
		SubjectID: p.subjectID,
		Action:    entity.ActionReport,
		Reason:    reason,
		Owner:     p,
	})
}

// Handle dispatches any action; report needs HandleReport for its reason.
func (p *SubjectPresenter) Handle(ctx context.Context, action entity.ActionType) usecasecontract.Outcome {
	return p.handle(ctx, action)
}

func (p *SubjectPresenter) handle(ctx context.Context, action entity.ActionType) usecasecontract.Outcome {
	out, err := p.engagement.Perform(ctx, usecasecontract.ActionRequest{
		SubjectID: p.subjectID,
		Action:    action,
		Owner:     p,
	})
	if err != nil {
		p.logger.Warnf("presenter: %s on %s rejected: %v", action, p.subjectID, err)
	}
	return out
}

// ViewModel returns the current rendering state.
func (p *SubjectPresenter) ViewModel() ViewModel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewModelLocked()
}

func (p *SubjectPresenter) viewModelLocked() ViewModel {
	return ViewModel{
		SubjectID:        p.subjectID,
		Metrics:          p.entry.Metrics,
		InteractionState: p.entry.InteractionState,
		Loading:          p.status.Loading,
		Error:            p.status.Error,
	}
}

// Subscribe registers fn for every view model change until the returned func is called.
func (p *SubjectPresenter) Subscribe(fn func(ViewModel)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// Close unmounts the presenter.
func (p *SubjectPresenter) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	unbinds := p.unbinds
	p.unbinds = nil
	p.subs = make(map[int64]func(ViewModel))
	p.mu.Unlock()

	for _, unbind := range unbinds {
		unbind()
	}
}

// onEntry ignores entries older than the one shown; notifications are delivered
// outside the store lock and may arrive out of order.
func (p *SubjectPresenter) onEntry(e entity.CacheEntry) {
	p.mu.Lock()
	if p.closed || e.Version < p.entry.Version {
		p.mu.Unlock()
		return
	}
	p.entry = e
	p.publishLocked()
}

func (p *SubjectPresenter) onStatus(s usecasecontract.StatusFlags) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.status = s
	p.publishLocked()
}

// publishLocked releases p.mu before calling subscribers.
func (p *SubjectPresenter) publishLocked() {
	vm := p.viewModelLocked()
	fns := make([]func(ViewModel), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(vm)
	}
}

var _ usecasecontract.Lifecycle = (*SubjectPresenter)(nil)
