package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/apperrors"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/contract"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/entity"
	usecasecontract "github.com/mikiasgoitom/articulate-engage/internal/usecase/contract"
)

const (
	// RevalidationDelay is how long after a successful settle the subject is re-read.
	RevalidationDelay = 500 * time.Millisecond
	// ErrorFlagTTL is how long a failed action's error flag stays raised.
	ErrorFlagTTL = 3 * time.Second

	defaultFetchTimeout = 10 * time.Second
	listFetchLimit      = 8
)

// cacheWarmer is implemented by stores that can preload entries from a mirror.
// Both methods return the ids they loaded.
type cacheWarmer interface {
	Warm(ctx context.Context, subjectIDs []string) ([]string, error)
	WarmListPage(ctx context.Context, key string) ([]string, error)
}

// EngagementUseCase applies engagement actions optimistically and reconciles them with the server.
type EngagementUseCase struct {
	cache      contract.IEngagementCache
	client     contract.IEngagementClient
	source     contract.ISubjectSource
	redirector contract.IAuthRedirector
	scheduler  contract.IScheduler
	validator  usecasecontract.IValidator
	logger     usecasecontract.IAppLogger
	metrics    usecasecontract.IEngagementMetrics

	revalidationDelay time.Duration
	errorFlagTTL      time.Duration
	fetchTimeout      time.Duration

	mu         sync.Mutex
	pending    map[entity.PendingActionKey]bool
	generation map[entity.PendingActionKey]uint64
	errorFlags map[entity.PendingActionKey]contract.ITimer
	statusSubs map[string]map[int64]func(usecasecontract.StatusFlags)
	nextSubID  int64
}

// EngagementOption configures an EngagementUseCase.
type EngagementOption func(*EngagementUseCase)

// WithRevalidationDelay overrides RevalidationDelay.
func WithRevalidationDelay(d time.Duration) EngagementOption {
	return func(u *EngagementUseCase) { u.revalidationDelay = d }
}

// WithErrorFlagTTL overrides ErrorFlagTTL.
func WithErrorFlagTTL(d time.Duration) EngagementOption {
	return func(u *EngagementUseCase) { u.errorFlagTTL = d }
}

// WithFetchTimeout bounds subject source reads made outside a caller's context.
func WithFetchTimeout(d time.Duration) EngagementOption {
	return func(u *EngagementUseCase) { u.fetchTimeout = d }
}

// WithMetrics records outcomes, transport latency and corrections.
func WithMetrics(m usecasecontract.IEngagementMetrics) EngagementOption {
	return func(u *EngagementUseCase) { u.metrics = m }
}

// WithAuthRedirector sets the hand-off used when the credential is missing or rejected.
func WithAuthRedirector(r contract.IAuthRedirector) EngagementOption {
	return func(u *EngagementUseCase) { u.redirector = r }
}

// NewEngagementUseCase creates and returns a new EngagementUseCase instance.
func NewEngagementUseCase(
	cache contract.IEngagementCache,
	client contract.IEngagementClient,
	source contract.ISubjectSource,
	scheduler contract.IScheduler,
	validator usecasecontract.IValidator,
	logger usecasecontract.IAppLogger,
	opts ...EngagementOption,
) *EngagementUseCase {
	u := &EngagementUseCase{
		cache:             cache,
		client:            client,
		source:            source,
		scheduler:         scheduler,
		validator:         validator,
		logger:            logger,
		metrics:           noopMetrics{},
		revalidationDelay: RevalidationDelay,
		errorFlagTTL:      ErrorFlagTTL,
		fetchTimeout:      defaultFetchTimeout,
		pending:           make(map[entity.PendingActionKey]bool),
		generation:        make(map[entity.PendingActionKey]uint64),
		errorFlags:        make(map[entity.PendingActionKey]contract.ITimer),
		statusSubs:        make(map[string]map[int64]func(usecasecontract.StatusFlags)),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Perform runs one engagement action through the optimistic state machine. Transport
// failures are resolved here; only invalid input is returned as an error.
func (u *EngagementUseCase) Perform(ctx context.Context, req usecasecontract.ActionRequest) (usecasecontract.Outcome, error) {
	if err := u.validate(req); err != nil {
		u.metrics.ObserveAction(string(req.Action), string(usecasecontract.OutcomeInvalid))
		return usecasecontract.OutcomeInvalid, err
	}

	key := entity.PendingActionKey{SubjectID: req.SubjectID, Action: req.Action}
	gen, ok := u.begin(key)
	if !ok {
		u.logger.Debugf("engagement: %s: %v", key, apperrors.ErrDuplicateAction)
		u.metrics.ObserveAction(string(req.Action), string(usecasecontract.OutcomeSuppressed))
		return usecasecontract.OutcomeSuppressed, nil
	}
	u.notifyStatus(req.SubjectID)

	var write optimisticWrite
	u.cache.Update(req.SubjectID, func(e *entity.CacheEntry) {
		write = applyOptimistic(e, req.Action)
	})

	// The server-side effect must complete even if the caller goes away.
	started := time.Now()
	result, err := u.send(context.WithoutCancel(ctx), req)
	u.metrics.ObserveTransport(string(req.Action), time.Since(started))

	var outcome usecasecontract.Outcome
	if err != nil {
		outcome = u.settleFailure(ctx, req, key, write, err)
	} else {
		outcome = u.settleSuccess(req, key, gen, result)
	}
	u.metrics.ObserveAction(string(req.Action), string(outcome))
	return outcome, nil
}

func (u *EngagementUseCase) validate(req usecasecontract.ActionRequest) error {
	if !req.Action.IsValid() {
		return apperrors.NewValidationError("action", fmt.Sprintf("unknown engagement action %q", req.Action))
	}
	if err := u.validator.ValidateSubjectID(req.SubjectID); err != nil {
		return err
	}
	if req.Action == entity.ActionReport {
		return u.validator.ValidateReportReason(req.Reason)
	}
	return nil
}

// begin records the pending key. It returns false when the key is already in flight.
func (u *EngagementUseCase) begin(key entity.PendingActionKey) (uint64, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.pending[key] {
		return 0, false
	}
	u.pending[key] = true
	u.generation[key]++
	if t, ok := u.errorFlags[key]; ok {
		t.Stop()
		delete(u.errorFlags, key)
	}
	return u.generation[key], true
}

func (u *EngagementUseCase) finish(key entity.PendingActionKey) {
	u.mu.Lock()
	delete(u.pending, key)
	u.mu.Unlock()
}

func (u *EngagementUseCase) send(ctx context.Context, req usecasecontract.ActionRequest) (*entity.EngagementResult, error) {
	switch req.Action {
	case entity.ActionLike:
		return u.client.Like(ctx, req.SubjectID)
	case entity.ActionDislike:
		return u.client.Dislike(ctx, req.SubjectID)
	case entity.ActionSave:
		return u.client.Save(ctx, req.SubjectID)
	case entity.ActionShare:
		return u.client.Share(ctx, req.SubjectID)
	case entity.ActionReport:
		return u.client.Report(ctx, req.SubjectID, req.Reason)
	}
	return nil, apperrors.NewValidationError("action", fmt.Sprintf("unknown engagement action %q", req.Action))
}

func (u *EngagementUseCase) settleSuccess(req usecasecontract.ActionRequest, key entity.PendingActionKey, gen uint64, result *entity.EngagementResult) usecasecontract.Outcome {
	if result == nil {
		result = &entity.EngagementResult{Action: req.Action}
	}
	if !mounted(req.Owner) {
		u.finish(key)
		u.notifyStatus(req.SubjectID)
		u.logger.Debugf("engagement: %s settled after its view unmounted; cache left untouched", key)
		return usecasecontract.OutcomeDetached
	}

	u.cache.Update(req.SubjectID, func(e *entity.CacheEntry) {
		reconcile(e, req.Action, result)
	})
	u.finish(key)
	u.notifyStatus(req.SubjectID)

	countWasGuessed := !result.HasCount(req.Action)
	u.scheduler.AfterFunc(u.revalidationDelay, func() {
		u.revalidate(req, gen, countWasGuessed)
	})
	return usecasecontract.OutcomeApplied
}

func (u *EngagementUseCase) settleFailure(ctx context.Context, req usecasecontract.ActionRequest, key entity.PendingActionKey, write optimisticWrite, cause error) usecasecontract.Outcome {
	attached := mounted(req.Owner)
	if attached {
		u.cache.Update(req.SubjectID, write.rollback)
	}
	u.finish(key)

	if apperrors.IsAuthRequired(cause) {
		u.logger.Infof("engagement: %s requires authentication", key)
		if u.redirector != nil {
			u.redirector.RequireAuthentication(ctx, req.SubjectID, string(req.Action))
		}
		u.notifyStatus(req.SubjectID)
		return usecasecontract.OutcomeAuthRequired
	}

	if !attached {
		u.notifyStatus(req.SubjectID)
		u.logger.Warnf("engagement: %s failed after its view unmounted: %v", key, cause)
		return usecasecontract.OutcomeDetached
	}

	u.logger.Warnf("engagement: %s rolled back: %v", key, cause)
	u.raiseError(key)
	return usecasecontract.OutcomeRolledBack
}

// raiseError sets the transient error flag and schedules its removal.
func (u *EngagementUseCase) raiseError(key entity.PendingActionKey) {
	u.mu.Lock()
	if t, ok := u.errorFlags[key]; ok {
		t.Stop()
	}
	var timer contract.ITimer
	timer = u.scheduler.AfterFunc(u.errorFlagTTL, func() {
		u.mu.Lock()
		current, ok := u.errorFlags[key]
		if !ok || current != timer {
			u.mu.Unlock()
			return
		}
		delete(u.errorFlags, key)
		u.mu.Unlock()
		u.notifyStatus(key.SubjectID)
	})
	u.errorFlags[key] = timer
	u.mu.Unlock()
	u.notifyStatus(key.SubjectID)
}

// revalidate re-reads the subject once after a successful settle.
func (u *EngagementUseCase) revalidate(req usecasecontract.ActionRequest, gen uint64, countWasGuessed bool) {
	key := entity.PendingActionKey{SubjectID: req.SubjectID, Action: req.Action}
	if !mounted(req.Owner) || u.superseded(key, gen) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), u.fetchTimeout)
	defer cancel()
	snap, err := u.source.FetchSubject(ctx, req.SubjectID)
	if err != nil {
		u.logger.Warnf("engagement: re-validation of %s failed: %v", key, err)
		return
	}
	if !mounted(req.Owner) || u.superseded(key, gen) {
		return
	}

	current, ok := u.cache.Get(req.SubjectID)
	if !ok {
		current = u.cache.CreateDefault(req.SubjectID)
	}
	if !correctFromSource(&current, req.Action, snap, countWasGuessed) {
		return
	}
	u.cache.Update(req.SubjectID, func(e *entity.CacheEntry) {
		correctFromSource(e, req.Action, snap, countWasGuessed)
	})
	u.metrics.ObserveRevalidationCorrection(string(req.Action))
	u.logger.Debugf("engagement: re-validation corrected %s", key)
}

// superseded reports whether a newer action on the key started after generation gen,
// or the mutually exclusive action is in flight.
func (u *EngagementUseCase) superseded(key entity.PendingActionKey, gen uint64) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.pending[key] || u.generation[key] != gen {
		return true
	}
	if opp, ok := key.Action.Opposite(); ok {
		return u.pending[entity.PendingActionKey{SubjectID: key.SubjectID, Action: opp}]
	}
	return false
}

func mounted(owner usecasecontract.Lifecycle) bool {
	return owner == nil || owner.Mounted()
}

// Load returns the cached entry, seeding it from the subject source on a miss.
func (u *EngagementUseCase) Load(ctx context.Context, subjectID string) (entity.CacheEntry, error) {
	if err := u.validator.ValidateSubjectID(subjectID); err != nil {
		return entity.CacheEntry{}, err
	}
	if e, ok := u.cache.Get(subjectID); ok {
		return e, nil
	}
	if w, ok := u.cache.(cacheWarmer); ok {
		if _, err := w.Warm(ctx, []string{subjectID}); err != nil {
			u.logger.Warnf("engagement: warm %s from mirror: %v", subjectID, err)
		} else if e, ok := u.cache.Get(subjectID); ok {
			u.scheduleRefresh(subjectID, e.Version)
			return e, nil
		}
	}

	snap, err := u.source.FetchSubject(ctx, subjectID)
	if err != nil {
		return entity.CacheEntry{}, fmt.Errorf("load subject %s: %w", subjectID, err)
	}
	return u.seed(snap), nil
}

// seed stores a fetched snapshot unless a write landed while the fetch was in flight.
func (u *EngagementUseCase) seed(snap *entity.SubjectSnapshot) entity.CacheEntry {
	fresh := snap.ToCacheEntry()
	return u.cache.Update(snap.SubjectID, func(e *entity.CacheEntry) {
		if e.Version == 0 {
			e.Metrics = fresh.Metrics
			e.InteractionState = fresh.InteractionState
		}
	})
}

// LoadListPage fetches uncached subjects concurrently and registers the page under key.
// Subjects the source does not know are left out of the page.
func (u *EngagementUseCase) LoadListPage(ctx context.Context, key string, subjectIDs []string) (entity.ListPage, error) {
	if key == "" {
		return entity.ListPage{}, apperrors.NewValidationError("list_key", "is required")
	}
	for _, id := range subjectIDs {
		if err := u.validator.ValidateSubjectID(id); err != nil {
			return entity.ListPage{}, err
		}
	}

	var warmed []string
	if w, ok := u.cache.(cacheWarmer); ok {
		fromPage, err := w.WarmListPage(ctx, key)
		if err != nil {
			u.logger.Warnf("engagement: warm list %s from mirror: %v", key, err)
		}
		fromEntries, err := w.Warm(ctx, subjectIDs)
		if err != nil {
			u.logger.Warnf("engagement: warm list %s from mirror: %v", key, err)
		}
		warmed = append(fromPage, fromEntries...)
	}

	snaps := make([]*entity.SubjectSnapshot, len(subjectIDs))
	missing := make([]bool, len(subjectIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listFetchLimit)
	for i, id := range subjectIDs {
		if _, ok := u.cache.Get(id); ok {
			continue
		}
		g.Go(func() error {
			snap, err := u.source.FetchSubject(gctx, id)
			if errors.Is(err, apperrors.ErrSubjectNotFound) {
				missing[i] = true
				return nil
			}
			if err != nil {
				return fmt.Errorf("load subject %s: %w", id, err)
			}
			snaps[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return entity.ListPage{}, err
	}

	entries := make([]entity.CacheEntry, 0, len(subjectIDs))
	for i, id := range subjectIDs {
		switch {
		case missing[i]:
			continue
		case snaps[i] != nil:
			entries = append(entries, snaps[i].ToCacheEntry())
		default:
			e, ok := u.cache.Get(id)
			if !ok {
				e = u.cache.CreateDefault(id)
			}
			entries = append(entries, e)
		}
	}
	page := u.cache.RegisterListPage(key, entries)
	for _, id := range warmed {
		if e, ok := u.cache.Get(id); ok {
			u.scheduleRefresh(id, e.Version)
		}
	}
	return page, nil
}

// scheduleRefresh re-reads a subject served from the mirror once, so a stale slot is
// replaced by the source's state unless a local write lands first.
func (u *EngagementUseCase) scheduleRefresh(subjectID string, version int64) {
	u.scheduler.AfterFunc(u.revalidationDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), u.fetchTimeout)
		defer cancel()
		if err := u.refresh(ctx, subjectID, version); err != nil {
			u.logger.Warnf("engagement: refresh of %s failed: %v", subjectID, err)
		}
	})
}

// refresh fetches the subject and applies every reported field, provided the entry
// still carries version.
func (u *EngagementUseCase) refresh(ctx context.Context, subjectID string, version int64) error {
	if e, ok := u.cache.Get(subjectID); !ok || e.Version != version {
		return nil
	}
	snap, err := u.source.FetchSubject(ctx, subjectID)
	if err != nil {
		return err
	}
	if e, ok := u.cache.Get(subjectID); !ok || e.Version != version {
		return nil
	}
	u.cache.Update(subjectID, func(e *entity.CacheEntry) {
		if e.Version == version {
			refreshFromSnapshot(e, snap)
		}
	})
	return nil
}

// ResetViewer drops the previous viewer's flags from the cache and re-reads every
// cached subject for the current credential. Subjects that fail to load keep their
// public counters with cleared flags.
func (u *EngagementUseCase) ResetViewer(ctx context.Context) {
	versions := u.cache.ResetViewerState()
	g := new(errgroup.Group)
	g.SetLimit(listFetchLimit)
	for id, version := range versions {
		g.Go(func() error {
			err := u.refresh(ctx, id, version)
			switch {
			case err == nil, errors.Is(err, apperrors.ErrSubjectNotFound):
			case apperrors.IsAuthRequired(err):
				u.logger.Debugf("engagement: no credential to refresh %s", id)
			default:
				u.logger.Warnf("engagement: refresh of %s after viewer change failed: %v", id, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	u.logger.Infof("engagement: viewer state reset for %d subjects", len(versions))
}

// Status returns the loading and error flags of a subject.
func (u *EngagementUseCase) Status(subjectID string) usecasecontract.StatusFlags {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.statusLocked(subjectID)
}

func (u *EngagementUseCase) statusLocked(subjectID string) usecasecontract.StatusFlags {
	var flags usecasecontract.StatusFlags
	for _, a := range entity.AllActions {
		key := entity.PendingActionKey{SubjectID: subjectID, Action: a}
		flags.Loading.Set(a, u.pending[key])
		_, failed := u.errorFlags[key]
		flags.Error.Set(a, failed)
	}
	return flags
}

// SubscribeStatus registers fn for every change to the subject's flags.
func (u *EngagementUseCase) SubscribeStatus(subjectID string, fn func(usecasecontract.StatusFlags)) func() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.nextSubID++
	id := u.nextSubID
	if u.statusSubs[subjectID] == nil {
		u.statusSubs[subjectID] = make(map[int64]func(usecasecontract.StatusFlags))
	}
	u.statusSubs[subjectID][id] = fn
	return func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		delete(u.statusSubs[subjectID], id)
		if len(u.statusSubs[subjectID]) == 0 {
			delete(u.statusSubs, subjectID)
		}
	}
}

func (u *EngagementUseCase) notifyStatus(subjectID string) {
	u.mu.Lock()
	flags := u.statusLocked(subjectID)
	fns := make([]func(usecasecontract.StatusFlags), 0, len(u.statusSubs[subjectID]))
	for _, fn := range u.statusSubs[subjectID] {
		fns = append(fns, fn)
	}
	u.mu.Unlock()
	for _, fn := range fns {
		fn(flags)
	}
}

type noopMetrics struct{}

func (noopMetrics) ObserveAction(string, string)           {}
func (noopMetrics) ObserveTransport(string, time.Duration) {}
func (noopMetrics) ObserveRevalidationCorrection(string)   {}

var _ usecasecontract.IEngagementUseCase = (*EngagementUseCase)(nil)
