package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/apperrors"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/entity"
	"github.com/mikiasgoitom/articulate-engage/internal/infrastructure/credential"
	"github.com/mikiasgoitom/articulate-engage/internal/infrastructure/engagementclient"
	"github.com/mikiasgoitom/articulate-engage/internal/infrastructure/logger"
	"github.com/mikiasgoitom/articulate-engage/internal/infrastructure/scheduler"
	"github.com/mikiasgoitom/articulate-engage/internal/infrastructure/store"
	"github.com/mikiasgoitom/articulate-engage/internal/infrastructure/validator"
	"github.com/mikiasgoitom/articulate-engage/internal/usecase"
	usecasecontract "github.com/mikiasgoitom/articulate-engage/internal/usecase/contract"
	"github.com/mikiasgoitom/articulate-engage/internal/usecase/mocks"
)

type recordingMetrics struct {
	mu          sync.Mutex
	actions     map[string]int
	corrections map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{actions: map[string]int{}, corrections: map[string]int{}}
}

func (m *recordingMetrics) ObserveAction(action, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[action+"/"+outcome]++
}

func (m *recordingMetrics) ObserveTransport(string, time.Duration) {}

func (m *recordingMetrics) ObserveRevalidationCorrection(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corrections[action]++
}

func (m *recordingMetrics) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actions[key]
}

type fixture struct {
	cache    *store.MemoryCacheStore
	client   *mocks.MockEngagementClient
	source   *mocks.MockSubjectSource
	redirect *mocks.MockAuthRedirector
	sched    *scheduler.Manual
	metrics  *recordingMetrics
	uc       *usecase.EngagementUseCase
}

func newFixture(t *testing.T, opts ...store.Option) *fixture {
	t.Helper()
	f := &fixture{
		// the store gets no scheduler so only coordinator timers are pending
		cache:    store.NewMemoryCacheStore(nil, opts...),
		client:   new(mocks.MockEngagementClient),
		source:   new(mocks.MockSubjectSource),
		redirect: new(mocks.MockAuthRedirector),
		sched:    scheduler.NewManual(),
		metrics:  newRecordingMetrics(),
	}
	f.uc = usecase.NewEngagementUseCase(
		f.cache, f.client, f.source, f.sched, validator.NewValidator(), logger.NewNop(),
		usecase.WithAuthRedirector(f.redirect),
		usecase.WithMetrics(f.metrics),
	)
	return f
}

func (f *fixture) seed(id string, m entity.Metrics, s entity.InteractionState) {
	f.cache.Put(entity.CacheEntry{SubjectID: id, Metrics: m, InteractionState: s})
}

func (f *fixture) get(t *testing.T, id string) entity.CacheEntry {
	t.Helper()
	e, ok := f.cache.Get(id)
	require.True(t, ok, "subject %s not cached", id)
	return e
}

func action(id string, a entity.ActionType) usecasecontract.ActionRequest {
	return usecasecontract.ActionRequest{SubjectID: id, Action: a}
}

// serverResult builds a result with the flag (nil for share) and any counts given as action/value pairs.
func serverResult(a entity.ActionType, active *bool, counts map[entity.ActionType]int64) *entity.EngagementResult {
	r := &entity.EngagementResult{Action: a, Active: active}
	for k, v := range counts {
		r.Metrics.Set(k, v)
	}
	return r
}

func on() *bool  { v := true; return &v }
func off() *bool { v := false; return &v }

func transportErr(a entity.ActionType) error {
	return &apperrors.TransportError{Action: string(a), SubjectID: "p1", StatusCode: 503, Err: errors.New("unavailable")}
}

func TestPerform_RollbackRestoresExactState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed("p1", entity.Metrics{LikeCount: 5}, entity.InteractionState{})

	var during entity.CacheEntry
	f.client.On("Like", mock.Anything, "p1").
		Run(func(mock.Arguments) { during = f.get(t, "p1") }).
		Return(nil, transportErr(entity.ActionLike))

	out, err := f.uc.Perform(ctx, action("p1", entity.ActionLike))

	require.NoError(t, err)
	assert.Equal(t, usecasecontract.OutcomeRolledBack, out)
	assert.Equal(t, int64(6), during.Metrics.LikeCount)
	assert.True(t, during.InteractionState.Like)

	got := f.get(t, "p1")
	assert.Equal(t, int64(5), got.Metrics.LikeCount)
	assert.False(t, got.InteractionState.Like)
	assert.Equal(t, 1, f.metrics.count("like/rolled_back"))
}

func TestPerform_FailedSaveRaisesAutoClearingErrorFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed("p1", entity.Metrics{SaveCount: 2}, entity.InteractionState{})

	var seen []usecasecontract.StatusFlags
	unsubscribe := f.uc.SubscribeStatus("p1", func(s usecasecontract.StatusFlags) { seen = append(seen, s) })
	defer unsubscribe()

	var during entity.CacheEntry
	f.client.On("Save", mock.Anything, "p1").
		Run(func(mock.Arguments) { during = f.get(t, "p1") }).
		Return(nil, transportErr(entity.ActionSave))

	out, err := f.uc.Perform(ctx, action("p1", entity.ActionSave))
	require.NoError(t, err)
	assert.Equal(t, usecasecontract.OutcomeRolledBack, out)

	assert.Equal(t, entity.Metrics{SaveCount: 3}, during.Metrics)
	assert.True(t, during.InteractionState.Save)

	got := f.get(t, "p1")
	assert.Equal(t, entity.Metrics{SaveCount: 2}, got.Metrics)
	assert.False(t, got.InteractionState.Save)

	status := f.uc.Status("p1")
	assert.True(t, status.Error.Save)
	assert.False(t, status.Loading.Save)
	assert.False(t, status.Error.Like)

	f.sched.Advance(usecase.ErrorFlagTTL - 1)
	assert.True(t, f.uc.Status("p1").Error.Save)
	f.sched.Advance(1)
	assert.False(t, f.uc.Status("p1").Error.Save)

	require.NotEmpty(t, seen)
	assert.True(t, seen[0].Loading.Save)
	assert.False(t, seen[len(seen)-1].Error.Save)
	raised := false
	for _, s := range seen {
		raised = raised || s.Error.Save
	}
	assert.True(t, raised, "listeners must see the error flag")
}

func TestPerform_LikeThenDislike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed("p1", entity.Metrics{LikeCount: 10, DislikeCount: 3}, entity.InteractionState{})

	f.client.On("Like", mock.Anything, "p1").
		Return(serverResult(entity.ActionLike, on(), map[entity.ActionType]int64{entity.ActionLike: 11}), nil)
	f.client.On("Dislike", mock.Anything, "p1").
		Return(serverResult(entity.ActionDislike, on(), map[entity.ActionType]int64{entity.ActionDislike: 4}), nil)

	_, err := f.uc.Perform(ctx, action("p1", entity.ActionLike))
	require.NoError(t, err)
	got := f.get(t, "p1")
	assert.Equal(t, entity.InteractionState{Like: true}, got.InteractionState)
	assert.Equal(t, entity.Metrics{LikeCount: 11, DislikeCount: 3}, got.Metrics)

	_, err = f.uc.Perform(ctx, action("p1", entity.ActionDislike))
	require.NoError(t, err)
	got = f.get(t, "p1")
	assert.Equal(t, entity.InteractionState{Dislike: true}, got.InteractionState)
	assert.Equal(t, entity.Metrics{LikeCount: 10, DislikeCount: 4}, got.Metrics)
}

func TestPerform_ServerFlagIsFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed("p1", entity.Metrics{LikeCount: 5}, entity.InteractionState{})

	// the server had the like recorded already, so the toggle turned it off
	f.client.On("Like", mock.Anything, "p1").Return(serverResult(entity.ActionLike, off(), nil), nil)

	out, err := f.uc.Perform(ctx, action("p1", entity.ActionLike))
	require.NoError(t, err)
	assert.Equal(t, usecasecontract.OutcomeApplied, out)

	got := f.get(t, "p1")
	assert.False(t, got.InteractionState.Like)
	assert.Equal(t, int64(5), got.Metrics.LikeCount)
}

func TestPerform_ServerCountsWinOverOptimisticGuess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed("p1", entity.Metrics{LikeCount: 5, CommentCount: 2}, entity.InteractionState{})

	res := serverResult(entity.ActionLike, on(), map[entity.ActionType]int64{entity.ActionLike: 9})
	c := int64(4)
	res.Metrics.CommentCount = &c
	f.client.On("Like", mock.Anything, "p1").Return(res, nil)

	_, err := f.uc.Perform(ctx, action("p1", entity.ActionLike))
	require.NoError(t, err)

	got := f.get(t, "p1")
	assert.Equal(t, int64(9), got.Metrics.LikeCount)
	assert.Equal(t, int64(4), got.Metrics.CommentCount)
}

func TestPerform_SaveCountFloor(t *testing.T) {
	tests := []struct {
		name  string
		state entity.InteractionState
	}{
		{name: "turning on from zero", state: entity.InteractionState{}},
		{name: "server keeps an already active save", state: entity.InteractionState{Save: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed("p1", entity.Metrics{SaveCount: 0}, tt.state)
			f.client.On("Save", mock.Anything, "p1").Return(serverResult(entity.ActionSave, on(), nil), nil)

			_, err := f.uc.Perform(context.Background(), action("p1", entity.ActionSave))
			require.NoError(t, err)

			got := f.get(t, "p1")
			assert.True(t, got.InteractionState.Save)
			assert.Equal(t, int64(1), got.Metrics.SaveCount)
		})
	}
}

func TestPerform_DuplicateIsSuppressed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed("p1", entity.Metrics{}, entity.InteractionState{})

	started := make(chan struct{})
	release := make(chan struct{})
	f.client.On("Like", mock.Anything, "p1").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(serverResult(entity.ActionLike, on(), nil), nil).
		Once()

	done := make(chan usecasecontract.Outcome, 1)
	go func() {
		out, _ := f.uc.Perform(ctx, action("p1", entity.ActionLike))
		done <- out
	}()
	<-started

	assert.True(t, f.uc.Status("p1").Loading.Like)
	out, err := f.uc.Perform(ctx, action("p1", entity.ActionLike))
	require.NoError(t, err)
	assert.Equal(t, usecasecontract.OutcomeSuppressed, out)

	close(release)
	assert.Equal(t, usecasecontract.OutcomeApplied, <-done)

	f.client.AssertNumberOfCalls(t, "Like", 1)
	got := f.get(t, "p1")
	assert.True(t, got.InteractionState.Like)
	assert.Equal(t, int64(1), got.Metrics.LikeCount)
	assert.False(t, f.uc.Status("p1").Loading.Like)
	assert.Equal(t, 1, f.metrics.count("like/suppressed"))
}

func TestPerform_ConcurrentActionsRollBackIndependently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed("p1", entity.Metrics{LikeCount: 10, SaveCount: 2}, entity.InteractionState{})

	started := make(chan struct{})
	release := make(chan struct{})
	f.client.On("Like", mock.Anything, "p1").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(serverResult(entity.ActionLike, on(), map[entity.ActionType]int64{entity.ActionLike: 11}), nil)
	f.client.On("Save", mock.Anything, "p1").Return(nil, transportErr(entity.ActionSave))

	done := make(chan usecasecontract.Outcome, 1)
	go func() {
		out, _ := f.uc.Perform(ctx, action("p1", entity.ActionLike))
		done <- out
	}()
	<-started

	out, err := f.uc.Perform(ctx, action("p1", entity.ActionSave))
	require.NoError(t, err)
	assert.Equal(t, usecasecontract.OutcomeRolledBack, out)

	mid := f.get(t, "p1")
	assert.True(t, mid.InteractionState.Like, "the save rollback must keep the in-flight like")
	assert.Equal(t, int64(11), mid.Metrics.LikeCount)
	assert.False(t, mid.InteractionState.Save)
	assert.Equal(t, int64(2), mid.Metrics.SaveCount)

	close(release)
	assert.Equal(t, usecasecontract.OutcomeApplied, <-done)

	got := f.get(t, "p1")
	assert.Equal(t, entity.InteractionState{Like: true}, got.InteractionState)
	assert.Equal(t, entity.Metrics{LikeCount: 11, SaveCount: 2}, got.Metrics)
}

func TestPerform_RollbackKeepsNewerOppositeAction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed("p1", entity.Metrics{LikeCount: 5, DislikeCount: 1}, entity.InteractionState{})

	started := make(chan struct{})
	release := make(chan struct{})
	f.client.On("Like", mock.Anything, "p1").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(nil, transportErr(entity.ActionLike))
	f.client.On("Dislike", mock.Anything, "p1").
		Return(serverResult(entity.ActionDislike, on(), map[entity.ActionType]int64{entity.ActionDislike: 2}), nil)

	done := make(chan usecasecontract.Outcome, 1)
	go func() {
		out, _ := f.uc.Perform(ctx, action("p1", entity.ActionLike))
		done <- out
	}()
	<-started

	_, err := f.uc.Perform(ctx, action("p1", entity.ActionDislike))
	require.NoError(t, err)

	close(release)
	assert.Equal(t, usecasecontract.OutcomeRolledBack, <-done)

	got := f.get(t, "p1")
	assert.Equal(t, entity.InteractionState{Dislike: true}, got.InteractionState)
	assert.Equal(t, entity.Metrics{LikeCount: 5, DislikeCount: 2}, got.Metrics)
}

func TestPerform_SavePropagatesToListPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed("p1", entity.Metrics{SaveCount: 4}, entity.InteractionState{})
	f.cache.RegisterListPage("feed:1", []entity.CacheEntry{{SubjectID: "p0"}, {SubjectID: "p1"}})

	f.client.On("Save", mock.Anything, "p1").
		Return(serverResult(entity.ActionSave, on(), map[entity.ActionType]int64{entity.ActionSave: 7}), nil)

	_, err := f.uc.Perform(ctx, action("p1", entity.ActionSave))
	require.NoError(t, err)

	detail := f.get(t, "p1")
	page, ok := f.cache.ListPage("feed:1")
	require.True(t, ok)
	assert.Equal(t, int64(7), detail.Metrics.SaveCount)
	assert.Equal(t, detail.Metrics.SaveCount, page.Entries[1].Metrics.SaveCount)
	assert.Equal(t, detail.InteractionState.Save, page.Entries[1].InteractionState.Save)
}

func TestPerform_UnseenSubjectIsMaterialized(t *testing.T) {
	f := newFixture(t)
	f.client.On("Share", mock.Anything, "fresh").Return(serverResult(entity.ActionShare, nil, nil), nil)

	_, err := f.uc.Perform(context.Background(), action("fresh", entity.ActionShare))
	require.NoError(t, err)

	got := f.get(t, "fresh")
	assert.Equal(t, int64(1), got.Metrics.ShareCount)
	assert.False(t, got.InteractionState.Share)
}

func TestPerform_Share(t *testing.T) {
	t.Run("server count replaces optimistic value", func(t *testing.T) {
		f := newFixture(t)
		f.seed("p1", entity.Metrics{ShareCount: 3}, entity.InteractionState{})
		f.client.On("Share", mock.Anything, "p1").
			Return(serverResult(entity.ActionShare, nil, map[entity.ActionType]int64{entity.ActionShare: 8}), nil)

		_, err := f.uc.Perform(context.Background(), action("p1", entity.ActionShare))
		require.NoError(t, err)
		assert.Equal(t, int64(8), f.get(t, "p1").Metrics.ShareCount)
	})

	t.Run("failure decrements and flags", func(t *testing.T) {
		f := newFixture(t)
		f.seed("p1", entity.Metrics{ShareCount: 3}, entity.InteractionState{})
		f.client.On("Share", mock.Anything, "p1").Return(nil, transportErr(entity.ActionShare))

		out, err := f.uc.Perform(context.Background(), action("p1", entity.ActionShare))
		require.NoError(t, err)
		assert.Equal(t, usecasecontract.OutcomeRolledBack, out)
		assert.Equal(t, int64(3), f.get(t, "p1").Metrics.ShareCount)
		assert.True(t, f.uc.Status("p1").Error.Share)
	})
}

func TestPerform_AuthRequiredRedirectsWithoutErrorFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed("p1", entity.Metrics{LikeCount: 5}, entity.InteractionState{})

	f.client.On("Like", mock.Anything, "p1").Return(nil, fmt.Errorf("like p1: %w", apperrors.ErrAuthRequired))
	f.redirect.On("RequireAuthentication", mock.Anything, "p1", "like").Once()

	out, err := f.uc.Perform(ctx, action("p1", entity.ActionLike))

	require.NoError(t, err)
	assert.Equal(t, usecasecontract.OutcomeAuthRequired, out)
	f.redirect.AssertExpectations(t)
	assert.False(t, f.uc.Status("p1").Error.Like)
	assert.Zero(t, f.sched.Pending(), "no error flag timer and no re-validation")

	got := f.get(t, "p1")
	assert.Equal(t, int64(5), got.Metrics.LikeCount)
	assert.False(t, got.InteractionState.Like)
}

func TestPerform_ReportRequiresReason(t *testing.T) {
	f := newFixture(t)

	out, err := f.uc.Perform(context.Background(), usecasecontract.ActionRequest{SubjectID: "p9", Action: entity.ActionReport})

	assert.Equal(t, usecasecontract.OutcomeInvalid, out)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reason", verr.Field)

	_, cached := f.cache.Get("p9")
	assert.False(t, cached, "the cache must stay untouched")
	assert.False(t, f.uc.Status("p9").Loading.Report)
	f.client.AssertNotCalled(t, "Report", mock.Anything, mock.Anything, mock.Anything)
}

func TestPerform_ReportWithReason(t *testing.T) {
	f := newFixture(t)
	f.seed("p1", entity.Metrics{}, entity.InteractionState{})
	f.client.On("Report", mock.Anything, "p1", "spam").Return(serverResult(entity.ActionReport, on(), nil), nil)

	out, err := f.uc.Perform(context.Background(), usecasecontract.ActionRequest{SubjectID: "p1", Action: entity.ActionReport, Reason: "spam"})

	require.NoError(t, err)
	assert.Equal(t, usecasecontract.OutcomeApplied, out)
	got := f.get(t, "p1")
	assert.True(t, got.InteractionState.Report)
	assert.Equal(t, int64(1), got.Metrics.ReportCount)
}

func TestPerform_RejectsUnknownActionAndEmptySubject(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Perform(context.Background(), action("p1", entity.ActionType("boost")))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.uc.Perform(context.Background(), action("", entity.ActionLike))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

type fakeOwner struct{ unmounted atomic.Bool }

func (o *fakeOwner) Mounted() bool { return !o.unmounted.Load() }

func TestPerform_UnmountedOwnerSkipsCacheWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed("p1", entity.Metrics{LikeCount: 5}, entity.InteractionState{})

	owner := &fakeOwner{}
	f.client.On("Like", mock.Anything, "p1").
		Run(func(mock.Arguments) { owner.unmounted.Store(true) }).
		Return(serverResult(entity.ActionLike, on(), map[entity.ActionType]int64{entity.ActionLike: 40}), nil)

	out, err := f.uc.Perform(ctx, usecasecontract.ActionRequest{SubjectID: "p1", Action: entity.ActionLike, Owner: owner})

	require.NoError(t, err)
	assert.Equal(t, usecasecontract.OutcomeDetached, out)
	f.client.AssertNumberOfCalls(t, "Like", 1)
	assert.Equal(t, int64(6), f.get(t, "p1").Metrics.LikeCount, "the settle must not write")
	assert.False(t, f.uc.Status("p1").Loading.Like)
	assert.Zero(t, f.sched.Pending())
	f.source.AssertNotCalled(t, "FetchSubject", mock.Anything, mock.Anything)
}

func TestPerform_CallerCancellationDoesNotAbortTransport(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var transportCtxErr error
	f.client.On("Like", mock.Anything, "p1").
		Run(func(args mock.Arguments) { transportCtxErr = args.Get(0).(context.Context).Err() }).
		Return(serverResult(entity.ActionLike, on(), nil), nil)

	out, err := f.uc.Perform(ctx, action("p1", entity.ActionLike))

	require.NoError(t, err)
	assert.Equal(t, usecasecontract.OutcomeApplied, out)
	assert.NoError(t, transportCtxErr)
}

func TestRevalidation(t *testing.T) {
	t.Run("adopts the server count when the settle guessed it", func(t *testing.T) {
		f := newFixture(t)
		f.seed("p1", entity.Metrics{LikeCount: 10}, entity.InteractionState{})
		f.client.On("Like", mock.Anything, "p1").Return(serverResult(entity.ActionLike, on(), nil), nil)
		f.source.On("FetchSubject", mock.Anything, "p1").Return(&entity.SubjectSnapshot{
			SubjectID:        "p1",
			Metrics:          entity.Metrics{LikeCount: 42},
			InteractionState: entity.InteractionState{Like: true},
		}, nil).Once()

		_, err := f.uc.Perform(context.Background(), action("p1", entity.ActionLike))
		require.NoError(t, err)
		assert.Equal(t, int64(11), f.get(t, "p1").Metrics.LikeCount)
		f.source.AssertNotCalled(t, "FetchSubject", mock.Anything, mock.Anything)

		f.sched.Advance(usecase.RevalidationDelay)

		assert.Equal(t, int64(42), f.get(t, "p1").Metrics.LikeCount)
		assert.Equal(t, 1, f.metrics.corrections["like"])
	})

	t.Run("forces a disagreeing flag to the server value", func(t *testing.T) {
		f := newFixture(t)
		f.seed("p1", entity.Metrics{LikeCount: 10}, entity.InteractionState{})
		f.client.On("Like", mock.Anything, "p1").
			Return(serverResult(entity.ActionLike, on(), map[entity.ActionType]int64{entity.ActionLike: 11}), nil)
		f.source.On("FetchSubject", mock.Anything, "p1").Return(&entity.SubjectSnapshot{
			SubjectID: "p1",
			Metrics:   entity.Metrics{LikeCount: 10},
		}, nil)

		_, err := f.uc.Perform(context.Background(), action("p1", entity.ActionLike))
		require.NoError(t, err)
		f.sched.Advance(usecase.RevalidationDelay)

		got := f.get(t, "p1")
		assert.False(t, got.InteractionState.Like)
		assert.Equal(t, int64(10), got.Metrics.LikeCount)
	})

	t.Run("leaves agreeing state alone", func(t *testing.T) {
		f := newFixture(t)
		f.seed("p1", entity.Metrics{LikeCount: 10}, entity.InteractionState{})
		f.client.On("Like", mock.Anything, "p1").
			Return(serverResult(entity.ActionLike, on(), map[entity.ActionType]int64{entity.ActionLike: 11}), nil)
		f.source.On("FetchSubject", mock.Anything, "p1").Return(&entity.SubjectSnapshot{
			SubjectID:        "p1",
			Metrics:          entity.Metrics{LikeCount: 999},
			InteractionState: entity.InteractionState{Like: true},
		}, nil)

		_, err := f.uc.Perform(context.Background(), action("p1", entity.ActionLike))
		require.NoError(t, err)
		before := f.get(t, "p1")
		f.sched.Advance(usecase.RevalidationDelay)

		assert.Equal(t, before, f.get(t, "p1"), "a confirmed count is not re-read")
		assert.Zero(t, f.metrics.corrections["like"])
	})

	t.Run("is skipped when a newer action on the key started", func(t *testing.T) {
		f := newFixture(t)
		f.seed("p1", entity.Metrics{}, entity.InteractionState{})
		f.client.On("Like", mock.Anything, "p1").Return(serverResult(entity.ActionLike, on(), nil), nil).Once()
		f.client.On("Like", mock.Anything, "p1").Return(serverResult(entity.ActionLike, off(), nil), nil).Once()
		f.source.On("FetchSubject", mock.Anything, "p1").Return(&entity.SubjectSnapshot{SubjectID: "p1"}, nil)

		_, err := f.uc.Perform(context.Background(), action("p1", entity.ActionLike))
		require.NoError(t, err)
		_, err = f.uc.Perform(context.Background(), action("p1", entity.ActionLike))
		require.NoError(t, err)

		f.sched.Advance(usecase.RevalidationDelay)

		f.source.AssertNumberOfCalls(t, "FetchSubject", 1)
	})

	t.Run("is skipped after unmount", func(t *testing.T) {
		f := newFixture(t)
		owner := &fakeOwner{}
		f.client.On("Save", mock.Anything, "p1").Return(serverResult(entity.ActionSave, on(), nil), nil)

		_, err := f.uc.Perform(context.Background(), usecasecontract.ActionRequest{SubjectID: "p1", Action: entity.ActionSave, Owner: owner})
		require.NoError(t, err)
		owner.unmounted.Store(true)
		f.sched.Advance(usecase.RevalidationDelay)

		f.source.AssertNotCalled(t, "FetchSubject", mock.Anything, mock.Anything)
	})

	t.Run("source failure keeps the settled state", func(t *testing.T) {
		f := newFixture(t)
		f.client.On("Save", mock.Anything, "p1").Return(serverResult(entity.ActionSave, on(), nil), nil)
		f.source.On("FetchSubject", mock.Anything, "p1").Return(nil, transportErr(entity.ActionSave))

		_, err := f.uc.Perform(context.Background(), action("p1", entity.ActionSave))
		require.NoError(t, err)
		before := f.get(t, "p1")
		f.sched.Advance(usecase.RevalidationDelay)

		assert.Equal(t, before, f.get(t, "p1"))
	})

	t.Run("keeps flags the source did not report", func(t *testing.T) {
		f := newFixture(t)
		f.seed("p1", entity.Metrics{LikeCount: 10}, entity.InteractionState{})
		f.client.On("Like", mock.Anything, "p1").Return(serverResult(entity.ActionLike, on(), nil), nil)
		f.source.On("FetchSubject", mock.Anything, "p1").Return(&entity.SubjectSnapshot{
			SubjectID:        "p1",
			Metrics:          entity.Metrics{LikeCount: 11, DislikeCount: 3},
			UnreportedFlags:  entity.AllActions,
			UnreportedCounts: []string{"save_count", "share_count", "report_count", entity.CommentCountField},
		}, nil)

		_, err := f.uc.Perform(context.Background(), action("p1", entity.ActionLike))
		require.NoError(t, err)
		f.sched.Advance(usecase.RevalidationDelay)

		got := f.get(t, "p1")
		assert.True(t, got.InteractionState.Like)
		assert.Equal(t, int64(11), got.Metrics.LikeCount)
	})

	t.Run("an unreported count is not adopted", func(t *testing.T) {
		f := newFixture(t)
		f.seed("p1", entity.Metrics{SaveCount: 4}, entity.InteractionState{})
		f.client.On("Save", mock.Anything, "p1").Return(serverResult(entity.ActionSave, on(), nil), nil)
		f.source.On("FetchSubject", mock.Anything, "p1").Return(&entity.SubjectSnapshot{
			SubjectID:        "p1",
			InteractionState: entity.InteractionState{Save: true},
			UnreportedCounts: []string{"save_count"},
		}, nil)

		_, err := f.uc.Perform(context.Background(), action("p1", entity.ActionSave))
		require.NoError(t, err)
		f.sched.Advance(usecase.RevalidationDelay)

		got := f.get(t, "p1")
		assert.True(t, got.InteractionState.Save)
		assert.Equal(t, int64(5), got.Metrics.SaveCount)
	})
}

func TestRevalidation_AgainstHTTPService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/engagement/p1/like":
			w.Write([]byte(`{"like":true,"like_count":11}`))
		case r.Method == http.MethodGet && r.URL.Path == "/engagement/p1":
			w.Write([]byte(`{"metrics":{"like_count":11,"dislike_count":3}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := engagementclient.NewClient(server.URL, credential.NewSessionTokenProvider("tok"))
	cache := store.NewMemoryCacheStore(nil)
	sched := scheduler.NewManual()
	uc := usecase.NewEngagementUseCase(cache, client, engagementclient.NewSubjectSource(client), sched, validator.NewValidator(), logger.NewNop())
	cache.Put(entity.CacheEntry{SubjectID: "p1", Metrics: entity.Metrics{LikeCount: 10}})

	out, err := uc.Perform(context.Background(), action("p1", entity.ActionLike))
	require.NoError(t, err)
	assert.Equal(t, usecasecontract.OutcomeApplied, out)
	sched.Advance(usecase.RevalidationDelay)

	got, _ := cache.Get("p1")
	assert.True(t, got.InteractionState.Like)
	assert.Equal(t, int64(11), got.Metrics.LikeCount)
}

// serverModel is an in-memory engagement service used for property tests.
type serverModel struct {
	mu      sync.Mutex
	rng     *rand.Rand
	state   entity.InteractionState
	metrics entity.Metrics
}

func (s *serverModel) toggle(a entity.ActionType) (*entity.EngagementResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rng.Intn(4) == 0 {
		return nil, errors.New("flaky")
	}
	active := !s.state.Active(a)
	s.state.SetActive(a, active)
	if active {
		s.metrics.AddCount(a, 1)
	} else {
		s.metrics.AddCount(a, -1)
	}
	if opp, ok := a.Opposite(); ok && active && s.state.Active(opp) {
		s.state.SetActive(opp, false)
		s.metrics.AddCount(opp, -1)
	}
	res := &entity.EngagementResult{Action: a, Active: &active}
	if s.rng.Intn(2) == 0 {
		res.Metrics.Set(a, s.metrics.Count(a))
	}
	return res, nil
}

func (s *serverModel) Like(_ context.Context, _ string) (*entity.EngagementResult, error) {
	return s.toggle(entity.ActionLike)
}

func (s *serverModel) Dislike(_ context.Context, _ string) (*entity.EngagementResult, error) {
	return s.toggle(entity.ActionDislike)
}

func (s *serverModel) Save(_ context.Context, _ string) (*entity.EngagementResult, error) {
	return s.toggle(entity.ActionSave)
}

func (s *serverModel) Share(_ context.Context, _ string) (*entity.EngagementResult, error) {
	return nil, errors.New("not modelled")
}

func (s *serverModel) Report(_ context.Context, _ string, _ string) (*entity.EngagementResult, error) {
	return s.toggle(entity.ActionReport)
}

func (s *serverModel) FetchSubject(_ context.Context, subjectID string) (*entity.SubjectSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &entity.SubjectSnapshot{SubjectID: subjectID, Metrics: s.metrics, InteractionState: s.state}, nil
}

func TestPerform_InvariantsHoldOverRandomSequences(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		cache := store.NewMemoryCacheStore(nil)
		sched := scheduler.NewManual()
		server := &serverModel{rng: rng}
		uc := usecase.NewEngagementUseCase(cache, server, server, sched, validator.NewValidator(), logger.NewNop())

		actions := []entity.ActionType{entity.ActionLike, entity.ActionDislike, entity.ActionSave}
		for step := 0; step < 60; step++ {
			a := actions[rng.Intn(len(actions))]
			_, err := uc.Perform(context.Background(), action("p1", a))
			require.NoError(t, err)

			e, _ := cache.Get("p1")
			assert.False(t, e.InteractionState.Like && e.InteractionState.Dislike, "seed %d step %d: like and dislike both set", seed, step)
			assert.GreaterOrEqual(t, e.Metrics.LikeCount, int64(0))
			assert.GreaterOrEqual(t, e.Metrics.DislikeCount, int64(0))
			assert.GreaterOrEqual(t, e.Metrics.SaveCount, int64(0))
			if e.InteractionState.Save {
				assert.GreaterOrEqual(t, e.Metrics.SaveCount, int64(1))
			}
			// settle re-validation and clear error flags before the next step
			sched.Advance(usecase.ErrorFlagTTL)
		}
	}
}

func TestLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.source.On("FetchSubject", mock.Anything, "p1").Return(&entity.SubjectSnapshot{
		SubjectID:        "p1",
		Metrics:          entity.Metrics{LikeCount: 3, CommentCount: 12},
		InteractionState: entity.InteractionState{Save: true},
	}, nil).Once()

	first, err := f.uc.Load(ctx, "p1")
	require.NoError(t, err)
	second, err := f.uc.Load(ctx, "p1")
	require.NoError(t, err)

	assert.Equal(t, int64(12), first.Metrics.CommentCount)
	assert.True(t, first.InteractionState.Save)
	assert.Equal(t, first, second)
	f.source.AssertNumberOfCalls(t, "FetchSubject", 1)
}

func TestLoad_NotFound(t *testing.T) {
	f := newFixture(t)
	f.source.On("FetchSubject", mock.Anything, "nope").Return(nil, apperrors.ErrSubjectNotFound)

	_, err := f.uc.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrSubjectNotFound)
	_, cached := f.cache.Get("nope")
	assert.False(t, cached)
}

func TestLoadListPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed("p1", entity.Metrics{LikeCount: 1}, entity.InteractionState{Like: true})
	f.source.On("FetchSubject", mock.Anything, "p2").Return(&entity.SubjectSnapshot{SubjectID: "p2", Metrics: entity.Metrics{LikeCount: 3}}, nil)
	f.source.On("FetchSubject", mock.Anything, "gone").Return(nil, fmt.Errorf("gone: %w", apperrors.ErrSubjectNotFound))

	page, err := f.uc.LoadListPage(ctx, "feed:1", []string{"p1", "gone", "p2"})

	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, page.SubjectIDs())
	assert.Equal(t, int64(3), page.Entries[1].Metrics.LikeCount)
	assert.True(t, page.Entries[0].InteractionState.Like)
	f.source.AssertNotCalled(t, "FetchSubject", mock.Anything, "p1")

	registered, ok := f.cache.ListPage("feed:1")
	require.True(t, ok)
	assert.Equal(t, page, registered)
}

func TestLoadListPage_SourceFailure(t *testing.T) {
	f := newFixture(t)
	f.source.On("FetchSubject", mock.Anything, "p1").Return(nil, transportErr(entity.ActionLike))

	_, err := f.uc.LoadListPage(context.Background(), "feed:1", []string{"p1"})

	assert.ErrorIs(t, err, apperrors.ErrTransport)
	_, ok := f.cache.ListPage("feed:1")
	assert.False(t, ok)
}

// memoryMirror is an in-process ICacheMirror.
type memoryMirror struct {
	mu      sync.Mutex
	entries map[string]entity.CacheEntry
	pages   map[string]entity.ListPage
}

func newMemoryMirror() *memoryMirror {
	return &memoryMirror{entries: map[string]entity.CacheEntry{}, pages: map[string]entity.ListPage{}}
}

func (m *memoryMirror) GetEntry(_ context.Context, subjectID string) (*entity.CacheEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[subjectID]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

func (m *memoryMirror) SetEntry(_ context.Context, entry entity.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.SubjectID] = entry
	return nil
}

func (m *memoryMirror) GetListPage(_ context.Context, key string) (*entity.ListPage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[key]
	if !ok {
		return nil, false, nil
	}
	return &p, true, nil
}

func (m *memoryMirror) SetListPage(_ context.Context, page entity.ListPage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page.Key] = page
	return nil
}

func (m *memoryMirror) DeleteListPage(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, key)
	return nil
}

func (m *memoryMirror) InvalidateListPages(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages = map[string]entity.ListPage{}
	return nil
}

func TestLoad_MirrorHitIsRefreshedFromSource(t *testing.T) {
	mirror := newMemoryMirror()
	mirror.entries["p1"] = entity.CacheEntry{
		SubjectID:        "p1",
		Metrics:          entity.Metrics{LikeCount: 5},
		InteractionState: entity.InteractionState{Like: true},
	}
	f := newFixture(t, store.WithMirror(mirror))
	f.source.On("FetchSubject", mock.Anything, "p1").Return(&entity.SubjectSnapshot{
		SubjectID: "p1",
		Metrics:   entity.Metrics{LikeCount: 9, CommentCount: 2},
	}, nil).Once()

	got, err := f.uc.Load(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Metrics.LikeCount)
	f.source.AssertNotCalled(t, "FetchSubject", mock.Anything, mock.Anything)

	f.sched.Advance(usecase.RevalidationDelay)

	got = f.get(t, "p1")
	assert.Equal(t, int64(9), got.Metrics.LikeCount)
	assert.Equal(t, int64(2), got.Metrics.CommentCount)
	assert.False(t, got.InteractionState.Like)
}

func TestLoad_MirrorRefreshYieldsToLocalWrites(t *testing.T) {
	mirror := newMemoryMirror()
	mirror.entries["p1"] = entity.CacheEntry{SubjectID: "p1", Metrics: entity.Metrics{LikeCount: 5}}
	f := newFixture(t, store.WithMirror(mirror))

	_, err := f.uc.Load(context.Background(), "p1")
	require.NoError(t, err)
	f.cache.Update("p1", func(e *entity.CacheEntry) { e.Metrics.ShareCount = 1 })

	f.sched.Advance(usecase.RevalidationDelay)

	f.source.AssertNotCalled(t, "FetchSubject", mock.Anything, mock.Anything)
	assert.Equal(t, int64(5), f.get(t, "p1").Metrics.LikeCount)
}

func TestLoadListPage_WarmsFromMirroredPage(t *testing.T) {
	mirror := newMemoryMirror()
	mirror.pages["feed:1"] = entity.ListPage{Key: "feed:1", Entries: []entity.CacheEntry{
		{SubjectID: "p1", Metrics: entity.Metrics{SaveCount: 2}, InteractionState: entity.InteractionState{Save: true}},
	}}
	f := newFixture(t, store.WithMirror(mirror))
	f.source.On("FetchSubject", mock.Anything, "p1").Return(&entity.SubjectSnapshot{
		SubjectID:        "p1",
		Metrics:          entity.Metrics{SaveCount: 7},
		InteractionState: entity.InteractionState{Save: true},
	}, nil).Once()

	page, err := f.uc.LoadListPage(context.Background(), "feed:1", []string{"p1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Entries[0].Metrics.SaveCount)
	f.source.AssertNotCalled(t, "FetchSubject", mock.Anything, mock.Anything)

	f.sched.Advance(usecase.RevalidationDelay)

	registered, ok := f.cache.ListPage("feed:1")
	require.True(t, ok)
	assert.Equal(t, int64(7), registered.Entries[0].Metrics.SaveCount)
}

func TestResetViewer(t *testing.T) {
	f := newFixture(t)
	f.seed("p1", entity.Metrics{LikeCount: 4}, entity.InteractionState{Like: true})
	f.seed("p2", entity.Metrics{SaveCount: 2}, entity.InteractionState{Save: true})
	f.source.On("FetchSubject", mock.Anything, "p1").Return(&entity.SubjectSnapshot{
		SubjectID:        "p1",
		Metrics:          entity.Metrics{LikeCount: 3, DislikeCount: 1},
		InteractionState: entity.InteractionState{Dislike: true},
	}, nil)
	f.source.On("FetchSubject", mock.Anything, "p2").Return(nil, apperrors.ErrAuthRequired)

	f.uc.ResetViewer(context.Background())

	p1 := f.get(t, "p1")
	assert.Equal(t, entity.InteractionState{Dislike: true}, p1.InteractionState)
	assert.Equal(t, int64(3), p1.Metrics.LikeCount)
	p2 := f.get(t, "p2")
	assert.False(t, p2.InteractionState.Save)
	assert.Equal(t, int64(2), p2.Metrics.SaveCount)
}
