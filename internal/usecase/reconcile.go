package usecase

import (
	"github.com/mikiasgoitom/articulate-engage/internal/domain/entity"
)

// fieldGroup is one flag and the counter it drives.
type fieldGroup struct {
	active bool
	count  int64
}

// optimisticWrite remembers what an action changed so its rollback can be targeted.
type optimisticWrite struct {
	action      entity.ActionType
	opposite    entity.ActionType
	hasOpposite bool

	before, after       fieldGroup
	oppBefore, oppAfter fieldGroup
}

func captureGroup(e *entity.CacheEntry, a entity.ActionType) fieldGroup {
	return fieldGroup{active: e.InteractionState.Active(a), count: e.Metrics.Count(a)}
}

// applyOptimistic mutates e as if the action had already succeeded.
func applyOptimistic(e *entity.CacheEntry, a entity.ActionType) optimisticWrite {
	w := optimisticWrite{action: a}
	w.opposite, w.hasOpposite = a.Opposite()
	w.before = captureGroup(e, a)
	if w.hasOpposite {
		w.oppBefore = captureGroup(e, w.opposite)
	}

	if !a.IsToggle() {
		e.Metrics.AddCount(a, 1)
	} else {
		on := !e.InteractionState.Active(a)
		e.InteractionState.SetActive(a, on)
		if on {
			e.Metrics.AddCount(a, 1)
		} else {
			e.Metrics.AddCount(a, -1)
		}
		if on && w.hasOpposite && e.InteractionState.Active(w.opposite) {
			e.InteractionState.SetActive(w.opposite, false)
			e.Metrics.AddCount(w.opposite, -1)
		}
	}

	w.after = captureGroup(e, a)
	if w.hasOpposite {
		w.oppAfter = captureGroup(e, w.opposite)
	}
	return w
}

// rollback undoes w on e. A group is restored only while its flag still holds the
// value w wrote, so a concurrently settled action keeps its change.
func (w optimisticWrite) rollback(e *entity.CacheEntry) {
	if !w.action.IsToggle() {
		e.Metrics.AddCount(w.action, w.before.count-w.after.count)
		return
	}
	restoreGroup(e, w.action, w.before, w.after)
	if w.hasOpposite {
		restoreGroup(e, w.opposite, w.oppBefore, w.oppAfter)
	}
}

func restoreGroup(e *entity.CacheEntry, a entity.ActionType, before, after fieldGroup) {
	if before == after || e.InteractionState.Active(a) != after.active {
		return
	}
	e.InteractionState.SetActive(a, before.active)
	e.Metrics.AddCount(a, before.count-after.count)
}

// reconcile folds a successful server result into e. Server fields win; omitted
// fields keep their optimistic value.
func reconcile(e *entity.CacheEntry, a entity.ActionType, res *entity.EngagementResult) {
	res.Metrics.ApplyTo(&e.Metrics)

	if a.IsToggle() {
		if res.Active != nil && *res.Active != e.InteractionState.Active(a) {
			if !res.HasCount(a) {
				// the count moves back with the flag
				if *res.Active {
					e.Metrics.AddCount(a, 1)
				} else {
					e.Metrics.AddCount(a, -1)
				}
			}
			e.InteractionState.SetActive(a, *res.Active)
		}
		if opp, ok := a.Opposite(); ok && e.InteractionState.Active(a) && e.InteractionState.Active(opp) {
			e.InteractionState.SetActive(opp, false)
			if !res.HasCount(opp) {
				e.Metrics.AddCount(opp, -1)
			}
		}
	}
	applySaveFloor(e)
}

// applySaveFloor corrects an active save shown with a zero count.
func applySaveFloor(e *entity.CacheEntry) {
	if e.InteractionState.Save && e.Metrics.SaveCount == 0 {
		e.Metrics.SaveCount = 1
	}
}

// correctFromSource aligns e with an authoritative snapshot after a settle. A reported
// flag always follows the server; a reported count follows it when the settle had to
// guess it or the flag was wrong. Fields the source left out keep the cached value.
// It reports whether anything changed.
func correctFromSource(e *entity.CacheEntry, a entity.ActionType, snap *entity.SubjectSnapshot, countWasGuessed bool) bool {
	before := *e
	flagDisagreed := false

	if a.IsToggle() && snap.ReportsFlag(a) {
		server := snap.InteractionState.Active(a)
		if e.InteractionState.Active(a) != server {
			e.InteractionState.SetActive(a, server)
			flagDisagreed = true
		}
	}
	if (countWasGuessed || flagDisagreed) && snap.ReportsCount(a.CountField()) {
		e.Metrics.SetCount(a, snap.Metrics.Count(a))
	}
	if opp, ok := a.Opposite(); ok && e.InteractionState.Active(a) && e.InteractionState.Active(opp) {
		dropFlag(e, opp, snap)
	}
	applySaveFloor(e)

	return e.Metrics != before.Metrics || e.InteractionState != before.InteractionState
}

// refreshFromSnapshot overwrites every field the snapshot reports and keeps the rest.
func refreshFromSnapshot(e *entity.CacheEntry, snap *entity.SubjectSnapshot) {
	for _, a := range entity.AllActions {
		if snap.ReportsCount(a.CountField()) {
			e.Metrics.SetCount(a, snap.Metrics.Count(a))
		}
		if snap.ReportsFlag(a) {
			e.InteractionState.SetActive(a, snap.InteractionState.Active(a))
		}
	}
	if snap.ReportsCount(entity.CommentCountField) {
		e.Metrics.CommentCount = snap.Metrics.CommentCount
	}
	if e.InteractionState.Like && e.InteractionState.Dislike {
		drop := entity.ActionDislike
		if snap.ReportsFlag(entity.ActionDislike) && !snap.ReportsFlag(entity.ActionLike) {
			drop = entity.ActionLike
		}
		dropFlag(e, drop, snap)
	}
	applySaveFloor(e)
}

// dropFlag clears a flag that conflicts with its opposite. The count takes the
// reported value, or loses the viewer's contribution when the source left it out.
func dropFlag(e *entity.CacheEntry, a entity.ActionType, snap *entity.SubjectSnapshot) {
	e.InteractionState.SetActive(a, false)
	if snap.ReportsCount(a.CountField()) {
		e.Metrics.SetCount(a, snap.Metrics.Count(a))
	} else {
		e.Metrics.AddCount(a, -1)
	}
}
