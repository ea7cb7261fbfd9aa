package scheduler

import (
	"time"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/contract"
)

// TimeScheduler runs callbacks on the runtime timer wheel.
type TimeScheduler struct{}

// New creates a scheduler backed by time.AfterFunc.
func New() contract.IScheduler {
	return TimeScheduler{}
}

// AfterFunc schedules fn to run once after d.
func (TimeScheduler) AfterFunc(d time.Duration, fn func()) contract.ITimer {
	return time.AfterFunc(d, fn)
}

var _ contract.IScheduler = TimeScheduler{}
