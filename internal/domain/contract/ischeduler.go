package contract

import "time"

// ITimer is a scheduled callback that can be stopped before it fires.
type ITimer interface {
	Stop() bool
}

// IScheduler runs callbacks after a delay.
type IScheduler interface {
	AfterFunc(d time.Duration, fn func()) ITimer
}
