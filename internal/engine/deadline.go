package engine

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/textdex/internal/domain"
)

// Deadline tracks the wall-clock budget of one query execution. It is
// started when execution begins and consulted before each remote call
// and while assembling results. The zero value imposes no limit.
type Deadline struct {
	start time.Time
	limit time.Duration
}

// StartDeadline starts the clock. A non-positive limit means unlimited.
func StartDeadline(limit time.Duration) *Deadline {
	return &Deadline{start: time.Now(), limit: limit}
}

// Check returns ErrTimedOut once the budget is exhausted.
func (d *Deadline) Check() error {
	if d == nil || d.limit <= 0 {
		return nil
	}
	if elapsed := time.Since(d.start); elapsed > d.limit {
		return fmt.Errorf("%w after %s (limit %s)", domain.ErrTimedOut, elapsed.Round(time.Millisecond), d.limit)
	}
	return nil
}

// Remaining returns the unspent budget. ok is false when no limit is set.
func (d *Deadline) Remaining() (time.Duration, bool) {
	if d == nil || d.limit <= 0 {
		return 0, false
	}
	rem := d.limit - time.Since(d.start)
	if rem < 0 {
		rem = 0
	}
	return rem, true
}
