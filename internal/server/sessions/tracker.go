package sessions

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/cloudkeeper/internal/common"
)

// Tracker counts active sessions per user and enforces an optional cap.
// Counters are per-user atomics so sign-ins for different users never
// contend on a shared lock.
type Tracker struct {
	max      int64
	counters sync.Map // user id -> *atomic.Int64
	slots    sync.Map // token id -> *slot
	now      func() time.Time
}

type slot struct {
	userID string
	timer  *time.Timer
}

// NewTracker returns a Tracker allowing max sessions per user; max <= 0
// means unlimited.
func NewTracker(max int) *Tracker {
	return &Tracker{max: int64(max), now: time.Now}
}

func (t *Tracker) counter(userID string) *atomic.Int64 {
	v, _ := t.counters.LoadOrStore(userID, new(atomic.Int64))
	return v.(*atomic.Int64)
}

// Acquire takes a session slot for userID under token id jti or fails with
// common.ErrTooManySessions. The slot is released automatically at until,
// when the token expires.
func (t *Tracker) Acquire(userID, jti string, until time.Time) error {
	c := t.counter(userID)
	for {
		cur := c.Load()
		if t.max > 0 && cur >= t.max {
			return common.ErrTooManySessions
		}
		if c.CompareAndSwap(cur, cur+1) {
			break
		}
	}

	s := &slot{userID: userID}
	t.slots.Store(jti, s)

	d := until.Sub(t.now())
	if d <= 0 {
		t.Release(jti)
		return nil
	}
	s.timer = time.AfterFunc(d, func() { t.Release(jti) })
	return nil
}

// Release frees the slot held by jti. Releasing twice, or releasing an
// unknown id, is a no-op.
func (t *Tracker) Release(jti string) {
	v, ok := t.slots.LoadAndDelete(jti)
	if !ok {
		return
	}
	s := v.(*slot)
	if s.timer != nil {
		s.timer.Stop()
	}

	c := t.counter(s.userID)
	for {
		cur := c.Load()
		if cur <= 0 {
			return
		}
		if c.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// Active returns the current count for userID.
func (t *Tracker) Active(userID string) int {
	v, ok := t.counters.Load(userID)
	if !ok {
		return 0
	}
	return int(v.(*atomic.Int64).Load())
}

// Forget drops the counter for userID, e.g. after account deletion.
// Outstanding slots release into a fresh zero counter and stay at zero.
func (t *Tracker) Forget(userID string) {
	t.counters.Delete(userID)
}
