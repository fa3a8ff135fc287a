// Package sessions keeps the little server-side state that stateless tokens
// still need: a denylist of revoked token ids and per-user session counts.
package sessions

import (
	"context"
	"sync"
	"time"
)

// Denylist records revoked token ids until the token would have expired
// anyway.
type Denylist interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// UserKey is the denylist key that revokes every token issued to userID.
// Token ids are UUIDs, so the prefix never collides with one.
func UserKey(userID string) string { return "user:" + userID }

// MemoryDenylist is a process-local Denylist. Expired entries are dropped
// lazily on lookup and swept on every Revoke.
type MemoryDenylist struct {
	entries sync.Map // jti -> time.Time
	now     func() time.Time
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{now: time.Now}
}

func (d *MemoryDenylist) Revoke(ctx context.Context, jti string, until time.Time) error {
	now := d.now()
	d.entries.Range(func(k, v any) bool {
		if !v.(time.Time).After(now) {
			d.entries.Delete(k)
		}
		return true
	})
	if until.After(now) {
		d.entries.Store(jti, until)
	}
	return nil
}

func (d *MemoryDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	v, ok := d.entries.Load(jti)
	if !ok {
		return false, nil
	}
	if !v.(time.Time).After(d.now()) {
		d.entries.Delete(jti)
		return false, nil
	}
	return true, nil
}

func (d *MemoryDenylist) len() int {
	n := 0
	d.entries.Range(func(_, _ any) bool { n++; return true })
	return n
}
