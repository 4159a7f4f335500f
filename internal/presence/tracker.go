// Package presence tracks the set of currently-online usernames.
package presence

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Tracker owns the online-user set. All mutation goes through MarkOnline
// and MarkOffline; the snapshot each returns is taken under the same
// lock as the mutation, so concurrent callers always observe a state
// that actually existed.
type Tracker struct {
	mu     sync.Mutex
	online map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{online: make(map[string]struct{})}
}

// MarkOnline adds username to the set and returns the resulting set.
// Adding a user that is already online is a no-op.
func (t *Tracker) MarkOnline(username string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.online[username] = struct{}{}
	return t.snapshotLocked()
}

// MarkOffline removes username from the set and returns the resulting
// set. Removing an absent user is a no-op.
func (t *Tracker) MarkOffline(username string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.online, username)
	return t.snapshotLocked()
}

// Online reports whether username is currently marked online.
func (t *Tracker) Online(username string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.online[username]
	return ok
}

func (t *Tracker) snapshotLocked() []string {
	users := lo.Keys(t.online)
	sort.Strings(users)
	return users
}
