package history

import (
	"fmt"
	"sort"
	"time"

	"github.com/renderinc/gitpress/internal/errs"
)

// PathState says what older history at a path belongs to
type PathState int

const (
	// Live paths own their own history.
	Live PathState = iota
	// Retired paths were renamed away; their older history belongs to the
	// identity they were renamed into.
	Retired
	// Gone paths were deleted; their older history is dropped.
	Gone
)

func (s PathState) String() string {
	switch s {
	case Live:
		return "live"
	case Retired:
		return "retired"
	case Gone:
		return "gone"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type pathState struct {
	state PathState
	owner string // identity for Retired paths
}

// Record is the resolved provenance of one document identity, keyed by the
// path the document has at the walked head.
type Record struct {
	Path     string
	Author   Signature
	Created  time.Time
	Modified time.Time

	created bool
}

// HasCreated reports whether an introducing commit was seen
func (r *Record) HasCreated() bool {
	return r.created
}

// Tracker folds a newest-first stream of commit deltas into lifecycle
// records. It is not safe for concurrent use.
//
// Event handling, for a commit at time t by author a:
//
//	Touch p       Live: record[p] gets modify=t unless it already exists
//	Introduce p   Live: ensure record[p], then create=t and author=a
//	Retarget o→n  o forwards to n's identity (or is Gone when n is Gone)
//	Remove p      p becomes Gone
//
// Non-remove events on a Retired path are re-dispatched to the identity it
// forwards to and events on a Gone path are ignored. Forwarding chains are
// compressed when the rename is seen, so a Retired path always names the
// identity directly. Because the stream runs backwards in time the first
// touch seen is the newest modification and the last introduce seen is the
// original creation.
type Tracker struct {
	states  map[string]pathState
	records map[string]*Record
	commits int
}

// NewTracker returns an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		states:  make(map[string]pathState),
		records: make(map[string]*Record),
	}
}

// Observe applies every delta of one commit. Commits must be observed
// newest first.
//
// All deltas of a commit happen at once: owners are resolved against the
// state left by newer commits before any of this commit's state changes
// are applied, so swaps and rename-then-recreate work.
func (t *Tracker) Observe(c Commit, deltas []Delta) error {
	t.commits++

	owners := make([]string, len(deltas))
	live := make([]bool, len(deltas))
	for i, d := range deltas {
		switch d.Action {
		case Touch, Introduce, Retarget:
			owners[i], live[i] = t.owner(d.To)
		case Remove:
		default:
			return fmt.Errorf("commit %s: %w: unclassified delta %v", c.Hash, errs.ErrRepository, d)
		}
	}

	for i, d := range deltas {
		t.apply(c, d, owners[i], live[i])
	}
	return nil
}

func (t *Tracker) apply(c Commit, d Delta, owner string, live bool) {
	switch d.Action {
	case Touch:
		if live {
			t.ensure(owner, c.Time)
		}

	case Introduce:
		if live {
			r := t.ensure(owner, c.Time)
			r.Created = c.Time
			r.Author = c.Author
			r.created = true
		}

	case Retarget:
		if !live {
			t.states[d.From] = pathState{state: Gone}
			return
		}
		t.ensure(owner, c.Time)
		if owner == d.From {
			// Renamed back into its own identity
			delete(t.states, d.From)
		} else {
			t.states[d.From] = pathState{state: Retired, owner: owner}
		}

	case Remove:
		t.states[d.From] = pathState{state: Gone}
	}
}

// owner resolves the identity that history at path p belongs to
func (t *Tracker) owner(p string) (string, bool) {
	st := t.states[p]
	switch st.state {
	case Retired:
		return st.owner, true
	case Gone:
		return "", false
	default:
		return p, true
	}
}

func (t *Tracker) ensure(identity string, modified time.Time) *Record {
	r, ok := t.records[identity]
	if !ok {
		r = &Record{Path: identity, Modified: modified}
		t.records[identity] = r
	}
	return r
}

// State returns the current state of p and, for Retired paths, the
// identity it forwards to.
func (t *Tracker) State(p string) (PathState, string) {
	st := t.states[p]
	return st.state, st.owner
}

// Commits returns the number of commits observed
func (t *Tracker) Commits() int {
	return t.commits
}

// Resolve returns the records of every identity with a known creation.
//
// A record without a creation is dropped when its path has since been
// retired or marked Gone: that happens when a side branch edited a file the
// mainline renamed or deleted, and such a path can only reach the head tree
// through a later creation. A Live record without a creation means the walk
// never reached the commit that added the file, which is fatal.
func (t *Tracker) Resolve() (map[string]*Record, error) {
	resolved := make(map[string]*Record, len(t.records))

	paths := make([]string, 0, len(t.records))
	for p := range t.records {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		r := t.records[p]
		if r.created {
			resolved[p] = r
			continue
		}
		if st, _ := t.State(p); st != Live {
			continue
		}
		return nil, fmt.Errorf("%w: %s has no introducing commit in history", errs.ErrRepository, p)
	}

	return resolved, nil
}
