// Package history reconstructs per-document provenance from a repository's
// commit graph.
//
// The Walker turns every commit into a list of classified tree deltas and
// the Tracker folds that stream, newest commit first, into one lifecycle
// record per document identity. Renames are followed so a document keeps
// its creation time and author when it moves; deleted paths drop out.
package history

import (
	"fmt"
	"time"

	"github.com/renderinc/gitpress/internal/errs"
)

// Action classifies one entry of a commit's tree delta
type Action int

const (
	// Touch is an edit of a path that exists before and after the commit.
	Touch Action = iota + 1
	// Introduce is a path that is absent before and present after.
	Introduce
	// Retarget is a rename detected by content similarity.
	Retarget
	// Remove is a path that is present before and absent after.
	Remove
)

func (a Action) String() string {
	switch a {
	case Touch:
		return "touch"
	case Introduce:
		return "introduce"
	case Retarget:
		return "retarget"
	case Remove:
		return "remove"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Delta is one classified change. From is empty for Introduce, To is empty
// for Remove.
type Delta struct {
	Action Action
	From   string
	To     string
}

// Classify maps the (old path, new path) pair of a tree change to a Delta.
// An empty name means the side does not exist.
func Classify(from, to string) (Delta, error) {
	switch {
	case from != "" && to != "" && from == to:
		return Delta{Action: Touch, From: from, To: to}, nil
	case from == "" && to != "":
		return Delta{Action: Introduce, To: to}, nil
	case from != "" && to != "":
		return Delta{Action: Retarget, From: from, To: to}, nil
	case from != "" && to == "":
		return Delta{Action: Remove, From: from}, nil
	default:
		return Delta{}, fmt.Errorf("%w: tree change with neither old nor new path", errs.ErrRepository)
	}
}

// Signature is the author recorded on a commit
type Signature struct {
	Name  string
	Email string
}

// Commit is the part of a commit the tracker cares about
type Commit struct {
	Hash   string
	Time   time.Time
	Author Signature
}
