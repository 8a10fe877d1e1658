package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/renderinc/gitpress/internal/errs"
)

// Baseline selects the tree a merge commit is diffed against
type Baseline int

const (
	// FirstParent diffs a merge against its first parent, so only the
	// changes the merge brought into the mainline are attributed to it.
	FirstParent Baseline = iota
	// EmptyTree diffs a merge against the empty tree, so every file
	// present at the merge counts as introduced by it.
	EmptyTree
)

func (b Baseline) String() string {
	if b == EmptyTree {
		return "empty"
	}
	return "first-parent"
}

// ParseBaseline parses the merge_baseline setting
func ParseBaseline(s string) (Baseline, error) {
	switch s {
	case "", "first-parent":
		return FirstParent, nil
	case "empty":
		return EmptyTree, nil
	default:
		return 0, fmt.Errorf("%w: unknown merge baseline %q", errs.ErrConfig, s)
	}
}

// Walker iterates a repository's history from a head commit, newest
// committer time first, and classifies each commit's tree delta.
type Walker struct {
	repo     *git.Repository
	baseline Baseline
}

// NewWalker creates a walker over repo
func NewWalker(repo *git.Repository, baseline Baseline) *Walker {
	return &Walker{repo: repo, baseline: baseline}
}

// VisitFunc receives one commit and its classified deltas
type VisitFunc func(c Commit, deltas []Delta) error

// Walk visits every commit reachable from head. It returns the number of
// commits visited. Errors returned by fn stop the walk and are returned
// unchanged.
func (w *Walker) Walk(ctx context.Context, head plumbing.Hash, fn VisitFunc) (int, error) {
	iter, err := w.repo.Log(&git.LogOptions{From: head, Order: git.LogOrderCommitterTime})
	if err != nil {
		return 0, fmt.Errorf("%w: log from %s: %v", errs.ErrRepository, head, err)
	}
	defer iter.Close()

	visited := 0
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		deltas, err := w.deltas(ctx, c)
		if err != nil {
			return err
		}

		visited++
		return fn(Commit{
			Hash:   c.Hash.String(),
			Time:   c.Committer.When,
			Author: Signature{Name: c.Author.Name, Email: c.Author.Email},
		}, deltas)
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return visited, err
	}
	return visited, nil
}

// deltas diffs c against its baseline tree
func (w *Walker) deltas(ctx context.Context, c *object.Commit) ([]Delta, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("%w: tree of %s: %v", errs.ErrRepository, c.Hash, err)
	}

	base := &object.Tree{}
	if c.NumParents() == 1 || (c.NumParents() > 1 && w.baseline == FirstParent) {
		parent, err := c.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("%w: parent of %s: %v", errs.ErrRepository, c.Hash, err)
		}
		if base, err = parent.Tree(); err != nil {
			return nil, fmt.Errorf("%w: tree of %s: %v", errs.ErrRepository, parent.Hash, err)
		}
	}

	changes, err := object.DiffTreeWithOptions(ctx, base, tree, object.DefaultDiffTreeOptions)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: diff %s: %v", errs.ErrRepository, c.Hash, err)
	}

	deltas := make([]Delta, 0, len(changes))
	for _, ch := range changes {
		d, err := Classify(ch.From.Name, ch.To.Name)
		if err != nil {
			return nil, fmt.Errorf("commit %s: %w", c.Hash, err)
		}
		deltas = append(deltas, d)
	}
	return deltas, nil
}

// Provenance walks history from head and resolves the lifecycle record of
// every document that exists at head.
func Provenance(ctx context.Context, w *Walker, head plumbing.Hash) (map[string]*Record, int, error) {
	tracker := NewTracker()
	n, err := w.Walk(ctx, head, tracker.Observe)
	if err != nil {
		return nil, n, err
	}
	records, err := tracker.Resolve()
	if err != nil {
		return nil, n, err
	}
	return records, n, nil
}
