// Package gittest builds small in-memory git repositories for tests.
package gittest

import (
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
)

// Repo is an in-memory repository with a worktree
type Repo struct {
	t    testing.TB
	Repo *git.Repository
	wt   *git.Worktree
}

// New initialises an empty repository on branch master
func New(t testing.TB) *Repo {
	t.Helper()

	repo, err := git.Init(memory.NewStorage(), memfs.New())
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	return &Repo{t: t, Repo: repo, wt: wt}
}

// Write creates or overwrites a file and stages it
func (r *Repo) Write(path, content string) *Repo {
	r.t.Helper()
	require.NoError(r.t, util.WriteFile(r.wt.Filesystem, path, []byte(content), 0o644))
	_, err := r.wt.Add(path)
	require.NoError(r.t, err)
	return r
}

// Remove deletes a file and stages the removal
func (r *Repo) Remove(path string) *Repo {
	r.t.Helper()
	_, err := r.wt.Remove(path)
	require.NoError(r.t, err)
	return r
}

// Move renames a file and stages the rename
func (r *Repo) Move(from, to string) *Repo {
	r.t.Helper()
	_, err := r.wt.Move(from, to)
	require.NoError(r.t, err)
	return r
}

// Commit records the staged changes. at is a unix timestamp used for both
// author and committer time.
func (r *Repo) Commit(author string, at int64, parents ...plumbing.Hash) plumbing.Hash {
	r.t.Helper()

	sig := &object.Signature{
		Name:  author,
		Email: author + "@example.com",
		When:  time.Unix(at, 0).UTC(),
	}
	hash, err := r.wt.Commit("commit by "+author, &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		Parents:           parents,
		AllowEmptyCommits: true,
	})
	require.NoError(r.t, err)
	return hash
}

// Branch creates name at HEAD and checks it out
func (r *Repo) Branch(name string) *Repo {
	r.t.Helper()
	require.NoError(r.t, r.wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
	}))
	return r
}

// Checkout switches to an existing branch
func (r *Repo) Checkout(name string) *Repo {
	r.t.Helper()
	require.NoError(r.t, r.wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
	}))
	return r
}

// Head returns the commit HEAD points at
func (r *Repo) Head() plumbing.Hash {
	r.t.Helper()
	ref, err := r.Repo.Head()
	require.NoError(r.t, err)
	return ref.Hash()
}

// Tree returns the tree of commit h
func (r *Repo) Tree(h plumbing.Hash) *object.Tree {
	r.t.Helper()
	c, err := r.Repo.CommitObject(h)
	require.NoError(r.t, err)
	tree, err := c.Tree()
	require.NoError(r.t, err)
	return tree
}
