// Package gitrepo keeps a local working copy of the remote content
// repository in sync with one branch.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/renderinc/gitpress/internal/errs"
)

const remoteName = "origin"

// Options describes the remote and how to reach it
type Options struct {
	URL          string
	Branch       string
	Username     string
	Password     string
	Proxy        string
	Dir          string // Clone target; empty uses a temp dir removed on Close
	FetchTimeout time.Duration
}

// Mirror is a working copy that tracks a single remote branch
type Mirror struct {
	mu        sync.Mutex
	opts      Options
	repo      *git.Repository
	dir       string
	ephemeral bool
}

// New prepares a mirror without touching the network. The clone happens on
// the first FetchAndReset.
func New(opts Options) (*Mirror, error) {
	dir := opts.Dir
	ephemeral := dir == ""
	if ephemeral {
		tmp, err := os.MkdirTemp("", "gitpress-*")
		if err != nil {
			return nil, fmt.Errorf("%w: create work dir: %v", errs.ErrRepository, err)
		}
		dir = tmp
	}
	return &Mirror{opts: opts, dir: dir, ephemeral: ephemeral}, nil
}

// Clone clones opts.URL into a fresh working directory, or opens the
// clone already present in opts.Dir
func Clone(ctx context.Context, opts Options) (*Mirror, error) {
	m, err := New(opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.open(ctx); err != nil {
		m.removeDir()
		return nil, err
	}
	return m, nil
}

func (m *Mirror) open(ctx context.Context) error {
	if m.repo != nil {
		return nil
	}

	// A persistent work dir left by a previous run is reused; the fetch
	// that follows brings it up to date. It must track the configured URL.
	if !m.ephemeral {
		if repo, err := git.PlainOpen(m.dir); err == nil {
			if err := m.checkOrigin(repo); err != nil {
				return err
			}
			m.repo = repo
			return nil
		}
	}

	cloneCtx, cancel := m.withTimeout(ctx)
	defer cancel()

	repo, err := git.PlainCloneContext(cloneCtx, m.dir, false, &git.CloneOptions{
		URL:           m.opts.URL,
		Auth:          m.auth(),
		RemoteName:    remoteName,
		ReferenceName: plumbing.NewBranchReferenceName(m.opts.Branch),
		SingleBranch:  true,
		ProxyOptions:  m.proxy(),
	})
	if err != nil {
		return fmt.Errorf("clone %s: %w", m.opts.URL, classify(cloneCtx, err))
	}
	m.repo = repo
	return nil
}

func (m *Mirror) checkOrigin(repo *git.Repository) error {
	remote, err := repo.Remote(remoteName)
	if err != nil {
		return fmt.Errorf("%w: work dir %s has no %s remote: %v", errs.ErrConfig, m.dir, remoteName, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 || urls[0] != m.opts.URL {
		return fmt.Errorf("%w: work dir %s tracks %v, not %s", errs.ErrConfig, m.dir, urls, m.opts.URL)
	}
	return nil
}

// FetchAndReset fetches branch from the remote and hard-resets the working
// copy to it. It returns the new head commit.
func (m *Mirror) FetchAndReset(ctx context.Context, branch string) (plumbing.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.open(ctx); err != nil {
		return plumbing.ZeroHash, err
	}

	remoteRef := plumbing.NewRemoteReferenceName(remoteName, branch)
	spec := gitconfig.RefSpec(fmt.Sprintf("+%s:%s", plumbing.NewBranchReferenceName(branch), remoteRef))

	fetchCtx, cancel := m.withTimeout(ctx)
	defer cancel()

	err := m.repo.FetchContext(fetchCtx, &git.FetchOptions{
		RemoteName:   remoteName,
		RefSpecs:     []gitconfig.RefSpec{spec},
		Auth:         m.auth(),
		Force:        true,
		ProxyOptions: m.proxy(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return plumbing.ZeroHash, fmt.Errorf("fetch %s: %w", branch, classify(fetchCtx, err))
	}

	ref, err := m.repo.Reference(remoteRef, true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: resolve %s: %v", errs.ErrRepository, remoteRef, err)
	}

	wt, err := m.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: worktree: %v", errs.ErrRepository, err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: ref.Hash(), Mode: git.HardReset}); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: reset to %s: %v", errs.ErrRepository, ref.Hash(), err)
	}
	if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: clean: %v", errs.ErrRepository, err)
	}

	return ref.Hash(), nil
}

// Repository exposes the underlying repository for history reads. It is
// nil until the first successful FetchAndReset of a mirror made by New.
func (m *Mirror) Repository() *git.Repository {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repo
}

// Dir is the working copy directory
func (m *Mirror) Dir() string {
	return m.dir
}

// Close removes the working copy when it was created in a temp dir
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeDir()
}

func (m *Mirror) removeDir() error {
	if !m.ephemeral || m.dir == "" {
		return nil
	}
	err := os.RemoveAll(m.dir)
	m.dir = ""
	return err
}

func (m *Mirror) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opts.FetchTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.opts.FetchTimeout)
}

func (m *Mirror) auth() transport.AuthMethod {
	if m.opts.Username == "" && m.opts.Password == "" {
		return nil
	}
	return &http.BasicAuth{Username: m.opts.Username, Password: m.opts.Password}
}

func (m *Mirror) proxy() transport.ProxyOptions {
	return transport.ProxyOptions{URL: m.opts.Proxy}
}

// classify maps transport failures onto error kinds
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed):
		return fmt.Errorf("%w: %v", errs.ErrAuth, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: timed out: %v", errs.ErrNetwork, err)
	case errors.Is(err, context.Canceled):
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", errs.ErrNetwork, err)
	}
	return fmt.Errorf("%w: %v", errs.ErrRepository, err)
}
