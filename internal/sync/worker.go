package sync

import (
	"context"
	"crypto/md5"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"

	"github.com/renderinc/gitpress/internal/content"
	"github.com/renderinc/gitpress/internal/errs"
	"github.com/renderinc/gitpress/internal/history"
	"github.com/renderinc/gitpress/internal/index"
	"github.com/renderinc/gitpress/internal/storage"
)

// Source is the repository a worker extracts from
type Source interface {
	FetchAndReset(ctx context.Context, branch string) (plumbing.Hash, error)
	Repository() *git.Repository
}

// Journal records the outcome of every cycle
type Journal interface {
	RecordRun(run *storage.Run) error
}

// Worker runs extraction cycles: fetch, walk history, load, build
type Worker struct {
	source   Source
	loader   *content.Loader
	branch   string
	baseline history.Baseline
	journal  Journal
	logger   *slog.Logger
}

// Options configures a Worker
type Options struct {
	Branch   string
	Baseline history.Baseline
	Journal  Journal // Optional
	Logger   *slog.Logger
}

// NewWorker creates a new sync worker
func NewWorker(source Source, loader *content.Loader, opts Options) *Worker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		source:   source,
		loader:   loader,
		branch:   opts.Branch,
		baseline: opts.Baseline,
		journal:  opts.Journal,
		logger:   logger,
	}
}

// Stats holds sync statistics
type Stats struct {
	Head      string
	Commits   int
	Documents int
	New       int
	Updated   int
	Removed   int
	Unchanged int
	Duration  time.Duration
}

// Generate implements the store's generator: one cycle relative to prev
func (w *Worker) Generate(ctx context.Context, prev *index.Generation) (*index.Generation, error) {
	gen, _, err := w.Sync(ctx, prev)
	return gen, err
}

// Sync performs one full extraction cycle. prev may be nil; it is only
// used to report what changed.
func (w *Worker) Sync(ctx context.Context, prev *index.Generation) (*index.Generation, *Stats, error) {
	startTime := time.Now()
	run := &storage.Run{ID: uuid.NewString(), StartedAt: startTime}

	gen, stats, err := w.sync(ctx, prev)
	run.FinishedAt = time.Now()

	if err != nil {
		run.Status = storage.StatusFailed
		run.ErrorKind = errs.Kind(err)
		run.Error = err.Error()
		if stats != nil {
			run.Head = stats.Head
			run.Commits = stats.Commits
		}
		w.record(run)
		w.logger.Error("sync failed", "kind", run.ErrorKind, "error", err, "duration", run.Duration())
		return nil, stats, err
	}

	stats.Duration = run.Duration()
	run.Status = storage.StatusOK
	run.Head = stats.Head
	run.Generation = gen.ID.String()
	run.Commits = stats.Commits
	run.Documents = stats.Documents
	run.Added = stats.New
	run.Changed = stats.Updated
	run.Removed = stats.Removed
	w.record(run)

	w.logger.Info("sync complete",
		"head", stats.Head,
		"commits", stats.Commits,
		"documents", stats.Documents,
		"new", stats.New,
		"updated", stats.Updated,
		"removed", stats.Removed,
		"duration", stats.Duration,
	)
	return gen, stats, nil
}

func (w *Worker) sync(ctx context.Context, prev *index.Generation) (*index.Generation, *Stats, error) {
	stats := &Stats{}

	// 1. Bring the working copy to the remote head
	w.logger.Debug("fetching", "branch", w.branch)
	head, err := w.source.FetchAndReset(ctx, w.branch)
	if err != nil {
		return nil, stats, err
	}
	stats.Head = head.String()

	repo := w.source.Repository()
	commit, err := repo.CommitObject(head)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: head commit %s: %v", errs.ErrRepository, head, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, stats, fmt.Errorf("%w: head tree %s: %v", errs.ErrRepository, head, err)
	}

	// 2. Resolve provenance from the whole history
	records, commits, err := history.Provenance(ctx, history.NewWalker(repo, w.baseline), head)
	stats.Commits = commits
	if err != nil {
		return nil, stats, fmt.Errorf("walk history: %w", err)
	}
	w.logger.Debug("history resolved", "commits", commits, "records", len(records))

	// 3. Materialise documents from the head tree
	docs, err := w.loader.Load(ctx, tree, records)
	if err != nil {
		return nil, stats, fmt.Errorf("load documents: %w", err)
	}

	// 4. Build the generation
	gen, err := index.Build(docs, index.Options{Head: stats.Head})
	if err != nil {
		return nil, stats, fmt.Errorf("build index: %w", err)
	}

	stats.Documents = gen.Len()
	diffStats(stats, prev, gen)
	return gen, stats, nil
}

// diffStats compares content hashes by path against the previous generation
func diffStats(stats *Stats, prev, next *index.Generation) {
	old := map[string][16]byte{}
	if prev != nil {
		for _, d := range prev.Documents() {
			old[d.Path] = md5.Sum([]byte(d.Content))
		}
	}

	for _, d := range next.Documents() {
		existingHash, ok := old[d.Path]
		switch {
		case !ok:
			stats.New++
		case existingHash != md5.Sum([]byte(d.Content)):
			stats.Updated++
		default:
			stats.Unchanged++
		}
		delete(old, d.Path)
	}
	stats.Removed = len(old)
}

func (w *Worker) record(run *storage.Run) {
	if w.journal == nil {
		return
	}
	if err := w.journal.RecordRun(run); err != nil {
		w.logger.Warn("failed to record run", "run", run.ID, "error", err)
	}
}
