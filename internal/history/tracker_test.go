package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderinc/gitpress/internal/errs"
)

func commitAt(sec int64, author string) Commit {
	return Commit{
		Hash:   "c" + time.Unix(sec, 0).UTC().Format("150405"),
		Time:   time.Unix(sec, 0).UTC(),
		Author: Signature{Name: author},
	}
}

func touch(p string) Delta       { return Delta{Action: Touch, From: p, To: p} }
func introduce(p string) Delta   { return Delta{Action: Introduce, To: p} }
func retarget(o, n string) Delta { return Delta{Action: Retarget, From: o, To: n} }
func remove(p string) Delta      { return Delta{Action: Remove, From: p} }

func TestClassify(t *testing.T) {
	tests := []struct {
		from, to string
		want     Action
	}{
		{"a.md", "a.md", Touch},
		{"", "a.md", Introduce},
		{"a.md", "b.md", Retarget},
		{"a.md", "", Remove},
	}
	for _, tt := range tests {
		d, err := Classify(tt.from, tt.to)
		require.NoError(t, err)
		assert.Equal(t, tt.want, d.Action, "%q -> %q", tt.from, tt.to)
	}

	_, err := Classify("", "")
	assert.ErrorIs(t, err, errs.ErrRepository)
}

func TestTrackerCreateAndModify(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Observe(commitAt(2000, "bob"), []Delta{touch("posts/a.md")}))
	require.NoError(t, tr.Observe(commitAt(1000, "alice"), []Delta{introduce("posts/a.md")}))

	records, err := tr.Resolve()
	require.NoError(t, err)
	require.Contains(t, records, "posts/a.md")

	r := records["posts/a.md"]
	assert.Equal(t, int64(1000), r.Created.Unix())
	assert.Equal(t, int64(2000), r.Modified.Unix())
	assert.Equal(t, "alice", r.Author.Name)
}

func TestTrackerSingleCommitFile(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Observe(commitAt(1000, "alice"), []Delta{introduce("posts/a.md")}))

	records, err := tr.Resolve()
	require.NoError(t, err)
	r := records["posts/a.md"]
	assert.Equal(t, r.Created, r.Modified)
}

func TestTrackerFollowsRenameChain(t *testing.T) {
	// A created at 1, renamed to B at 2, edited at 3, renamed to C at 4
	tr := NewTracker()
	require.NoError(t, tr.Observe(commitAt(4, "dave"), []Delta{retarget("A", "C")}))
	require.NoError(t, tr.Observe(commitAt(3, "carol"), []Delta{touch("A")}))
	require.NoError(t, tr.Observe(commitAt(2, "bob"), []Delta{retarget("B", "A")}))
	require.NoError(t, tr.Observe(commitAt(1, "alice"), []Delta{introduce("B")}))

	records, err := tr.Resolve()
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records["C"]
	require.NotNil(t, r)
	assert.Equal(t, int64(1), r.Created.Unix())
	assert.Equal(t, int64(4), r.Modified.Unix())
	assert.Equal(t, "alice", r.Author.Name)

	st, owner := tr.State("B")
	assert.Equal(t, Retired, st)
	assert.Equal(t, "C", owner)
}

func TestTrackerRenameKeepsNewerModification(t *testing.T) {
	// Created at 1, edited at 3, renamed at 5: modified stays 5
	tr := NewTracker()
	require.NoError(t, tr.Observe(commitAt(5, "bob"), []Delta{retarget("old.md", "new.md")}))
	require.NoError(t, tr.Observe(commitAt(3, "bob"), []Delta{touch("old.md")}))
	require.NoError(t, tr.Observe(commitAt(1, "alice"), []Delta{introduce("old.md")}))

	records, err := tr.Resolve()
	require.NoError(t, err)
	r := records["new.md"]
	require.NotNil(t, r)
	assert.Equal(t, int64(1), r.Created.Unix())
	assert.Equal(t, int64(5), r.Modified.Unix())
	assert.NotContains(t, records, "old.md")
}

func TestTrackerDeletedFileExcluded(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Observe(commitAt(3, "bob"), []Delta{remove("posts/x.md")}))
	require.NoError(t, tr.Observe(commitAt(2, "bob"), []Delta{touch("posts/x.md")}))
	require.NoError(t, tr.Observe(commitAt(1, "alice"), []Delta{introduce("posts/x.md")}))

	records, err := tr.Resolve()
	require.NoError(t, err)
	assert.Empty(t, records)

	st, _ := tr.State("posts/x.md")
	assert.Equal(t, Gone, st)
}

func TestTrackerRecreatedFile(t *testing.T) {
	// Created at 1, deleted at 2, created again at 3 by someone else
	tr := NewTracker()
	require.NoError(t, tr.Observe(commitAt(3, "carol"), []Delta{introduce("p.md")}))
	require.NoError(t, tr.Observe(commitAt(2, "bob"), []Delta{remove("p.md")}))
	require.NoError(t, tr.Observe(commitAt(1, "alice"), []Delta{introduce("p.md")}))

	records, err := tr.Resolve()
	require.NoError(t, err)
	r := records["p.md"]
	require.NotNil(t, r)
	assert.Equal(t, int64(3), r.Created.Unix())
	assert.Equal(t, "carol", r.Author.Name)
}

func TestTrackerRenameFromDeletedTarget(t *testing.T) {
	// The rename target is deleted later, so the source history is dropped
	tr := NewTracker()
	require.NoError(t, tr.Observe(commitAt(3, "bob"), []Delta{remove("b.md")}))
	require.NoError(t, tr.Observe(commitAt(2, "bob"), []Delta{retarget("a.md", "b.md")}))
	require.NoError(t, tr.Observe(commitAt(1, "alice"), []Delta{introduce("a.md")}))

	records, err := tr.Resolve()
	require.NoError(t, err)
	assert.Empty(t, records)

	st, _ := tr.State("a.md")
	assert.Equal(t, Gone, st)
}

func TestTrackerSwap(t *testing.T) {
	// a and b swap names in a single commit
	tr := NewTracker()
	require.NoError(t, tr.Observe(commitAt(3, "carol"), []Delta{retarget("a", "b"), retarget("b", "a")}))
	require.NoError(t, tr.Observe(commitAt(2, "bob"), []Delta{introduce("b")}))
	require.NoError(t, tr.Observe(commitAt(1, "alice"), []Delta{introduce("a")}))

	records, err := tr.Resolve()
	require.NoError(t, err)
	require.Len(t, records, 2)

	// The file now at b was created as a
	assert.Equal(t, "alice", records["b"].Author.Name)
	assert.Equal(t, "bob", records["a"].Author.Name)
}

func TestTrackerRenameBackToSelf(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Observe(commitAt(3, "bob"), []Delta{retarget("tmp", "a")}))
	require.NoError(t, tr.Observe(commitAt(2, "bob"), []Delta{retarget("a", "tmp")}))
	require.NoError(t, tr.Observe(commitAt(1, "alice"), []Delta{introduce("a")}))

	records, err := tr.Resolve()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records["a"].Created.Unix())
	assert.Equal(t, int64(3), records["a"].Modified.Unix())

	st, _ := tr.State("a")
	assert.Equal(t, Live, st)
}

func TestTrackerMissingCreationIsFatal(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Observe(commitAt(2, "bob"), []Delta{touch("orphan.md")}))

	_, err := tr.Resolve()
	assert.ErrorIs(t, err, errs.ErrRepository)
}

func TestTrackerIgnoresEditsOfDeletedBranchFile(t *testing.T) {
	// A side branch edited the file after the mainline deleted it
	tr := NewTracker()
	require.NoError(t, tr.Observe(commitAt(5, "bob"), []Delta{touch("gone.md")}))
	require.NoError(t, tr.Observe(commitAt(4, "carol"), []Delta{remove("gone.md")}))
	require.NoError(t, tr.Observe(commitAt(1, "alice"), []Delta{introduce("gone.md")}))

	records, err := tr.Resolve()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTrackerIgnoresEditsOfRenamedBranchFile(t *testing.T) {
	// A side branch edited the old name after the mainline renamed it
	tr := NewTracker()
	require.NoError(t, tr.Observe(commitAt(4, "merger"), []Delta{touch("c.md")}))
	require.NoError(t, tr.Observe(commitAt(3, "bob"), []Delta{touch("a.md")}))
	require.NoError(t, tr.Observe(commitAt(2, "carol"), []Delta{retarget("a.md", "c.md")}))
	require.NoError(t, tr.Observe(commitAt(1, "alice"), []Delta{introduce("a.md")}))

	records, err := tr.Resolve()
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records["c.md"]
	require.NotNil(t, r)
	assert.Equal(t, int64(1), r.Created.Unix())
	assert.Equal(t, int64(4), r.Modified.Unix())
	assert.Equal(t, "alice", r.Author.Name)

	st, owner := tr.State("a.md")
	assert.Equal(t, Retired, st)
	assert.Equal(t, "c.md", owner)
}

func TestTrackerEarliestIntroduceWins(t *testing.T) {
	// Merges with an empty baseline re-introduce existing files
	tr := NewTracker()
	require.NoError(t, tr.Observe(commitAt(4, "merger"), []Delta{introduce("a.md")}))
	require.NoError(t, tr.Observe(commitAt(1, "alice"), []Delta{introduce("a.md")}))

	records, err := tr.Resolve()
	require.NoError(t, err)
	r := records["a.md"]
	assert.Equal(t, int64(1), r.Created.Unix())
	assert.Equal(t, int64(4), r.Modified.Unix())
	assert.Equal(t, "alice", r.Author.Name)
}

func TestTrackerCountsCommits(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Observe(commitAt(2, "bob"), nil))
	require.NoError(t, tr.Observe(commitAt(1, "bob"), nil))
	assert.Equal(t, 2, tr.Commits())
}
