package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexSearch(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.IndexDocuments([]*IndexedDocument{
		{Position: 0, Kind: "post", Title: "Deploying to Kubernetes", Content: "pods and services on kubernetes", Author: "Alice", URL: "/a"},
		{Position: 1, Kind: "post", Title: "Postgres tuning", Content: "vacuum and indexes", Author: "Bob", URL: "/b"},
		{Position: 2, Kind: "page", Title: "About", Content: "we write about kubernetes", Author: "Alice", URL: "/about"},
	}))

	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	results, err := idx.Search("kubernetes", 10)
	require.NoError(t, err)
	positions := make([]int, 0, len(results))
	for _, r := range results {
		positions = append(positions, r.Position)
	}
	assert.ElementsMatch(t, []int{0, 2}, positions)

	results, err = idx.Search("vacuum", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Position)

	results, err = idx.Search("zebra", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndexSearchLimit(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	defer idx.Close()

	var docs []*IndexedDocument
	for i := 0; i < 5; i++ {
		docs = append(docs, &IndexedDocument{Position: i, Title: "golang notes", Content: "golang"})
	}
	require.NoError(t, idx.IndexDocuments(docs))

	results, err := idx.Search("golang", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
