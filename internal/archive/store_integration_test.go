package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/briefly-ai/briefly/internal/index"
	"github.com/briefly-ai/briefly/internal/log"
	"github.com/briefly-ai/briefly/internal/news"
)

// setupStore starts a disposable pgvector container and returns a migrated
// Store backed by it.
func setupStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("briefly_test"),
		postgres.WithUsername("briefly_test"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "starting postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := Open(ctx, dsn, log.NewNop())
	require.NoError(t, err, "opening archive store")
	t.Cleanup(store.Close)

	return store
}

func archiveChunks(docID string, vecs ...[]float32) []index.Chunk {
	chunks := make([]index.Chunk, 0, len(vecs))
	for i, v := range vecs {
		chunks = append(chunks, index.Chunk{
			DocumentID: docID,
			Text:       "chunk body",
			Embedding:  v,
			Position:   i,
			CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		})
	}
	return chunks
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	docs := []news.Document{news.NewDocument("rss:test", "chunk body", time.Now())}
	snap := index.Build(archiveChunks(docs[0].ContentHash,
		[]float32{0.1, 0.2, 0.3},
		[]float32{0.4, 0.5, 0.6},
	), 7)

	require.NoError(t, store.Save(ctx, snap, docs))

	chunks, version, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), version)
	require.Len(t, chunks, 2)
	assert.Equal(t, docs[0].ContentHash, chunks[0].DocumentID)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, chunks[0].Embedding)
	assert.Equal(t, 1, chunks[1].Position)
}

func TestSaveKeepsOnlyLatestSnapshot(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	oldDocs := []news.Document{news.NewDocument("rss:test", "old edition", time.Now())}
	oldSnap := index.Build(archiveChunks(oldDocs[0].ContentHash, []float32{1, 0, 0}), 1)
	require.NoError(t, store.Save(ctx, oldSnap, oldDocs))

	newDocs := []news.Document{news.NewDocument("rss:test", "new edition", time.Now())}
	newSnap := index.Build(archiveChunks(newDocs[0].ContentHash,
		[]float32{0, 1, 0},
		[]float32{0, 0, 1},
	), 2)
	require.NoError(t, store.Save(ctx, newSnap, newDocs))

	chunks, version, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.Equal(t, newDocs[0].ContentHash, c.DocumentID)
	}
}

func TestLoadEmptyArchive(t *testing.T) {
	store := setupStore(t)

	chunks, version, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.Empty(t, chunks)
}
