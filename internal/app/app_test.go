package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knot/ragstore/features/ingest"
	"knot/ragstore/internal/adapter/snowflake"
	"knot/ragstore/internal/app"
	"knot/ragstore/internal/config"
	"knot/ragstore/internal/retrieval"
	"knot/ragstore/internal/testutils"
	"knot/ragstore/internal/vector"
)

func testConfig() *config.Config {
	return &config.Config{
		Host: "fake", Token: "tok", Database: "KNOT", Schema: "RAG",
		BootstrapRetryAttempts: 2, BootstrapRetryDelaySeconds: 0,
	}
}

func newDeps(t *testing.T) (*app.Dependencies, *testutils.Warehouse) {
	w := testutils.NewWarehouse(t)
	cfg := testConfig()
	client := snowflake.NewClient(cfg)
	client.SetBaseURL(w.URL())
	return app.New(cfg, client, nil), w
}

func embedding(seed int) vector.Embedding {
	e := make(vector.Embedding, vector.Dim)
	for i := range e {
		e[i] = float32((i+seed)%11) * 0.2
	}
	return e
}

func TestEnsureSchema_IssuesAllDDL(t *testing.T) {
	deps, w := newDeps(t)

	require.NoError(t, deps.EnsureSchema(context.Background()))
	// database, schema, 4 tables, 3 trace columns
	assert.Len(t, w.DDL, 9)

	// Idempotent: a second run issues the same DDL without failing, even
	// when the trace columns already exist.
	w.AlterErrs["document_title"] = "column DOCUMENT_TITLE already exists"
	require.NoError(t, deps.EnsureSchema(context.Background()))
}

func TestScenario_IngestListRetrieveReingest(t *testing.T) {
	deps, _ := newDeps(t)
	ctx := context.Background()
	require.NoError(t, deps.EnsureSchema(ctx))

	course := ingest.Course{ID: "C1", Name: "Systems"}
	module := ingest.Module{ID: "M1", CourseID: "C1", Name: "Unit 1"}
	doc := ingest.Document{ID: "D1", CourseID: "C1", ModuleID: "M1", Type: "page", Title: "Intro to Systems", RawText: "Intro to Systems"}

	first := []ingest.ChunkInput{
		{Text: "chunk one", Embedding: embedding(1)},
		{Text: "chunk two", Embedding: embedding(2)},
	}
	require.NoError(t, deps.Ingest.IngestDocument(ctx, course, module, doc, first))

	got, err := deps.Units.List(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "M1", got[0].ModuleID)
	assert.Equal(t, 1, got[0].DocumentCount)
	assert.Equal(t, 2, got[0].ChunkCount)

	// Retrieval with one of the stored embeddings finds it at score 1.
	th := 0.0
	chunks, err := deps.Retrieval.RetrieveChunks(ctx, "C1", embedding(1), &retrieval.Options{Threshold: &th})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "chunk one", chunks[0].Text)
	assert.InDelta(t, 1.0, chunks[0].Score, 1e-6)
	assert.Equal(t, "Intro to Systems", chunks[0].DocumentTitle)
	assert.Equal(t, "Systems", chunks[0].CourseName)
	assert.Equal(t, "Unit 1", chunks[0].ModuleName)

	// Re-ingest D1 with a single new chunk: the old set is fully replaced.
	second := []ingest.ChunkInput{{Text: "chunk three", Embedding: embedding(3)}}
	require.NoError(t, deps.Ingest.IngestDocument(ctx, course, module, doc, second))

	got, err = deps.Units.List(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].ChunkCount)

	chunks, err = deps.Retrieval.RetrieveChunks(ctx, "C1", embedding(1), &retrieval.Options{Threshold: &th})
	require.NoError(t, err)
	for _, c := range chunks {
		assert.Equal(t, "chunk three", c.Text)
	}
}

func TestScenario_UpsertIdempotence(t *testing.T) {
	deps, w := newDeps(t)
	ctx := context.Background()

	course := ingest.Course{ID: "C1", Name: "Systems"}
	module := ingest.Module{ID: "M1", CourseID: "C1", Name: "Unit 1"}
	doc := ingest.Document{ID: "D1", CourseID: "C1", ModuleID: "M1", Type: "page", Title: "Intro", RawText: "v1"}
	chunks := []ingest.ChunkInput{{Text: "a", Embedding: embedding(1)}}

	require.NoError(t, deps.Ingest.IngestDocument(ctx, course, module, doc, chunks))

	doc.RawText = "v2"
	require.NoError(t, deps.Ingest.IngestDocument(ctx, course, module, doc, chunks))

	assert.Len(t, w.Courses, 1)
	assert.Len(t, w.Modules, 1)
	assert.Len(t, w.Documents, 1)
	assert.Len(t, w.Chunks, 1)
	assert.Equal(t, "v2", w.Documents["D1"].RawText)
}
