package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"knot/ragstore/features/units"
	"knot/ragstore/internal/retrieval"
)

func TestRenderUnits(t *testing.T) {
	var buf bytes.Buffer
	renderUnits(&buf, "C1", []units.Unit{
		{ModuleID: "M1", ModuleName: "Unit 1", DocumentCount: 3, ChunkCount: 10},
		{ModuleID: "M2", ModuleName: "  ", DocumentCount: 0, ChunkCount: 0},
	})

	out := buf.String()
	assert.Contains(t, out, "Course C1 - 2 unit(s)")
	assert.Contains(t, out, "M1: Unit 1")
	assert.Contains(t, out, "documents: 3, chunks: 10")
	// Blank module names fall back to the id.
	assert.Contains(t, out, "M2: M2")
	assert.Contains(t, out, "documents: 0, chunks: 0")
}

func TestRenderUnits_Empty(t *testing.T) {
	var buf bytes.Buffer
	renderUnits(&buf, "C1", nil)
	assert.Contains(t, buf.String(), "No units found")
}

func TestRenderChunks_SparseWarning(t *testing.T) {
	var buf bytes.Buffer
	renderChunks(&buf, []retrieval.Chunk{
		{ChunkID: "a", DocumentTitle: "Intro", CourseName: "Systems", ModuleName: "Unit 1", Text: "hello", Score: 0.9},
	})

	out := buf.String()
	assert.Contains(t, out, "[1] Intro (0.900)")
	assert.Contains(t, out, "likely not useful")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet("short", 200))
	long := strings.Repeat("x", 300)
	assert.Equal(t, 203, len(snippet(long, 200)))
	assert.True(t, strings.HasSuffix(snippet(long, 200), "..."))
}
