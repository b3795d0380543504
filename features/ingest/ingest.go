package ingest

import "knot/ragstore/internal/vector"

// Course is the top-level grouping of content, keyed by an externally managed
// identifier. Upserted, never deleted.
type Course struct {
	ID   string `json:"course_id"`
	Name string `json:"course_name"`
}

// Module is a named subdivision (a "unit") of a course.
type Module struct {
	ID       string `json:"module_id"`
	CourseID string `json:"course_id"`
	Name     string `json:"module_name"`
}

// Document is one ingested source text. Re-ingesting the same ID updates
// raw_text, title, and module_id in place; document_type never changes after
// the first upsert.
type Document struct {
	ID       string `json:"document_id"`
	CourseID string `json:"course_id"`
	ModuleID string `json:"module_id"`
	Type     string `json:"document_type"`
	Title    string `json:"title"`
	RawText  string `json:"raw_text"`
}

// Chunk is the unit of retrieval: a bounded span of a document's text paired
// with its embedding. course_id/module_id and the name fields are
// denormalized from the parent document for query-time filtering and
// provenance without joins.
type Chunk struct {
	ID            string           `json:"chunk_id"`
	DocumentID    string           `json:"document_id"`
	CourseID      string           `json:"course_id"`
	ModuleID      string           `json:"module_id"`
	Text          string           `json:"text"`
	Embedding     vector.Embedding `json:"embedding"`
	DocumentTitle string           `json:"document_title"`
	CourseName    string           `json:"course_name"`
	ModuleName    string           `json:"module_name"`
}

// ChunkInput is a pre-embedded chunk as delivered by the external embedding
// collaborator, before ids and trace fields are stamped.
type ChunkInput struct {
	Text      string           `json:"text"`
	Embedding vector.Embedding `json:"embedding"`
}
