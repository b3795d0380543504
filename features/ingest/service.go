package ingest

import (
	"context"
	"fmt"
	"log/slog"
)

// Store is the repository surface the service orchestrates.
type Store interface {
	UpsertCourse(ctx context.Context, c Course) error
	UpsertModule(ctx context.Context, m Module) error
	UpsertDocument(ctx context.Context, d Document) error
	DeleteChunksByDocument(ctx context.Context, documentID string) error
	InsertChunk(ctx context.Context, c Chunk) error
	GenerateChunkID() string
}

// Service drives one document through a full ingestion pass: metadata
// upserts, then replacement of the document's chunk set.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// IngestDocument upserts the course, module, and document, deletes the
// document's prior chunk set, and inserts the new one. Chunk ids are
// generated here; denormalized trace fields are stamped from the given
// course/module/document so they match the parent at insert time.
//
// Delete and inserts are separate round trips, not a transaction: a crash or
// concurrent reader mid-pass can observe the document with zero chunks.
func (s *Service) IngestDocument(ctx context.Context, course Course, module Module, doc Document, chunks []ChunkInput) error {
	if err := s.store.UpsertCourse(ctx, course); err != nil {
		return err
	}
	if err := s.store.UpsertModule(ctx, module); err != nil {
		return err
	}
	if err := s.store.UpsertDocument(ctx, doc); err != nil {
		return err
	}

	if err := s.store.DeleteChunksByDocument(ctx, doc.ID); err != nil {
		return err
	}

	for i, in := range chunks {
		chunk := Chunk{
			ID:            s.store.GenerateChunkID(),
			DocumentID:    doc.ID,
			CourseID:      doc.CourseID,
			ModuleID:      doc.ModuleID,
			Text:          in.Text,
			Embedding:     in.Embedding,
			DocumentTitle: doc.Title,
			CourseName:    course.Name,
			ModuleName:    module.Name,
		}
		if err := s.store.InsertChunk(ctx, chunk); err != nil {
			return fmt.Errorf("chunk %d of document %s: %w", i, doc.ID, err)
		}
	}

	slog.InfoContext(ctx, "document ingested",
		"document_id", doc.ID, "course_id", doc.CourseID, "module_id", doc.ModuleID, "chunks", len(chunks))
	return nil
}
