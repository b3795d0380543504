package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"knot/ragstore/internal/adapter/snowflake"
	"knot/ragstore/internal/config"
)

// maxTraceLen bounds the denormalized name/title fields on a chunk row.
// Longer values are truncated silently, not rejected.
const maxTraceLen = 65535

// Executor is the statement submission surface the repository needs.
type Executor interface {
	Execute(ctx context.Context, statement string, bindings snowflake.Bindings, opts snowflake.ExecOptions) (*snowflake.Response, error)
}

// Repository performs the ingestion writes: idempotent metadata upserts and
// delete-then-insert chunk replacement. Every operation is a single
// parameterized statement against the warehouse.
type Repository struct {
	exec Executor
	cfg  *config.Config
}

func NewRepository(exec Executor, cfg *config.Config) *Repository {
	return &Repository{exec: exec, cfg: cfg}
}

func (r *Repository) UpsertCourse(ctx context.Context, c Course) error {
	stmt := fmt.Sprintf(`
		MERGE INTO %s t
		USING (SELECT ? AS course_id, ? AS course_name) s ON t.course_id = s.course_id
		WHEN MATCHED THEN UPDATE SET t.course_name = s.course_name
		WHEN NOT MATCHED THEN INSERT (course_id, course_name) VALUES (s.course_id, s.course_name)`,
		r.cfg.Qualify("courses"))
	_, err := r.exec.Execute(ctx, stmt, snowflake.Text(c.ID, c.Name), snowflake.ExecOptions{})
	if err != nil {
		return fmt.Errorf("upsert course %s: %w", c.ID, err)
	}
	return nil
}

func (r *Repository) UpsertModule(ctx context.Context, m Module) error {
	stmt := fmt.Sprintf(`
		MERGE INTO %s t
		USING (SELECT ? AS module_id, ? AS course_id, ? AS module_name) s ON t.module_id = s.module_id
		WHEN MATCHED THEN UPDATE SET t.module_name = s.module_name, t.course_id = s.course_id
		WHEN NOT MATCHED THEN INSERT (module_id, course_id, module_name) VALUES (s.module_id, s.course_id, s.module_name)`,
		r.cfg.Qualify("modules"))
	_, err := r.exec.Execute(ctx, stmt, snowflake.Text(m.ID, m.CourseID, m.Name), snowflake.ExecOptions{})
	if err != nil {
		return fmt.Errorf("upsert module %s: %w", m.ID, err)
	}
	return nil
}

// UpsertDocument updates only the fields that legitimately change on
// re-ingestion: raw_text, title, and module_id. document_type is set on
// first insert only.
func (r *Repository) UpsertDocument(ctx context.Context, d Document) error {
	stmt := fmt.Sprintf(`
		MERGE INTO %s t
		USING (SELECT ? AS document_id, ? AS course_id, ? AS module_id, ? AS document_type, ? AS title, ? AS raw_text) s
		ON t.document_id = s.document_id
		WHEN MATCHED THEN UPDATE SET t.raw_text = s.raw_text, t.title = s.title, t.module_id = s.module_id
		WHEN NOT MATCHED THEN INSERT (document_id, course_id, module_id, document_type, title, raw_text) VALUES (s.document_id, s.course_id, s.module_id, s.document_type, s.title, s.raw_text)`,
		r.cfg.Qualify("documents"))
	bindings := snowflake.Text(d.ID, d.CourseID, d.ModuleID, d.Type, d.Title, d.RawText)
	_, err := r.exec.Execute(ctx, stmt, bindings, snowflake.ExecOptions{})
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", d.ID, err)
	}
	return nil
}

// DeleteChunksByDocument removes a document's entire chunk set. Invoked
// before inserting the replacement set; delete and inserts are separate
// round trips, so a concurrent reader can observe the transient empty state.
func (r *Repository) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE document_id = ?", r.cfg.Qualify("document_chunks"))
	_, err := r.exec.Execute(ctx, stmt, snowflake.Text(documentID), snowflake.ExecOptions{})
	if err != nil {
		return fmt.Errorf("delete chunks of document %s: %w", documentID, err)
	}
	return nil
}

// InsertChunk writes one chunk row. The embedding travels as a JSON array
// string and is reconstituted server-side; it must be exactly vector.Dim
// components long.
func (r *Repository) InsertChunk(ctx context.Context, c Chunk) error {
	embedding, err := c.Embedding.EncodeJSON()
	if err != nil {
		return fmt.Errorf("chunk %s: %w", c.ID, err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s
		(chunk_id, document_id, course_id, module_id, text, embedding, document_title, course_name, module_name)
		SELECT ?, ?, ?, ?, ?, PARSE_JSON(?)::VECTOR(FLOAT, 768), ?, ?, ?`,
		r.cfg.Qualify("document_chunks"))
	bindings := snowflake.Text(
		c.ID,
		c.DocumentID,
		c.CourseID,
		c.ModuleID,
		c.Text,
		embedding,
		truncate(c.DocumentTitle),
		truncate(c.CourseName),
		truncate(c.ModuleName),
	)
	if _, err := r.exec.Execute(ctx, stmt, bindings, snowflake.ExecOptions{}); err != nil {
		return fmt.Errorf("insert chunk %s: %w", c.ID, err)
	}
	return nil
}

// GenerateChunkID produces a new globally unique chunk identifier. Pure
// identity, not content-addressed.
func (r *Repository) GenerateChunkID() string {
	return uuid.NewString()
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= maxTraceLen {
		return s
	}
	return string(runes[:maxTraceLen])
}
