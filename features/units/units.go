package units

import (
	"context"
	"fmt"
	"strconv"

	"knot/ragstore/internal/adapter/snowflake"
	"knot/ragstore/internal/config"
)

// Unit is one module of a course with its ingested document and chunk counts.
// Modules with nothing ingested yet still appear, with zero counts.
type Unit struct {
	ModuleID      string `json:"module_id"`
	ModuleName    string `json:"module_name"`
	DocumentCount int    `json:"document_count"`
	ChunkCount    int    `json:"chunk_count"`
}

// Fetcher is the row-resolving statement surface the repository needs.
type Fetcher interface {
	ExecuteAndFetch(ctx context.Context, statement string, bindings snowflake.Bindings) ([][]string, error)
}

// Repository reports per-module ingestion state. Read-only.
type Repository struct {
	fetch Fetcher
	cfg   *config.Config
}

func NewRepository(fetch Fetcher, cfg *config.Config) *Repository {
	return &Repository{fetch: fetch, cfg: cfg}
}

// List returns one row per module of the course, ordered by module_id.
func (r *Repository) List(ctx context.Context, courseID string) ([]Unit, error) {
	stmt := fmt.Sprintf(`
	SELECT m.module_id, COALESCE(m.module_name, '') AS module_name,
		COUNT(DISTINCT d.document_id) AS document_count,
		COUNT(c.chunk_id) AS chunk_count
	FROM %s m
	LEFT JOIN %s d
		ON d.course_id = m.course_id AND d.module_id = m.module_id
	LEFT JOIN %s c
		ON c.document_id = d.document_id
	WHERE m.course_id = ?
	GROUP BY m.module_id, m.module_name, m.course_id
	ORDER BY m.module_id`,
		r.cfg.Qualify("modules"),
		r.cfg.Qualify("documents"),
		r.cfg.Qualify("document_chunks"))

	rows, err := r.fetch.ExecuteAndFetch(ctx, stmt, snowflake.Text(courseID))
	if err != nil {
		return nil, fmt.Errorf("list units for course %s: %w", courseID, err)
	}

	result := make([]Unit, 0, len(rows))
	for _, row := range rows {
		if len(row) < 4 {
			continue
		}
		docCount, err := strconv.Atoi(row[2])
		if err != nil {
			return nil, fmt.Errorf("decode document_count %q: %w", row[2], err)
		}
		chunkCount, err := strconv.Atoi(row[3])
		if err != nil {
			return nil, fmt.Errorf("decode chunk_count %q: %w", row[3], err)
		}
		result = append(result, Unit{
			ModuleID:      row[0],
			ModuleName:    row[1],
			DocumentCount: docCount,
			ChunkCount:    chunkCount,
		})
	}
	return result, nil
}
