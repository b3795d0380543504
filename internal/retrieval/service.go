package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"knot/ragstore/internal/adapter/snowflake"
	"knot/ragstore/internal/config"
	"knot/ragstore/internal/vector"
)

const (
	DefaultTopK      = 8
	DefaultThreshold = 0.25

	// MinUsefulResults is the smallest result count generally worth feeding
	// to downstream generation; fewer likely means the retrieval is not
	// useful. Not enforced here — sparse-result handling is the caller's
	// decision.
	MinUsefulResults = 2
)

// Chunk is one ranked retrieval result with denormalized provenance.
type Chunk struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	CourseID      string  `json:"course_id"`
	ModuleID      string  `json:"module_id"`
	Text          string  `json:"text"`
	DocumentTitle string  `json:"document_title"`
	CourseName    string  `json:"course_name"`
	ModuleName    string  `json:"module_name"`
	Score         float64 `json:"score"`
}

// Options overrides the retrieval defaults per call.
type Options struct {
	TopK      *int
	Threshold *float64
}

// Fetcher is the row-resolving statement surface the service needs.
type Fetcher interface {
	ExecuteAndFetch(ctx context.Context, statement string, bindings snowflake.Bindings) ([][]string, error)
}

// Service runs similarity-scored chunk retrieval constrained to one course.
// Scoring happens server-side via VECTOR_COSINE_SIMILARITY.
type Service struct {
	fetch  Fetcher
	cfg    *config.Config
	logger *QueryLogger
}

func NewService(fetch Fetcher, cfg *config.Config, logger *QueryLogger) *Service {
	return &Service{fetch: fetch, cfg: cfg, logger: logger}
}

// RetrieveChunks returns at most topK chunks of the course whose cosine
// similarity to the query embedding clears the threshold, ordered by
// descending score.
func (s *Service) RetrieveChunks(ctx context.Context, courseID string, query vector.Embedding, opts *Options) ([]Chunk, error) {
	start := time.Now()

	topK := DefaultTopK
	threshold := DefaultThreshold
	if opts != nil {
		if opts.TopK != nil {
			topK = *opts.TopK
		}
		if opts.Threshold != nil {
			threshold = *opts.Threshold
		}
	}

	embedding, err := query.EncodeJSON()
	if err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf(`
	SELECT * FROM (
		SELECT chunk_id, document_id, course_id, module_id, text,
			COALESCE(document_title, '') AS document_title,
			COALESCE(course_name, '') AS course_name,
			COALESCE(module_name, '') AS module_name,
			VECTOR_COSINE_SIMILARITY(embedding, PARSE_JSON(?)::VECTOR(FLOAT, 768)) AS score
		FROM %s
		WHERE course_id = ?
	) WHERE score >= %s
	ORDER BY score DESC
	LIMIT %d`,
		s.cfg.Qualify("document_chunks"),
		strconv.FormatFloat(threshold, 'f', -1, 64),
		topK)

	rows, err := s.fetch.ExecuteAndFetch(ctx, stmt, snowflake.Text(embedding, courseID))
	if err != nil {
		return nil, fmt.Errorf("retrieve chunks for course %s: %w", courseID, err)
	}

	chunks := make([]Chunk, 0, len(rows))
	for _, row := range rows {
		if len(row) < 9 {
			continue
		}
		score, err := strconv.ParseFloat(row[8], 64)
		if err != nil {
			return nil, fmt.Errorf("decode score %q: %w", row[8], err)
		}
		chunks = append(chunks, Chunk{
			ChunkID:       row[0],
			DocumentID:    row[1],
			CourseID:      row[2],
			ModuleID:      row[3],
			Text:          row[4],
			DocumentTitle: row[5],
			CourseName:    row[6],
			ModuleName:    row[7],
			Score:         score,
		})
	}

	if s.logger != nil {
		s.logger.Log(ctx, QueryLogEntry{
			CourseID:   courseID,
			TopK:       topK,
			Threshold:  threshold,
			NumResults: len(chunks),
			Duration:   time.Since(start),
		})
	}
	return chunks, nil
}
