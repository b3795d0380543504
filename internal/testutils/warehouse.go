package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"knot/ragstore/internal/vector"
)

// Warehouse is an in-memory stand-in for the remote statement endpoint. It
// understands exactly the statement shapes this system issues (DDL, MERGE
// upserts, chunk delete/insert, similarity retrieval, unit summary) and
// answers every POST inline, so tests exercise real warehouse semantics
// without a network dependency.
type Warehouse struct {
	mu sync.Mutex

	Courses   map[string]CourseRow
	Modules   map[string]ModuleRow
	Documents map[string]DocumentRow
	Chunks    []ChunkRow

	// DDL records every CREATE/ALTER statement received.
	DDL []string
	// AlterErrs maps a column name to an error message returned (with HTTP
	// 422) for its ALTER TABLE ADD COLUMN statement.
	AlterErrs map[string]string

	srv *httptest.Server
}

type CourseRow struct {
	ID, Name string
}

type ModuleRow struct {
	ID, CourseID, Name string
}

type DocumentRow struct {
	ID, CourseID, ModuleID, Type, Title, RawText string
}

type ChunkRow struct {
	ID            string
	DocumentID    string
	CourseID      string
	ModuleID      string
	Text          string
	Embedding     vector.Embedding
	DocumentTitle string
	CourseName    string
	ModuleName    string
}

func NewWarehouse(t *testing.T) *Warehouse {
	w := &Warehouse{
		Courses:   make(map[string]CourseRow),
		Modules:   make(map[string]ModuleRow),
		Documents: make(map[string]DocumentRow),
		AlterErrs: make(map[string]string),
	}
	w.srv = httptest.NewServer(http.HandlerFunc(w.handle))
	t.Cleanup(w.srv.Close)
	return w
}

func (w *Warehouse) URL() string {
	return w.srv.URL
}

type statementRequest struct {
	Statement string `json:"statement"`
	Bindings  map[string]struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"bindings"`
}

// bindValues returns binding values ordered by their 1-based position keys.
func (r *statementRequest) bindValues() []string {
	keys := make([]int, 0, len(r.Bindings))
	for k := range r.Bindings {
		n, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		keys = append(keys, n)
	}
	sort.Ints(keys)
	vals := make([]string, 0, len(keys))
	for _, k := range keys {
		vals = append(vals, r.Bindings[strconv.Itoa(k)].Value)
	}
	return vals
}

func (w *Warehouse) handle(rw http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(rw, `{"message":"not found"}`, http.StatusNotFound)
		return
	}

	var sr statementRequest
	if err := json.NewDecoder(req.Body).Decode(&sr); err != nil {
		http.Error(rw, `{"message":"bad request"}`, http.StatusBadRequest)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	stmt := strings.TrimSpace(sr.Statement)
	vals := sr.bindValues()

	var rows [][]string
	switch {
	case strings.HasPrefix(stmt, "CREATE "):
		w.DDL = append(w.DDL, stmt)

	case strings.HasPrefix(stmt, "ALTER TABLE"):
		w.DDL = append(w.DDL, stmt)
		for col, msg := range w.AlterErrs {
			if strings.Contains(stmt, "ADD COLUMN "+col) {
				rw.WriteHeader(http.StatusUnprocessableEntity)
				json.NewEncoder(rw).Encode(map[string]string{"message": msg})
				return
			}
		}

	case strings.HasPrefix(stmt, "MERGE INTO") && strings.Contains(stmt, ".courses"):
		w.Courses[vals[0]] = CourseRow{ID: vals[0], Name: vals[1]}

	case strings.HasPrefix(stmt, "MERGE INTO") && strings.Contains(stmt, ".modules"):
		w.Modules[vals[0]] = ModuleRow{ID: vals[0], CourseID: vals[1], Name: vals[2]}

	case strings.HasPrefix(stmt, "MERGE INTO") && strings.Contains(stmt, ".documents"):
		prev, existed := w.Documents[vals[0]]
		doc := DocumentRow{ID: vals[0], CourseID: vals[1], ModuleID: vals[2], Type: vals[3], Title: vals[4], RawText: vals[5]}
		if existed {
			// Only the mutable fields change on re-ingestion.
			doc.CourseID = prev.CourseID
			doc.Type = prev.Type
		}
		w.Documents[vals[0]] = doc

	case strings.HasPrefix(stmt, "DELETE FROM"):
		kept := w.Chunks[:0]
		for _, c := range w.Chunks {
			if c.DocumentID != vals[0] {
				kept = append(kept, c)
			}
		}
		w.Chunks = kept

	case strings.HasPrefix(stmt, "INSERT INTO") && strings.Contains(stmt, "document_chunks"):
		emb, err := vector.ParseJSON(vals[5])
		if err != nil {
			rw.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(rw).Encode(map[string]string{"message": "invalid vector literal"})
			return
		}
		w.Chunks = append(w.Chunks, ChunkRow{
			ID: vals[0], DocumentID: vals[1], CourseID: vals[2], ModuleID: vals[3], Text: vals[4],
			Embedding: emb, DocumentTitle: vals[6], CourseName: vals[7], ModuleName: vals[8],
		})

	case strings.Contains(stmt, "VECTOR_COSINE_SIMILARITY"):
		rows = w.retrieve(stmt, vals)

	case strings.Contains(stmt, "COUNT(DISTINCT"):
		rows = w.listUnits(vals[0])

	default:
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"message": "unrecognized statement: " + stmt})
		return
	}

	if rows == nil {
		rows = [][]string{}
	}
	json.NewEncoder(rw).Encode(map[string]interface{}{"data": rows})
}

var (
	thresholdRe = regexp.MustCompile(`score >= ([0-9.eE+-]+)`)
	limitRe     = regexp.MustCompile(`LIMIT (\d+)`)
)

func (w *Warehouse) retrieve(stmt string, vals []string) [][]string {
	query, err := vector.ParseJSON(vals[0])
	if err != nil {
		return [][]string{}
	}
	courseID := vals[1]

	threshold := 0.0
	if m := thresholdRe.FindStringSubmatch(stmt); m != nil {
		threshold, _ = strconv.ParseFloat(m[1], 64)
	}
	limit := len(w.Chunks)
	if m := limitRe.FindStringSubmatch(stmt); m != nil {
		limit, _ = strconv.Atoi(m[1])
	}

	type scored struct {
		row   ChunkRow
		score float64
	}
	var matches []scored
	for _, c := range w.Chunks {
		if c.CourseID != courseID {
			continue
		}
		score := vector.Cosine(c.Embedding, query)
		if score >= threshold {
			matches = append(matches, scored{row: c, score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if len(matches) > limit {
		matches = matches[:limit]
	}

	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []string{
			m.row.ID, m.row.DocumentID, m.row.CourseID, m.row.ModuleID, m.row.Text,
			m.row.DocumentTitle, m.row.CourseName, m.row.ModuleName,
			strconv.FormatFloat(m.score, 'f', -1, 64),
		})
	}
	return rows
}

func (w *Warehouse) listUnits(courseID string) [][]string {
	var moduleIDs []string
	for id, m := range w.Modules {
		if m.CourseID == courseID {
			moduleIDs = append(moduleIDs, id)
		}
	}
	sort.Strings(moduleIDs)

	rows := make([][]string, 0, len(moduleIDs))
	for _, id := range moduleIDs {
		m := w.Modules[id]
		docCount := 0
		chunkCount := 0
		for _, d := range w.Documents {
			if d.CourseID != m.CourseID || d.ModuleID != m.ID {
				continue
			}
			docCount++
			for _, c := range w.Chunks {
				if c.DocumentID == d.ID {
					chunkCount++
				}
			}
		}
		rows = append(rows, []string{m.ID, m.Name, strconv.Itoa(docCount), strconv.Itoa(chunkCount)})
	}
	return rows
}
