package schema_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"knot/ragstore/internal/adapter/snowflake"
	"knot/ragstore/internal/config"
	"knot/ragstore/internal/schema"
)

type recordedCall struct {
	statement string
	opts      snowflake.ExecOptions
}

type fakeExecutor struct {
	calls []recordedCall
	// errFor returns an error for a statement, or nil.
	errFor func(statement string) error
}

func (f *fakeExecutor) Execute(_ context.Context, statement string, _ snowflake.Bindings, opts snowflake.ExecOptions) (*snowflake.Response, error) {
	f.calls = append(f.calls, recordedCall{statement: statement, opts: opts})
	if f.errFor != nil {
		if err := f.errFor(statement); err != nil {
			return nil, err
		}
	}
	return &snowflake.Response{}, nil
}

func testConfig() *config.Config {
	return &config.Config{Database: "KNOT", Schema: "RAG"}
}

func TestProvisioner_Ensure_StatementOrder(t *testing.T) {
	exec := &fakeExecutor{}
	p := schema.NewProvisioner(exec, testConfig())

	err := p.Ensure(context.Background())
	assert.NoError(t, err)

	// database, schema, 4 tables, 3 trace columns
	assert.Len(t, exec.calls, 9)

	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS KNOT", exec.calls[0].statement)
	assert.True(t, exec.calls[0].opts.OmitDatabase)
	assert.True(t, exec.calls[0].opts.OmitSchema)

	assert.Equal(t, "CREATE SCHEMA IF NOT EXISTS KNOT.RAG", exec.calls[1].statement)
	assert.False(t, exec.calls[1].opts.OmitDatabase)
	assert.True(t, exec.calls[1].opts.OmitSchema)

	for i, table := range []string{"courses", "modules", "documents", "document_chunks"} {
		stmt := exec.calls[2+i].statement
		assert.Contains(t, stmt, "CREATE TABLE IF NOT EXISTS KNOT.RAG."+table)
	}
	assert.Contains(t, exec.calls[5].statement, "VECTOR(FLOAT, 768)")
	assert.Contains(t, exec.calls[5].statement, "trust_score FLOAT DEFAULT 1.0")

	for i, col := range []string{"document_title", "course_name", "module_name"} {
		assert.Equal(t,
			"ALTER TABLE KNOT.RAG.document_chunks ADD COLUMN "+col+" STRING",
			exec.calls[6+i].statement)
	}
}

func TestProvisioner_Ensure_ColumnAlreadyExists(t *testing.T) {
	exec := &fakeExecutor{
		errFor: func(statement string) error {
			if strings.HasPrefix(statement, "ALTER TABLE") {
				return &snowflake.RemoteError{
					StatusCode: http.StatusUnprocessableEntity,
					Message:    "SQL compilation error: column DOCUMENT_TITLE already exists",
				}
			}
			return nil
		},
	}
	p := schema.NewProvisioner(exec, testConfig())

	err := p.Ensure(context.Background())
	assert.NoError(t, err)
	assert.Len(t, exec.calls, 9)
}

func TestProvisioner_Ensure_ColumnAddFatal(t *testing.T) {
	exec := &fakeExecutor{
		errFor: func(statement string) error {
			if strings.Contains(statement, "ADD COLUMN course_name") {
				return &snowflake.RemoteError{StatusCode: http.StatusForbidden, Message: "insufficient privileges"}
			}
			return nil
		},
	}
	p := schema.NewProvisioner(exec, testConfig())

	err := p.Ensure(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "add column course_name")
}

func TestProvisioner_Ensure_TableCreateFatal(t *testing.T) {
	exec := &fakeExecutor{
		errFor: func(statement string) error {
			if strings.Contains(statement, "documents") && strings.HasPrefix(strings.TrimSpace(statement), "CREATE TABLE") {
				return &snowflake.RemoteError{StatusCode: http.StatusBadRequest, Message: "boom"}
			}
			return nil
		},
	}
	p := schema.NewProvisioner(exec, testConfig())

	err := p.Ensure(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "create table documents")
}

func TestProvisioner_EnsureWithRetry(t *testing.T) {
	attempts := 0
	exec := &fakeExecutor{
		errFor: func(statement string) error {
			if strings.HasPrefix(statement, "CREATE DATABASE") {
				attempts++
				if attempts < 3 {
					return &snowflake.RemoteError{StatusCode: http.StatusServiceUnavailable, Message: "warehouse resuming"}
				}
			}
			return nil
		},
	}
	p := schema.NewProvisioner(exec, testConfig())

	err := p.EnsureWithRetry(context.Background(), 5, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestProvisioner_EnsureWithRetry_Exhausted(t *testing.T) {
	exec := &fakeExecutor{
		errFor: func(statement string) error {
			return &snowflake.RemoteError{StatusCode: http.StatusServiceUnavailable, Message: "down"}
		},
	}
	p := schema.NewProvisioner(exec, testConfig())

	err := p.EnsureWithRetry(context.Background(), 2, time.Millisecond)
	assert.Error(t, err)
}
