package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"knot/ragstore/internal/adapter/snowflake"
	"knot/ragstore/internal/config"
)

// Executor is the statement submission surface the provisioner needs.
type Executor interface {
	Execute(ctx context.Context, statement string, bindings snowflake.Bindings, opts snowflake.ExecOptions) (*snowflake.Response, error)
}

// Provisioner issues idempotent DDL for the retrieval database, schema, and
// tables. Safe to run on every process start.
type Provisioner struct {
	exec Executor
	cfg  *config.Config
}

func NewProvisioner(exec Executor, cfg *config.Config) *Provisioner {
	return &Provisioner{exec: exec, cfg: cfg}
}

// Ensure creates the database, the retrieval schema, and the four tables if
// they do not exist, then adds the chunk trace columns to tables created
// under the pre-trace shape.
func (p *Provisioner) Ensure(ctx context.Context) error {
	ddlOpts := snowflake.ExecOptions{TimeoutSecs: 60}

	// The database and schema cannot be part of the request scope before
	// they exist.
	_, err := p.exec.Execute(ctx, "CREATE DATABASE IF NOT EXISTS "+p.cfg.Database, nil,
		snowflake.ExecOptions{TimeoutSecs: 60, OmitDatabase: true, OmitSchema: true})
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}

	_, err = p.exec.Execute(ctx,
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s.%s", p.cfg.Database, p.cfg.Schema), nil,
		snowflake.ExecOptions{TimeoutSecs: 60, OmitSchema: true})
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tables := []struct {
		name string
		ddl  string
	}{
		{"courses", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				course_id STRING PRIMARY KEY,
				course_name STRING,
				created_at TIMESTAMP_NTZ DEFAULT CURRENT_TIMESTAMP()
			)`, p.cfg.Qualify("courses"))},
		{"modules", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				module_id STRING PRIMARY KEY,
				course_id STRING,
				module_name STRING,
				created_at TIMESTAMP_NTZ DEFAULT CURRENT_TIMESTAMP()
			)`, p.cfg.Qualify("modules"))},
		{"documents", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				document_id STRING PRIMARY KEY,
				course_id STRING,
				module_id STRING,
				document_type STRING,
				title STRING,
				raw_text STRING,
				created_at TIMESTAMP_NTZ DEFAULT CURRENT_TIMESTAMP(),
				updated_at TIMESTAMP_NTZ
			)`, p.cfg.Qualify("documents"))},
		{"document_chunks", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				chunk_id STRING PRIMARY KEY,
				document_id STRING,
				course_id STRING,
				module_id STRING,
				text STRING,
				embedding VECTOR(FLOAT, 768),
				trust_score FLOAT DEFAULT 1.0,
				created_at TIMESTAMP_NTZ DEFAULT CURRENT_TIMESTAMP(),
				updated_at TIMESTAMP_NTZ,
				document_title STRING,
				course_name STRING,
				module_name STRING
			)`, p.cfg.Qualify("document_chunks"))},
	}
	for _, tbl := range tables {
		if _, err := p.exec.Execute(ctx, tbl.ddl, nil, ddlOpts); err != nil {
			return fmt.Errorf("create table %s: %w", tbl.name, err)
		}
	}

	return p.addChunkTraceColumns(ctx)
}

// addChunkTraceColumns upgrades a document_chunks table created before the
// human-readable provenance columns existed. The statement endpoint exposes
// no structured error code for a duplicate column, so classification falls
// back to matching the server message.
func (p *Provisioner) addChunkTraceColumns(ctx context.Context) error {
	for _, col := range []string{"document_title", "course_name", "module_name"} {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s STRING", p.cfg.Qualify("document_chunks"), col)
		if _, err := p.exec.Execute(ctx, stmt, nil, snowflake.ExecOptions{}); err != nil {
			if isAlreadyExists(err) {
				continue
			}
			return fmt.Errorf("add column %s: %w", col, err)
		}
	}
	return nil
}

func isAlreadyExists(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// EnsureWithRetry runs Ensure with a bounded retry, for process start against
// a warehouse that may still be resuming.
func (p *Provisioner) EnsureWithRetry(ctx context.Context, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = p.Ensure(ctx); err == nil {
			return nil
		}
		slog.WarnContext(ctx, "failed to ensure schema, retrying...", "attempt", i+1, "error", err)
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
