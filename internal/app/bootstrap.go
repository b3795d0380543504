package app

import (
	"context"
	"fmt"
	"time"

	"knot/ragstore/features/ingest"
	"knot/ragstore/features/units"
	"knot/ragstore/internal/adapter/snowflake"
	"knot/ragstore/internal/config"
	"knot/ragstore/internal/retrieval"
	"knot/ragstore/internal/schema"
)

// Dependencies is the wired object graph: one statement client shared by the
// provisioner, the ingestion repository, and the read services.
type Dependencies struct {
	Client      *snowflake.Client
	Provisioner *schema.Provisioner
	IngestRepo  *ingest.Repository
	Ingest      *ingest.Service
	Retrieval   *retrieval.Service
	Units       *units.Repository

	cfg *config.Config
}

// New wires the components around an existing client. Split from Bootstrap so
// tests can inject a client pointed at a fake warehouse.
func New(cfg *config.Config, client *snowflake.Client, queryLogger *retrieval.QueryLogger) *Dependencies {
	repo := ingest.NewRepository(client, cfg)
	return &Dependencies{
		Client:      client,
		Provisioner: schema.NewProvisioner(client, cfg),
		IngestRepo:  repo,
		Ingest:      ingest.NewService(repo),
		Retrieval:   retrieval.NewService(client, cfg, queryLogger),
		Units:       units.NewRepository(client, cfg),
		cfg:         cfg,
	}
}

// Bootstrap builds the dependency graph from configuration. It does not
// touch the warehouse; callers that need the schema run EnsureSchema.
func Bootstrap(cfg *config.Config) (*Dependencies, error) {
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		return nil, fmt.Errorf("query logger: %w", err)
	}
	return New(cfg, snowflake.NewClient(cfg), queryLogger), nil
}

// EnsureSchema provisions the retrieval schema with the configured bounded
// retry, for process start against a warehouse that may still be resuming.
func (d *Dependencies) EnsureSchema(ctx context.Context) error {
	delay := time.Duration(d.cfg.BootstrapRetryDelaySeconds) * time.Second
	return d.Provisioner.EnsureWithRetry(ctx, d.cfg.BootstrapRetryAttempts, delay)
}
