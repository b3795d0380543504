package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"knot/ragstore/internal/app"
	"knot/ragstore/internal/config"
	"knot/ragstore/internal/logger"
)

func main() {
	handler := logger.NewContextHandler(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(slog.New(handler))

	root := &cobra.Command{
		Use:          "ragstore",
		Short:        "Course content ingestion and retrieval for the KNOT RAG store",
		Long:         "ragstore provisions the retrieval schema on the warehouse, ingests course documents with pre-computed embeddings, and serves similarity-scored chunk retrieval.",
		SilenceUsage: true,
	}

	root.AddCommand(initCmd())
	root.AddCommand(unitsCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(retrieveCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads configuration, wires dependencies, and mints a run id so
// every log line of this invocation carries the same correlation attribute.
func bootstrap() (context.Context, *app.Dependencies, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	deps, err := app.Bootstrap(cfg)
	if err != nil {
		return nil, nil, err
	}
	ctx := logger.WithRunID(context.Background(), uuid.NewString())
	return ctx, deps, nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Provision the retrieval database, schema, and tables",
		Long:  "Issues idempotent DDL for the retrieval database, schema, and tables. Safe to run repeatedly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, deps, err := bootstrap()
			if err != nil {
				return err
			}
			if err := deps.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
			cmd.Println("Retrieval schema is in place.")
			return nil
		},
	}
}
