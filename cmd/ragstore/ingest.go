package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"knot/ragstore/features/ingest"
)

// ingestPayload is one document's ingestion input: metadata plus its
// pre-embedded chunk set, as produced by the external chunking/embedding
// pipeline.
type ingestPayload struct {
	Course   ingest.Course       `json:"course"`
	Module   ingest.Module       `json:"module"`
	Document ingest.Document     `json:"document"`
	Chunks   []ingest.ChunkInput `json:"chunks"`
}

func ingestCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a document and its pre-embedded chunks",
		Long: `Reads a JSON payload (course, module, document, chunks with embeddings),
ensures the retrieval schema exists, upserts the metadata, and replaces the
document's chunk set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file) // #nosec G304 -- path comes from the operator's own flag
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			var payload ingestPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("decode payload: %w", err)
			}

			ctx, deps, err := bootstrap()
			if err != nil {
				return err
			}
			if err := deps.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}

			if err := deps.Ingest.IngestDocument(ctx, payload.Course, payload.Module, payload.Document, payload.Chunks); err != nil {
				return err
			}

			cmd.Printf("Ingested document %s (%d chunks) into course %s\n",
				payload.Document.ID, len(payload.Chunks), payload.Course.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to the JSON ingestion payload")
	cmd.MarkFlagRequired("file")
	return cmd
}
