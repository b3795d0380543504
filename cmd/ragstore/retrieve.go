package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"knot/ragstore/internal/retrieval"
	"knot/ragstore/internal/vector"
)

func retrieveCmd() *cobra.Command {
	var (
		courseID      string
		embeddingFile string
		topK          int
		threshold     float64
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Retrieve the most similar chunks of a course",
		Long: `Runs a similarity-scored retrieval over one course's chunks using a
pre-computed query embedding read from a JSON array file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(embeddingFile) // #nosec G304 -- path comes from the operator's own flag
			if err != nil {
				return fmt.Errorf("read embedding: %w", err)
			}
			query, err := vector.ParseJSON(string(raw))
			if err != nil {
				return err
			}

			ctx, deps, err := bootstrap()
			if err != nil {
				return err
			}

			opts := &retrieval.Options{TopK: &topK, Threshold: &threshold}
			chunks, err := deps.Retrieval.RetrieveChunks(ctx, courseID, query, opts)
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(chunks, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal chunks: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}

			renderChunks(cmd.OutOrStdout(), chunks)
			return nil
		},
	}

	cmd.Flags().StringVar(&courseID, "course-id", "", "course identifier")
	cmd.Flags().StringVar(&embeddingFile, "embedding-file", "", "path to a JSON array query embedding")
	cmd.Flags().IntVar(&topK, "top-k", retrieval.DefaultTopK, "maximum number of results")
	cmd.Flags().Float64Var(&threshold, "threshold", retrieval.DefaultThreshold, "minimum similarity score")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output raw JSON")
	cmd.MarkFlagRequired("course-id")
	cmd.MarkFlagRequired("embedding-file")
	return cmd
}

func renderChunks(w io.Writer, chunks []retrieval.Chunk) {
	if len(chunks) == 0 {
		fmt.Fprintln(w, "No chunks cleared the threshold.")
		return
	}

	for i, c := range chunks {
		title := c.DocumentTitle
		if title == "" {
			title = c.DocumentID
		}
		fmt.Fprintf(w, "  [%d] %s (%.3f)\n", i+1, title, c.Score)
		fmt.Fprintf(w, "      %s / %s\n", c.CourseName, c.ModuleName)
		fmt.Fprintf(w, "      %s\n", snippet(c.Text, 200))
	}

	if len(chunks) < retrieval.MinUsefulResults {
		fmt.Fprintf(w, "\nOnly %d chunk(s) cleared the threshold; the retrieval is likely not useful for generation.\n", len(chunks))
	}
}

func snippet(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
