package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"knot/ragstore/features/units"
)

func unitsCmd() *cobra.Command {
	var courseID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "units",
		Short: "List a course's units with document and chunk counts",
		Long: `Lists the course's units (modules) with human-readable names and
document/chunk counts. Use this to verify the course breakdown after an
ingestion run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, deps, err := bootstrap()
			if err != nil {
				return err
			}

			rows, err := deps.Units.List(ctx, courseID)
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(rows, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal units: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}

			renderUnits(cmd.OutOrStdout(), courseID, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&courseID, "course-id", "", "course identifier")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output raw JSON")
	cmd.MarkFlagRequired("course-id")
	return cmd
}

func renderUnits(w io.Writer, courseID string, rows []units.Unit) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No units found for this course. Run `ragstore ingest` first.")
		return
	}

	fmt.Fprintf(w, "Course %s - %d unit(s)\n\n", courseID, len(rows))
	for _, u := range rows {
		name := strings.TrimSpace(u.ModuleName)
		if name == "" {
			name = u.ModuleID
		}
		fmt.Fprintf(w, "  %s: %s\n", u.ModuleID, name)
		fmt.Fprintf(w, "    documents: %d, chunks: %d\n", u.DocumentCount, u.ChunkCount)
	}
}
