package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/ignite/churn-radar/internal/export"
)

func unifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unify",
		Short: "Join the three extracts into one profile per email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := inputSet(cmd)
			if err != nil {
				return err
			}
			snap, report, err := newPipeline(cmd).LoadAndUnify(cmd.Context(), set)
			if err != nil {
				return err
			}
			printReport(cmd, report)
			if err := writeJSON(cmd, "report", report); err != nil {
				return err
			}
			return withOutput(cmd, func(w io.Writer) error {
				return export.WriteUnifiedCSV(w, snap.Profiles)
			})
		},
	}
	addInputFlags(cmd)
	return cmd
}
