package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ignite/churn-radar/internal/domain"
	"github.com/ignite/churn-radar/internal/export"
	"github.com/ignite/churn-radar/internal/scoring"
)

func loadRules(path string) (scoring.RuleSet, error) {
	if path == "" {
		return scoring.DefaultRuleSet(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return scoring.ParseRuleSet(data)
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Unify the extracts and score churn risk",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rulesPath, _ := cmd.Flags().GetString("rules")
			activeOnly, _ := cmd.Flags().GetBool("active-only")
			segments, _ := cmd.Flags().GetBool("segments")

			rs, err := loadRules(rulesPath)
			if err != nil {
				return fmt.Errorf("rules: %w", err)
			}
			set, err := inputSet(cmd)
			if err != nil {
				return err
			}

			svc := newPipeline(cmd)
			snap, report, err := svc.LoadAndUnify(cmd.Context(), set)
			if err != nil {
				return err
			}
			printReport(cmd, report)
			res, err := svc.Score(cmd.Context(), snap.BatchID, rs)
			if err != nil {
				return err
			}
			printSummary(cmd, res.Summary)
			if err := writeJSON(cmd, "report", map[string]any{"unify": report, "score": res}); err != nil {
				return err
			}

			return withOutput(cmd, func(w io.Writer) error {
				if segments {
					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")
					return enc.Encode(res.ActiveSegments())
				}
				return export.WriteScoredCSV(w, res.Scored, export.ScoredOptions{ActiveOnly: activeOnly})
			})
		},
	}
	addInputFlags(cmd)
	cmd.Flags().String("rules", "", "Rule set file (YAML or JSON); defaults to the built-in rules")
	cmd.Flags().Bool("active-only", false, "Export only Active profiles with the downstream columns")
	cmd.Flags().Bool("segments", false, "Write active email and segment pairs as JSON instead of CSV")
	return cmd
}

func printSummary(cmd *cobra.Command, s scoring.Summary) {
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "active profiles scored: %d (mean %.3f, min %.3f, max %.3f)\n", s.Count, s.Mean, s.Min, s.Max)
	for _, seg := range []domain.RiskSegment{domain.RiskHigh, domain.RiskModerate, domain.RiskLow} {
		fmt.Fprintf(w, "  %-14s %d\n", seg, s.Segments[seg])
	}
}
