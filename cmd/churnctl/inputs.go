package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ignite/churn-radar/internal/datanorm"
	"github.com/ignite/churn-radar/internal/pipeline"
	"github.com/ignite/churn-radar/internal/source"
	"github.com/ignite/churn-radar/internal/unify"
)

// addInputFlags registers the flags that locate the three extracts.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("subscription", "", "Subscription (billing) CSV")
	cmd.Flags().String("engagement", "", "Email engagement CSV")
	cmd.Flags().String("support", "", "Support tickets CSV")
	cmd.Flags().String("dir", "", "Directory to discover the three CSVs in, by file name or header")
	cmd.Flags().Bool("normalize-email", false, "Lowercase and trim emails before joining")
	cmd.Flags().StringP("out", "o", "-", "Output CSV path, - for stdout")
	cmd.Flags().String("report", "", "Write the run report as JSON to this path")
}

func inputSet(cmd *cobra.Command) (source.Set, error) {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return source.DiscoverDir(dir, datanorm.NewClassifier())
	}
	sub, _ := cmd.Flags().GetString("subscription")
	eng, _ := cmd.Flags().GetString("engagement")
	sup, _ := cmd.Flags().GetString("support")
	if sub == "" || eng == "" || sup == "" {
		return source.Set{}, fmt.Errorf("--subscription, --engagement and --support are required unless --dir is given")
	}
	return source.Set{
		Subscription: source.FileLoader{Source: datanorm.SourceSubscription, Path: sub},
		Engagement:   source.FileLoader{Source: datanorm.SourceEngagement, Path: eng},
		Support:      source.FileLoader{Source: datanorm.SourceSupport, Path: sup},
	}, nil
}

func newPipeline(cmd *cobra.Command) *pipeline.Service {
	normalize, _ := cmd.Flags().GetBool("normalize-email")
	return pipeline.NewService(pipeline.Options{
		Normalizer: datanorm.NewNormalizer(datanorm.Options{NormalizeEmail: normalize}),
		Unifier:    unify.NewUnifier(unify.DefaultFillPolicy()),
	})
}

// withOutput calls fn with the --out destination.
func withOutput(cmd *cobra.Command, fn func(io.Writer) error) error {
	out, _ := cmd.Flags().GetString("out")
	if out == "-" || out == "" {
		return fn(cmd.OutOrStdout())
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(cmd *cobra.Command, flag string, v any) error {
	path, _ := cmd.Flags().GetString(flag)
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func printReport(cmd *cobra.Command, r *pipeline.Report) {
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "batch %s: %d profiles (%d active, %d churned), %d rows skipped\n",
		r.BatchID, r.Profiles, r.Active, r.Churned, r.SkippedRows)
	for _, src := range datanorm.Sources {
		s := r.Sources[src]
		fmt.Fprintf(w, "  %-12s rows=%d skipped=%d duplicates=%d\n", src, s.Rows, s.Skipped, s.Duplicates)
	}
	for status, n := range r.Join.UnrecognizedStatuses {
		fmt.Fprintf(w, "  warning: %d rows with unrecognized status %q labelled Active\n", n, status)
	}
}
