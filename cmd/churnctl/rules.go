package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignite/churn-radar/internal/scoring"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and check rule sets",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "default",
		Short: "Print the built-in rule set as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := scoring.MarshalYAML(scoring.DefaultRuleSet())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Check a rule set file and print its rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := loadRules(args[0])
			if err != nil {
				return err
			}
			for _, r := range rs {
				fmt.Fprintln(cmd.OutOrStdout(), r.String())
			}
			return nil
		},
	})
	return cmd
}
