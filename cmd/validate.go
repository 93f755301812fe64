package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/signalnine/skillcheck/internal/cases"
	"github.com/signalnine/skillcheck/internal/config"
	"github.com/signalnine/skillcheck/internal/evidence"
)

var (
	flagValidateVerbose bool
	flagValidateStrict  bool
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [cases-file]",
		Short: "Check a case file and show the evidence each agent will need",
		Long:  "Load the case file, build the evidence requirements for every case and agent, and report tier conflicts between case fields.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Run.Cases = args[0]
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid settings: %w", err)
			}
			list, err := cases.Load(cfg.Run.Cases)
			if err != nil {
				return err
			}
			warnings := lintCases(list, cfg.Agents, evidence.DefaultRegistry, os.Stdout, flagValidateVerbose)
			fmt.Printf("%d cases, %d agents, %d warnings\n", len(list), len(cfg.Agents), warnings)
			if flagValidateStrict && warnings > 0 {
				return fmt.Errorf("%d requirement warnings", warnings)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&flagValidateVerbose, "verbose", "v", false, "print every requirement")
	cmd.Flags().BoolVar(&flagValidateStrict, "strict", false, "fail when any case has requirement warnings")
	return cmd
}

// lintCases builds requirements for every (case, agent) pair, writes their
// warnings to w and returns how many there were.
func lintCases(list []cases.Case, agents []config.Agent, reg *evidence.Registry, w io.Writer, verbose bool) int {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if verbose {
		fmt.Fprintln(tw, "CASE\tAGENT\tLIST\tTOKEN\tTIER\tORIGIN")
	}
	warnings := 0
	for i := range list {
		c := &list[i]
		for _, a := range agents {
			reqs := evidence.BuildRequirements(c, reg.Lookup(a.Provider))
			for _, msg := range reqs.Warnings {
				fmt.Fprintf(tw, "warning: %s/%s: %s\n", c.ID, a.Name, msg)
				warnings++
			}
			if !verbose {
				continue
			}
			for _, r := range reqs.All {
				fmt.Fprintf(tw, "%s\t%s\tall\t%s\t%d\t%s\n", c.ID, a.Name, r.Token, r.Floor, r.Origin)
			}
			for _, token := range reqs.Any {
				fmt.Fprintf(tw, "%s\t%s\tany\t%s\t-\t-\n", c.ID, a.Name, token)
			}
		}
	}
	tw.Flush()
	return warnings
}
