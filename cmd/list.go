package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/signalnine/skillcheck/internal/cases"
)

var (
	flagListCases      string
	flagListCategories []string
	flagListCaseIDs    []string
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured agents and available cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			if flagListCases != "" {
				cfg.Run.Cases = flagListCases
			}
			fmt.Println("Agents:")
			for _, a := range cfg.Agents {
				fmt.Printf("  - %s (provider: %s)\n", a.Name, a.Provider)
				if len(a.LogDirs) > 0 {
					fmt.Printf("    logs: %s\n", strings.Join(a.LogDirs, ", "))
				}
			}
			all, err := cases.Load(cfg.Run.Cases)
			if err != nil {
				return err
			}
			list := cases.Filter(all, flagListCategories, flagListCaseIDs)
			fmt.Printf("\nCases (%s):\n", cfg.Run.Cases)
			for _, c := range list {
				fmt.Printf("  - %s [%s] expects %s\n", c.ID, c.Category, c.ExpectedSkill)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagListCases, "cases", "", "case file (json or yaml)")
	cmd.Flags().StringSliceVar(&flagListCategories, "category", nil, "filter by category; prefix/* matches a subtree")
	cmd.Flags().StringSliceVar(&flagListCaseIDs, "case-id", nil, "filter by case id")
	return cmd
}
