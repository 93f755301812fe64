package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/signalnine/skillcheck/internal/report"
)

var flagFormat string

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [results.json|batch-dir]",
		Short: "Summarise a stored batch per agent",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			batchDir := filepath.Join(cfg.Run.ArtifactsRoot, "latest")
			if len(args) > 0 {
				batchDir = args[0]
			}
			resolved, err := filepath.EvalSymlinks(batchDir)
			if err != nil {
				return fmt.Errorf("resolving batch dir: %w", err)
			}
			return report.Generate(resolved, flagFormat, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	return cmd
}
