package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/signalnine/skillcheck/internal/config"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "skillcheck",
		Short:        "Check that coding agents actually invoke the skills a prompt calls for",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default "+config.DefaultFile+" when present)")
	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newValidateCmd())
	return root
}

// loadConfig resolves configuration in precedence order: file, then the
// dotenv file, then environment overrides. Flags are applied by callers.
func loadConfig(envFile string) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	if envFile == "" {
		envFile = cfg.Secrets.EnvFile
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}
