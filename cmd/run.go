package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/signalnine/skillcheck/internal/cases"
	"github.com/signalnine/skillcheck/internal/config"
	"github.com/signalnine/skillcheck/internal/result"
	"github.com/signalnine/skillcheck/internal/runner"
	"github.com/signalnine/skillcheck/internal/shell"
)

// ErrBatchFailed is returned when a batch finished but did not meet the exit
// contract.
var ErrBatchFailed = errors.New("batch failed")

var (
	flagCases          string
	flagAgents         []string
	flagCategories     []string
	flagCaseIDs        []string
	flagTimeoutSeconds int
	flagMaxParallel    int
	flagLogMaxFiles    int
	flagLogMaxBytes    int64
	flagEnableLogScan  bool
	flagDisableLogScan bool
	flagNoProgress     bool
	flagOutput         string
	flagProofLog       string
	flagArtifactsRoot  string
	flagFailOnInfra    bool
	flagMetricsFile    string
	flagEnvFile        string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every selected case against every selected agent",
		Args:  cobra.NoArgs,
		RunE:  runSkillCheck,
	}
	f := cmd.Flags()
	f.StringVar(&flagCases, "cases", "", "case file (json or yaml)")
	f.StringSliceVar(&flagAgents, "agents", nil, "agents to run (default all configured)")
	f.StringSliceVar(&flagCategories, "category", nil, "filter by category; prefix/* matches a subtree")
	f.StringSliceVar(&flagCaseIDs, "case-id", nil, "filter by case id")
	f.IntVar(&flagTimeoutSeconds, "timeout-seconds", 0, "per-unit timeout")
	f.IntVar(&flagMaxParallel, "max-parallel", 0, "max concurrent agent processes")
	f.IntVar(&flagLogMaxFiles, "log-max-files", 0, "max log files examined per unit")
	f.Int64Var(&flagLogMaxBytes, "log-max-bytes", 0, "max bytes read per log file")
	f.BoolVar(&flagEnableLogScan, "enable-log-scan", false, "always consult agent logs when live output lacks evidence")
	f.BoolVar(&flagDisableLogScan, "disable-log-scan", false, "never consult agent logs")
	f.BoolVar(&flagNoProgress, "no-progress", false, "suppress progress lines on stderr")
	f.StringVar(&flagOutput, "output", "", "write an extra copy of results.json here")
	f.StringVar(&flagProofLog, "proof-log", "", "write an extra copy of the proof log here (default <output>.proof.log)")
	f.StringVar(&flagArtifactsRoot, "artifacts-root", "", "directory that receives one folder per batch")
	f.BoolVar(&flagFailOnInfra, "fail-on-infra", false, "exit non-zero when any unit hits an infrastructure error")
	f.StringVar(&flagMetricsFile, "metrics-file", "", "write prometheus metrics in text format here")
	f.StringVar(&flagEnvFile, "env-file", "", "dotenv file loaded before resolving agent overrides")
	cmd.MarkFlagsMutuallyExclusive("enable-log-scan", "disable-log-scan")
	return cmd
}

// applyRunFlags overrides configuration with flags the user set explicitly.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	r := &cfg.Run
	if f.Changed("cases") {
		r.Cases = flagCases
	}
	if f.Changed("artifacts-root") {
		r.ArtifactsRoot = flagArtifactsRoot
	}
	if f.Changed("timeout-seconds") {
		r.TimeoutSeconds = flagTimeoutSeconds
	}
	if f.Changed("max-parallel") {
		r.MaxParallel = flagMaxParallel
	}
	if f.Changed("log-max-files") {
		r.LogMaxFiles = flagLogMaxFiles
	}
	if f.Changed("log-max-bytes") {
		r.LogMaxBytes = flagLogMaxBytes
	}
	if flagEnableLogScan {
		r.LogScan = config.LogScanOn
	}
	if flagDisableLogScan {
		r.LogScan = config.LogScanOff
	}
	if f.Changed("fail-on-infra") {
		r.FailOnInfra = flagFailOnInfra
	}
}

func runSkillCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(flagEnvFile)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	agents, err := cfg.SelectAgents(flagAgents)
	if err != nil {
		return err
	}

	batchID := uuid.NewString()
	batchDir, err := result.CreateBatchDir(cfg.Run.ArtifactsRoot, batchID)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "ARTIFACT_DIR=%s\n", batchDir)

	all, err := cases.Load(cfg.Run.Cases)
	if err != nil {
		return err
	}
	selected := cases.Filter(all, flagCategories, flagCaseIDs)
	if len(selected) == 0 {
		return fmt.Errorf("no cases in %s match the filters", cfg.Run.Cases)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	var metrics *runner.Metrics
	if flagMetricsFile != "" {
		metrics = runner.NewMetrics()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	batch, runErr := runner.RunBatch(ctx, &runner.BatchOpts{
		ID:       batchID,
		Cases:    selected,
		Agents:   agents,
		Run:      cfg.Run,
		Executor: shell.DefaultRunner(),
		Progress: runner.NewProgress(os.Stderr, !flagNoProgress),
		Metrics:  metrics,
		Logger:   logger,
	})

	env := &result.Envelope{
		BatchRunID:     batchID,
		GeneratedAtUTC: time.Now().UTC(),
		Summary:        batch.Summary,
		Options:        batchOptions(cfg, agents, batch),
		Results:        batch.Results,
	}
	if err := writeArtifacts(batchDir, env); err != nil {
		return err
	}
	if metrics != nil {
		if err := metrics.WriteFile(flagMetricsFile); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	return exitStatus(batch.Summary, cfg.Run.FailOnInfra)
}

// writeArtifacts prints the envelope to stdout and writes results.json and
// the proof log into the batch directory, plus any requested extra copies.
func writeArtifacts(batchDir string, env *result.Envelope) error {
	data, err := result.MarshalEnvelope(env)
	if err != nil {
		return err
	}
	os.Stdout.Write(data)

	resultsPath := filepath.Join(batchDir, result.ResultsFile)
	if err := result.WriteEnvelope(resultsPath, env); err != nil {
		return err
	}
	proofPath := filepath.Join(batchDir, result.ProofLogFile)
	if err := result.WriteProofLogFile(proofPath, env.BatchRunID, env.GeneratedAtUTC, env.Results); err != nil {
		return err
	}
	if flagOutput != "" && !result.SamePath(flagOutput, resultsPath) {
		if err := result.WriteEnvelope(flagOutput, env); err != nil {
			return err
		}
	}
	if extra := extraProofLogPath(flagProofLog, flagOutput); extra != "" && !result.SamePath(extra, proofPath) {
		if err := result.WriteProofLogFile(extra, env.BatchRunID, env.GeneratedAtUTC, env.Results); err != nil {
			return err
		}
	}
	return nil
}

// extraProofLogPath is --proof-log when given, else <output>.proof.log when
// --output is given.
func extraProofLogPath(proofLog, output string) string {
	switch {
	case proofLog != "":
		return proofLog
	case output != "":
		return output + ".proof.log"
	}
	return ""
}

func batchOptions(cfg *config.Config, agents []config.Agent, batch *runner.Batch) result.Options {
	names := make([]string, len(agents))
	for i, a := range agents {
		names[i] = a.Name
	}
	return result.Options{
		Cases:           cfg.Run.Cases,
		Agents:          names,
		Categories:      sortedCopy(flagCategories),
		CaseIDs:         sortedCopy(flagCaseIDs),
		TimeoutSeconds:  cfg.Run.TimeoutSeconds,
		MaxParallel:     batch.MaxParallel,
		LogScan:         batch.LogScan,
		LogMaxFiles:     cfg.Run.LogMaxFiles,
		LogMaxBytes:     cfg.Run.LogMaxBytes,
		LogFallbackPass: cfg.Run.FallbackCanPass(),
		FailOnInfra:     cfg.Run.FailOnInfra,
		Progress:        !flagNoProgress,
		ArtifactsRoot:   cfg.Run.ArtifactsRoot,
	}
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}

// exitStatus applies the exit contract: any failed unit fails the batch, and
// infrastructure errors do too when failOnInfra is set.
func exitStatus(s result.Summary, failOnInfra bool) error {
	if s.Fail > 0 || (failOnInfra && s.InfraError > 0) {
		return fmt.Errorf("%w: %d of %d units failed, %d infra errors", ErrBatchFailed, s.Fail, s.Total, s.InfraError)
	}
	return nil
}
