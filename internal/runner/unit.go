package runner

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/signalnine/skillcheck/internal/config"
	"github.com/signalnine/skillcheck/internal/evidence"
	"github.com/signalnine/skillcheck/internal/logscan"
	"github.com/signalnine/skillcheck/internal/result"
	"github.com/signalnine/skillcheck/internal/shell"
)

// Log fallback outcomes recorded in metrics.
const (
	fallbackPass    = "pass"
	fallbackBlocked = "blocked"
	fallbackMiss    = "miss"
)

type UnitOpts struct {
	Unit     WorkUnit
	Run      config.Run
	Executor Executor
	Registry *evidence.Registry
	// Snapshot is the agent's log state at batch start. Log fallback is
	// attempted only when LogScan is set and Snapshot is non-nil.
	Snapshot *logscan.Snapshot
	LogScan  bool
	Logger   *slog.Logger
	Metrics  *Metrics
}

// RunUnit executes one (case, agent) unit and classifies it. Live output is
// evaluated first; agent logs are consulted only when that fails.
func RunUnit(ctx context.Context, o *UnitOpts) *result.AgentResult {
	start := time.Now()
	u := o.Unit
	reg := o.Registry
	if reg == nil {
		reg = evidence.DefaultRegistry
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	in := result.Input{
		UnitRunID: u.RunID,
		Agent:     u.Agent.Name,
		Provider:  providerOf(u.Agent),
		Case:      &u.Case,
		StartedAt: start,
	}
	template := strings.TrimSpace(u.Agent.Template)
	if template == "" {
		in.TemplateMissing = true
		in.Duration = time.Since(start)
		return result.Classify(in)
	}

	in.Command = shell.Expand(template, u.Case.Prompt)
	in.Outcome = o.Executor.Run(ctx, in.Command, o.Run.Timeout())
	if !in.Outcome.Started || result.IsCommandNotFound(in.Outcome) {
		in.Duration = time.Since(start)
		return result.Classify(in)
	}

	live := reg.Evaluate(in.Outcome.Combined(), &u.Case, evidence.LiveSource(), in.Provider)
	for _, w := range live.Requirements.Warnings {
		logger.Warn("case requirements", "case", u.Case.ID, "agent", u.Agent.Name, "warning", w)
	}
	in.Evaluation = &live
	in.Source = result.SourceCLI

	if !live.Success() && o.LogScan && o.Snapshot != nil {
		fromLogs := searchLogs(o, reg, logger, in.Provider, start)
		merged := evidence.Merge(live, fromLogs)
		in.Evaluation = &merged
		in.Live = &live
		in.Source = result.SourceCLIAndLog
		switch {
		case !merged.Success():
			o.Metrics.logFallback(fallbackMiss)
		case o.Run.FallbackCanPass():
			in.Source = result.SourceLogFallback
			o.Metrics.logFallback(fallbackPass)
		default:
			in.PassBlocked = true
			in.Error = "evidence was found only in agent logs and log_fallback_pass is disabled"
			o.Metrics.logFallback(fallbackBlocked)
		}
	}

	in.Duration = time.Since(start)
	return result.Classify(in)
}

// searchLogs evaluates the log files that changed around the unit's start,
// newest first. The first file that satisfies the case on its own is
// returned; otherwise every file's evaluation is merged.
func searchLogs(o *UnitOpts, reg *evidence.Registry, logger *slog.Logger, provider string, start time.Time) evidence.Evaluation {
	c := &o.Unit.Case
	candidates := o.Snapshot.Candidates(start.Add(-o.Run.Lookback()), o.Run.LogMaxFiles)

	var evals []evidence.Evaluation
	for _, cand := range candidates {
		text, err := o.Snapshot.ReadDelta(cand.Path, o.Run.LogMaxBytes)
		if err != nil {
			logger.Debug("skipping log file", "path", cand.Path, "error", err)
			continue
		}
		ev := reg.Evaluate(text, c, evidence.LogSource(cand.Path), provider)
		if ev.Success() {
			return ev
		}
		evals = append(evals, ev)
	}
	if len(evals) == 0 {
		return reg.Evaluate("", c, evidence.LogSource(""), provider)
	}
	merged := evals[0]
	for _, ev := range evals[1:] {
		merged = evidence.Merge(merged, ev)
	}
	return merged
}

func providerOf(a config.Agent) string {
	if a.Provider != "" {
		return a.Provider
	}
	return a.Name
}
