package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/signalnine/skillcheck/internal/cases"
	"github.com/signalnine/skillcheck/internal/config"
	"github.com/signalnine/skillcheck/internal/evidence"
	"github.com/signalnine/skillcheck/internal/logscan"
	"github.com/signalnine/skillcheck/internal/result"
	"github.com/signalnine/skillcheck/internal/shell"
)

// Executor runs one shell command under a timeout. *shell.Runner is the
// production implementation.
type Executor interface {
	Run(ctx context.Context, command string, timeout time.Duration) shell.Outcome
}

// WorkUnit is one scheduled (case, agent) execution. Index is its position
// in the run matrix and in the batch results.
type WorkUnit struct {
	Index int
	RunID string
	Case  cases.Case
	Agent config.Agent
}

// BuildMatrix lays out units case-major: every agent for the first case,
// then every agent for the second, and so on.
func BuildMatrix(list []cases.Case, agents []config.Agent) []WorkUnit {
	units := make([]WorkUnit, 0, len(list)*len(agents))
	for _, c := range list {
		for _, a := range agents {
			units = append(units, WorkUnit{
				Index: len(units),
				RunID: uuid.NewString(),
				Case:  c,
				Agent: a,
			})
		}
	}
	return units
}

type BatchOpts struct {
	ID       string
	Cases    []cases.Case
	Agents   []config.Agent
	Run      config.Run
	Executor Executor
	Registry *evidence.Registry
	Progress *Progress
	Metrics  *Metrics
	Logger   *slog.Logger
}

type Batch struct {
	ID          string
	MaxParallel int
	LogScan     bool
	Results     []result.AgentResult
	Summary     result.Summary
}

// RunBatch runs every unit of the case × agent matrix with bounded
// concurrency. Results are returned in matrix order regardless of
// completion order.
func RunBatch(ctx context.Context, opts *BatchOpts) (*Batch, error) {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	units := BuildMatrix(opts.Cases, opts.Agents)
	b := &Batch{
		ID:          id,
		MaxParallel: max(1, min(opts.Run.MaxParallel, len(units))),
		LogScan:     opts.Run.LogScanEnabled(),
		Results:     make([]result.AgentResult, len(units)),
	}
	p := opts.Progress

	// Snapshots are taken once per agent before anything runs, so every
	// unit of a batch compares against the same baseline.
	snapshots := make(map[string]*logscan.Snapshot)
	if b.LogScan {
		for _, a := range opts.Agents {
			s := logscan.Capture(a.LogDirs)
			snapshots[a.Name] = s
			var size int64
			for _, f := range s.Files {
				size += f.Size
			}
			p.Logf("[batch:%s] log snapshot %s: %s files (%s) under %d roots", id, a.Name,
				humanize.Comma(int64(len(s.Files))), humanize.Bytes(uint64(size)), len(s.Roots))
		}
	}

	p.Logf("[batch:%s] Starting %d runs (%d cases x %d agents), max_parallel=%d, log_scan=%t.",
		id, len(units), len(opts.Cases), len(opts.Agents), b.MaxParallel, b.LogScan)
	begin := time.Now()

	var started, completed, pass, fail, infra atomic.Int64
	total := len(units)
	jobs := make([]Job, len(units))
	for i, u := range units {
		u := u
		prefix := fmt.Sprintf("[batch:%s] [unit:%s] %s:%s", id, u.RunID, u.Agent.Name, u.Case.ID)
		p.Logf("%s -> queued", prefix)
		jobs[i] = func(ctx context.Context) error {
			p.Logf("%s -> running [%d/%d]", prefix, started.Add(1), total)
			opts.Metrics.unitStarted()

			r := RunUnit(ctx, &UnitOpts{
				Unit:     u,
				Run:      opts.Run,
				Executor: opts.Executor,
				Registry: opts.Registry,
				Snapshot: snapshots[u.Agent.Name],
				LogScan:  b.LogScan,
				Logger:   opts.Logger,
				Metrics:  opts.Metrics,
			})
			b.Results[u.Index] = *r
			opts.Metrics.unitFinished(r.Status, time.Duration(r.DurationMS)*time.Millisecond)

			switch r.Status {
			case result.StatusPass:
				pass.Add(1)
			case result.StatusFail:
				fail.Add(1)
			default:
				infra.Add(1)
			}
			p.Logf("%s -> %s [%d/%d] status=%s duration_ms=%d timed_out=%t summary(pass=%d, fail=%d, infra=%d)",
				prefix, lifecycleState(r), completed.Add(1), total, r.Status, r.DurationMS, r.TimedOut,
				pass.Load(), fail.Load(), infra.Load())
			return nil
		}
	}

	errs := RunPool(ctx, b.MaxParallel, jobs)
	p.Logf("[batch:%s] Run matrix completed in %s.", id, time.Since(begin).Round(time.Millisecond))
	b.Summary = result.Summarize(b.Results)
	if len(errs) > 0 {
		return b, fmt.Errorf("batch interrupted: %w", errors.Join(errs...))
	}
	return b, nil
}

func lifecycleState(r *result.AgentResult) string {
	switch {
	case r.TimedOut:
		return "timeout"
	case r.Status == result.StatusPass:
		return "completed"
	default:
		return "failed"
	}
}
