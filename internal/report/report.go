package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/skillcheck/internal/result"
)

type AgentSummary struct {
	Name          string         `json:"name"`
	Units         int            `json:"units"`
	Pass          int            `json:"pass"`
	Fail          int            `json:"fail"`
	InfraError    int            `json:"infra_error"`
	Timeouts      int            `json:"timeouts"`
	LogFallback   int            `json:"log_fallback_passes"`
	PassRate      float64        `json:"pass_rate"`
	MeanDurationS float64        `json:"mean_duration_s"`
	FailureKinds  map[string]int `json:"failure_kinds,omitempty"`
}

// Generate reads a results.json file (or a batch directory holding one) and
// writes a per-agent summary as a table, markdown or json.
func Generate(path, format string, w io.Writer) error {
	env, err := result.ReadEnvelope(path)
	if err != nil {
		return err
	}
	return Write(env.Results, format, w)
}

func Write(results []result.AgentResult, format string, w io.Writer) error {
	summaries := Aggregate(results)
	switch format {
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	default:
		return writeTable(summaries, w)
	}
}

// Aggregate groups results by agent, sorted by agent name.
func Aggregate(results []result.AgentResult) []AgentSummary {
	type accum struct {
		AgentSummary
		durationMS int64
	}
	byAgent := map[string]*accum{}

	for _, r := range results {
		a, ok := byAgent[r.Agent]
		if !ok {
			a = &accum{AgentSummary: AgentSummary{Name: r.Agent}}
			byAgent[r.Agent] = a
		}
		a.Units++
		a.durationMS += r.DurationMS
		switch r.Status {
		case result.StatusPass:
			a.Pass++
			if r.Source == result.SourceLogFallback {
				a.LogFallback++
			}
		case result.StatusFail:
			a.Fail++
		case result.StatusInfraError:
			a.InfraError++
		}
		if r.TimedOut {
			a.Timeouts++
		}
		if r.FailureKind != "" {
			if a.FailureKinds == nil {
				a.FailureKinds = map[string]int{}
			}
			a.FailureKinds[string(r.FailureKind)]++
		}
	}

	var summaries []AgentSummary
	for _, a := range byAgent {
		s := a.AgentSummary
		s.PassRate = float64(s.Pass) / float64(s.Units)
		s.MeanDurationS = float64(a.durationMS) / float64(s.Units) / 1000
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})
	return summaries
}

func kinds(m map[string]int) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, " ")
}

func writeTable(summaries []AgentSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AGENT\tUNITS\tPASS\tFAIL\tINFRA\tPASS RATE\tMEAN DURATION\tFAILURE KINDS")
	fmt.Fprintln(tw, strings.Repeat("-", 80))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%.0f%%\t%.1fs\t%s\n",
			s.Name, s.Units, s.Pass, s.Fail, s.InfraError, s.PassRate*100, s.MeanDurationS, kinds(s.FailureKinds))
	}
	return tw.Flush()
}

func writeMarkdown(summaries []AgentSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Agent | Units | Pass | Fail | Infra | Pass Rate | Mean Duration | Failure Kinds |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|---|")
	for _, s := range summaries {
		fmt.Fprintf(w, "| %s | %d | %d | %d | %d | %.0f%% | %.1fs | %s |\n",
			s.Name, s.Units, s.Pass, s.Fail, s.InfraError, s.PassRate*100, s.MeanDurationS, kinds(s.FailureKinds))
	}
	return nil
}

func writeJSON(summaries []AgentSummary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
