package result

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WriteProofLog renders the human-readable audit log of every unit's
// evidence.
func WriteProofLog(w io.Writer, batchID string, generated time.Time, results []AgentResult) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# Tool-Use Proof Log")
	fmt.Fprintf(bw, "# Generated UTC: %s\n", generated.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(bw, "# Batch Run ID: %s\n\n", batchID)

	for _, r := range results {
		fmt.Fprintf(bw, "=== agent=%s case_id=%s unit_run_id=%s status=%s source=%s\n",
			r.Agent, r.CaseID, r.UnitRunID, r.Status, r.Source)
		if r.FailureKind != "" {
			fmt.Fprintf(bw, "failure_kind=%s\n", r.FailureKind)
		}
		if r.FailureCategory != "" {
			fmt.Fprintf(bw, "failure_category=%s\n", r.FailureCategory)
		}
		if r.Error != "" {
			fmt.Fprintf(bw, "error=%s\n", r.Error)
		}
		if len(r.MatchedEvidence) > 0 {
			fmt.Fprintf(bw, "matched_evidence=%s\n", strings.Join(r.MatchedEvidence, ", "))
		}
		if len(r.MissingEvidence) > 0 {
			fmt.Fprintf(bw, "missing_evidence=%s\n", strings.Join(r.MissingEvidence, ", "))
		}
		fmt.Fprintln(bw, "tool_use_proof_lines:")
		if len(r.ProofLines) == 0 {
			fmt.Fprintln(bw, "  (none)")
		}
		for _, p := range r.ProofLines {
			fmt.Fprintf(bw, "  [%s] %s:%d %s\n", p.Token, p.Source, p.LineNumber, p.Line)
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

func WriteProofLogFile(path, batchID string, generated time.Time, results []AgentResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating proof log dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating proof log: %w", err)
	}
	if err := WriteProofLog(f, batchID, generated, results); err != nil {
		f.Close()
		return fmt.Errorf("writing proof log: %w", err)
	}
	return f.Close()
}
