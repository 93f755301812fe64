package result_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalnine/skillcheck/internal/result"
)

func TestWriteAndReadEnvelope(t *testing.T) {
	dir := t.TempDir()
	code := 0
	env := &result.Envelope{
		BatchRunID:     "batch-1",
		GeneratedAtUTC: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Summary:        result.Summary{Total: 1, Pass: 1},
		Options:        result.Options{Agents: []string{"claude"}, MaxParallel: 4},
		Results: []result.AgentResult{{
			UnitRunID: "u1",
			Agent:     "claude",
			CaseID:    "xunit",
			Status:    result.StatusPass,
			Source:    result.SourceCLI,
			ExitCode:  &code,
		}},
	}
	path := filepath.Join(dir, "nested", result.ResultsFile)
	if err := result.WriteEnvelope(path, env); err != nil {
		t.Fatalf("WriteEnvelope: %v", err)
	}
	got, err := result.ReadEnvelope(path)
	if err != nil {
		t.Fatalf("ReadEnvelope: %v", err)
	}
	if got.BatchRunID != env.BatchRunID {
		t.Errorf("batch_run_id: got %q, want %q", got.BatchRunID, env.BatchRunID)
	}
	if !got.GeneratedAtUTC.Equal(env.GeneratedAtUTC) {
		t.Errorf("generated_at_utc: got %v, want %v", got.GeneratedAtUTC, env.GeneratedAtUTC)
	}
	if len(got.Results) != 1 || got.Results[0].Status != result.StatusPass {
		t.Fatalf("results: got %+v", got.Results)
	}
	if got.Results[0].ExitCode == nil || *got.Results[0].ExitCode != 0 {
		t.Errorf("exit_code: got %v", got.Results[0].ExitCode)
	}

	fromDir, err := result.ReadEnvelope(filepath.Join(dir, "nested"))
	if err != nil {
		t.Fatalf("ReadEnvelope(dir): %v", err)
	}
	if fromDir.Summary != env.Summary {
		t.Errorf("summary: got %+v, want %+v", fromDir.Summary, env.Summary)
	}
}

func TestReadEnvelopeMissing(t *testing.T) {
	if _, err := result.ReadEnvelope(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCreateBatchDir(t *testing.T) {
	base := t.TempDir()
	batchDir, err := result.CreateBatchDir(base, "abc")
	if err != nil {
		t.Fatalf("CreateBatchDir: %v", err)
	}
	if filepath.Base(batchDir) != "abc" {
		t.Errorf("batch dir: got %q", batchDir)
	}
	if _, err := os.Stat(batchDir); os.IsNotExist(err) {
		t.Errorf("batch directory not created: %s", batchDir)
	}
	latest := filepath.Join(base, "latest")
	target, err := os.Readlink(latest)
	if err != nil {
		t.Fatalf("reading latest symlink: %v", err)
	}
	if target != batchDir {
		t.Errorf("latest symlink: got %q, want %q", target, batchDir)
	}

	second, err := result.CreateBatchDir(base, "def")
	if err != nil {
		t.Fatalf("CreateBatchDir second: %v", err)
	}
	if target, _ := os.Readlink(latest); target != second {
		t.Errorf("latest not moved: got %q, want %q", target, second)
	}
}

func TestSummarize(t *testing.T) {
	got := result.Summarize([]result.AgentResult{
		{Status: result.StatusPass},
		{Status: result.StatusFail},
		{Status: result.StatusFail},
		{Status: result.StatusInfraError},
	})
	want := result.Summary{Total: 4, Pass: 1, Fail: 2, InfraError: 1}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSamePath(t *testing.T) {
	dir := t.TempDir()
	if !result.SamePath(filepath.Join(dir, "a", "..", "b"), filepath.Join(dir, "b")) {
		t.Error("expected equal paths")
	}
	if result.SamePath(filepath.Join(dir, "a"), filepath.Join(dir, "b")) {
		t.Error("expected different paths")
	}
}
