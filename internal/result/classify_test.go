package result_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/skillcheck/internal/cases"
	"github.com/signalnine/skillcheck/internal/evidence"
	"github.com/signalnine/skillcheck/internal/result"
	"github.com/signalnine/skillcheck/internal/shell"
)

const skillRecord = `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Skill","input":{"skill":"dotnet-xunit"}}]}}`

func xunitCase() *cases.Case {
	return &cases.Case{ID: "xunit", Category: "testing", Prompt: "write tests", ExpectedSkill: "dotnet-xunit"}
}

// input evaluates text for a case that needs only the skill invocation.
func input(out shell.Outcome, text string) result.Input {
	c := xunitCase()
	c.RequireSkillFile = new(bool)
	ev := evidence.Evaluate(text, c, evidence.LiveSource(), "claude")
	return result.Input{
		UnitRunID:  "u1",
		Agent:      "claude",
		Provider:   "claude",
		Case:       c,
		Command:    "claude -p 'write tests'",
		StartedAt:  time.Now(),
		Duration:   1500 * time.Millisecond,
		Outcome:    out,
		Evaluation: &ev,
		Source:     result.SourceCLI,
	}
}

func TestClassifyPass(t *testing.T) {
	r := result.Classify(input(shell.Outcome{Started: true, Stdout: skillRecord}, skillRecord))
	assert.Equal(t, result.StatusPass, r.Status)
	assert.Equal(t, result.SourceCLI, r.Source)
	assert.Empty(t, r.FailureKind)
	assert.Empty(t, r.FailureCategory)
	assert.Equal(t, []string{"dotnet-xunit", "tool_use"}, r.MatchedEvidence)
	assert.Equal(t, int64(1500), r.DurationMS)
	require.NotNil(t, r.ExitCode)
	assert.Equal(t, 0, *r.ExitCode)
	assert.NotEmpty(t, r.ProofLines)
}

func TestClassifyCommandNotFound(t *testing.T) {
	out := shell.Outcome{Started: true, ExitCode: 127, Stderr: "bash: claude: command not found", Stdout: skillRecord}
	r := result.Classify(input(out, skillRecord))
	assert.Equal(t, result.StatusInfraError, r.Status, "evidence text does not matter")
	assert.Equal(t, result.CategoryTransport, r.FailureCategory)
	assert.Equal(t, result.SourceNone, r.Source)
	assert.Contains(t, r.Error, "exit code 127")
	assert.Empty(t, r.FailureKind)
}

func TestClassifyExit127WithoutMarkerIsNotInfra(t *testing.T) {
	out := shell.Outcome{Started: true, ExitCode: 127, Stderr: "something else"}
	r := result.Classify(input(out, ""))
	assert.Equal(t, result.StatusFail, r.Status)
	assert.Equal(t, result.CategoryAssertion, r.FailureCategory)
	assert.Equal(t, "agent command returned exit code 127", r.Error)
}

func TestClassifyStartFailure(t *testing.T) {
	out := shell.Outcome{Started: false, ExitCode: -1, StartError: "fork/exec /bin/nope: no such file"}
	r := result.Classify(input(out, ""))
	assert.Equal(t, result.StatusInfraError, r.Status)
	assert.Equal(t, result.CategoryTransport, r.FailureCategory)
	assert.Equal(t, out.StartError, r.Error)
}

func TestClassifyTemplateMissing(t *testing.T) {
	in := input(shell.Outcome{}, "")
	in.TemplateMissing = true
	in.Evaluation = nil
	r := result.Classify(in)
	assert.Equal(t, result.StatusInfraError, r.Status)
	assert.Equal(t, result.CategoryTransport, r.FailureCategory)
	assert.Nil(t, r.ExitCode)
}

func TestClassifyTimeoutNeverPasses(t *testing.T) {
	out := shell.Outcome{Started: true, ExitCode: -1, TimedOut: true, Stdout: skillRecord}
	r := result.Classify(input(out, skillRecord))
	assert.Equal(t, result.StatusFail, r.Status)
	assert.Equal(t, result.CategoryTimeout, r.FailureCategory)
	assert.Equal(t, "command timed out", r.Error)
	assert.True(t, r.TimedOut)
	assert.Empty(t, r.FailureKind, "satisfied evidence leaves nothing for a kind to explain")
}

func TestClassifyTimeoutWithMissingEvidence(t *testing.T) {
	out := shell.Outcome{Started: true, ExitCode: -1, TimedOut: true, Stdout: "tool_use Bash"}
	r := result.Classify(input(out, "tool_use Bash"))
	assert.Equal(t, result.CategoryTimeout, r.FailureCategory)
	assert.Equal(t, result.KindSkillNotLoaded, r.FailureKind)
}

func TestClassifyPassBlocked(t *testing.T) {
	in := input(shell.Outcome{Started: true}, skillRecord)
	in.PassBlocked = true
	in.Error = "log evidence is not allowed to pass"
	r := result.Classify(in)
	assert.Equal(t, result.StatusFail, r.Status)
	assert.Equal(t, in.Error, r.Error)
	assert.Equal(t, result.CategoryAssertion, r.FailureCategory)
}

func TestClassifyPassBlockedUsesLiveKind(t *testing.T) {
	in := input(shell.Outcome{Started: true, Stdout: "tool_use Bash"}, skillRecord)
	live := evidence.Evaluate("tool_use Bash", in.Case, evidence.LiveSource(), "claude")
	in.Live = &live
	in.Source = result.SourceCLIAndLog
	in.PassBlocked = true
	in.Error = "log evidence is not allowed to pass"

	r := result.Classify(in)
	assert.Equal(t, result.StatusFail, r.Status)
	assert.Equal(t, result.KindSkillNotLoaded, r.FailureKind)
	assert.Empty(t, r.MissingEvidence, "reported evidence stays the merged evaluation")
}

func TestClassifyCommandNotFoundIgnoresCase(t *testing.T) {
	for _, stderr := range []string{
		"BASH: CLAUDE: COMMAND NOT FOUND",
		"/bin/sh: claude: no such file or directory",
		"zsh: PERMISSION DENIED: ./claude",
	} {
		out := shell.Outcome{Started: true, ExitCode: 127, Stderr: stderr}
		assert.True(t, result.IsCommandNotFound(out), stderr)
	}
	assert.False(t, result.IsCommandNotFound(shell.Outcome{Started: true, ExitCode: 1, Stderr: "command not found"}))
}

func TestClassifyExcerpt(t *testing.T) {
	long := make([]byte, 3000)
	for i := range long {
		long[i] = 'a'
	}
	r := result.Classify(input(shell.Outcome{Started: true, Stdout: "x\r\n" + string(long)}, ""))
	assert.Len(t, r.OutputExcerpt, 2503)
	assert.NotContains(t, r.OutputExcerpt, "\r")
}

func TestKind(t *testing.T) {
	codex := func(c *cases.Case, text string) *evidence.Evaluation {
		ev := evidence.Evaluate(text, c, evidence.LiveSource(), "codex")
		return &ev
	}
	copilot := func(c *cases.Case, text string) *evidence.Evaluation {
		ev := evidence.Evaluate(text, c, evidence.LiveSource(), "copilot")
		return &ev
	}
	noFile := func(c *cases.Case) *cases.Case {
		f := false
		c.RequireSkillFile = &f
		return c
	}

	tests := []struct {
		name string
		ev   *evidence.Evaluation
		want result.FailureKind
	}{
		{
			name: "only mentions",
			ev:   codex(xunitCase(), "dotnet-xunit looks right\nread dotnet-xunit/SKILL.md"),
			want: result.KindWeakEvidenceOnly,
		},
		{
			name: "observed below floor",
			ev:   codex(xunitCase(), "read_file dotnet-xunit/SKILL.md"),
			want: result.KindEvidenceTooWeak,
		},
		{
			name: "skill absent with activity",
			ev:   codex(noFile(xunitCase()), "tool_use Bash"),
			want: result.KindSkillNotLoaded,
		},
		{
			name: "skill absent without activity",
			ev:   codex(noFile(xunitCase()), "hello"),
			want: result.KindMixedMissing,
		},
		{
			name: "skill file absent",
			ev:   codex(xunitCase(), "Base directory for this skill: /s/dotnet-xunit\ncommand_execution ls"),
			want: result.KindMissingSkillFile,
		},
		{
			name: "composite plugin path absent",
			ev:   copilot(xunitCase(), "read_file /home/u/skills/dotnet-xunit/SKILL.md\nBase directory for this skill: /home/u/skills/dotnet-xunit"),
			want: result.KindMissingSkillFile,
		},
		{
			name: "skill file and activity absent",
			ev:   codex(xunitCase(), "Base directory for this skill: /s/dotnet-xunit"),
			want: result.KindMixedMissing,
		},
		{
			name: "no activity",
			ev:   codex(&cases.Case{ID: "a", Prompt: "p", RequireSkillFile: new(bool)}, "hello"),
			want: result.KindMissingActivity,
		},
		{
			name: "nothing explains it",
			ev:   &evidence.Evaluation{},
			want: result.KindUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, result.Kind(tt.ev, "dotnet-xunit"))
		})
	}
}
