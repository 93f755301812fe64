package result

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/signalnine/skillcheck/internal/cases"
	"github.com/signalnine/skillcheck/internal/evidence"
	"github.com/signalnine/skillcheck/internal/shell"
)

const maxExcerpt = 2500

// Input is everything the classifier needs about one finished unit.
type Input struct {
	UnitRunID string
	Agent     string
	Provider  string
	Case      *cases.Case
	Command   string
	StartedAt time.Time
	Duration  time.Duration

	// TemplateMissing is set when the agent has no command template and
	// nothing was executed.
	TemplateMissing bool
	Outcome         shell.Outcome

	// Evaluation is the final evidence for the unit; nil for units that
	// never produced output worth evaluating.
	Evaluation *evidence.Evaluation
	// Live is the evaluation of live output alone, set when agent logs were
	// also consulted. A blocked log pass takes its failure kind from here.
	Live   *evidence.Evaluation
	Source string
	// PassBlocked keeps a satisfied evaluation from passing, with Error
	// explaining why.
	PassBlocked bool
	Error       string
}

// Classify maps an execution outcome and its evidence to a terminal result.
func Classify(in Input) *AgentResult {
	r := &AgentResult{
		UnitRunID:       in.UnitRunID,
		Agent:           in.Agent,
		Provider:        in.Provider,
		CaseID:          in.Case.ID,
		Category:        in.Case.Category,
		ExpectedSkill:   in.Case.ExpectedSkill,
		Source:          in.Source,
		StartedAt:       in.StartedAt.UTC(),
		DurationMS:      in.Duration.Milliseconds(),
		Command:         in.Command,
		TimedOut:        in.Outcome.TimedOut,
		MatchedEvidence: []string{},
		MissingEvidence: []string{},
		ProofLines:      []evidence.ProofLine{},
	}
	if r.Source == "" {
		r.Source = SourceNone
	}

	if msg, infra := infraError(in); infra {
		r.Status = StatusInfraError
		r.Source = SourceNone
		r.Error = msg
		r.FailureCategory = category(in.Outcome.TimedOut, true)
		if !in.TemplateMissing {
			code := in.Outcome.ExitCode
			r.ExitCode = &code
		}
		r.OutputExcerpt = Excerpt(in.Outcome.Combined())
		return r
	}

	code := in.Outcome.ExitCode
	r.ExitCode = &code
	r.OutputExcerpt = Excerpt(in.Outcome.Combined())

	ev := in.Evaluation
	if ev == nil {
		ev = &evidence.Evaluation{}
	}
	r.MatchedEvidence = ev.MatchedEvidence()
	r.MissingEvidence = ev.MissingEvidence()
	r.TooWeak = ev.TooWeak
	r.MatchedLogFile = ev.MatchedLogFile
	r.Hits = ev.Hits
	r.Warnings = ev.Requirements.Warnings
	if len(ev.Proof) > 0 {
		r.ProofLines = ev.Proof
	}

	if in.Evaluation != nil && ev.Success() && !in.Outcome.TimedOut && !in.PassBlocked {
		r.Status = StatusPass
		return r
	}

	r.Status = StatusFail
	kindEv := ev
	if ev.Success() && in.Live != nil {
		kindEv = in.Live
	}
	// A timeout with satisfied evidence has nothing to explain beyond its
	// category.
	if !kindEv.Success() {
		r.FailureKind = Kind(kindEv, in.Case.ExpectedSkill)
	}
	r.FailureCategory = category(in.Outcome.TimedOut, false)
	switch {
	case in.Error != "":
		r.Error = in.Error
	case in.Outcome.TimedOut:
		r.Error = "command timed out"
	case in.Outcome.ExitCode != 0:
		r.Error = fmt.Sprintf("agent command returned exit code %d", in.Outcome.ExitCode)
	}
	return r
}

func infraError(in Input) (string, bool) {
	switch {
	case in.TemplateMissing:
		return "no command template configured", true
	case !in.Outcome.Started:
		if in.Outcome.StartError != "" {
			return in.Outcome.StartError, true
		}
		return "failed to start process", true
	case IsCommandNotFound(in.Outcome):
		return fmt.Sprintf("CLI not found or not executable (exit code %d)", in.Outcome.ExitCode), true
	}
	return "", false
}

// IsCommandNotFound recognises the shell's exit status for a missing or
// non-executable agent binary.
func IsCommandNotFound(o shell.Outcome) bool {
	if o.ExitCode != 126 && o.ExitCode != 127 {
		return false
	}
	stderr := strings.ToLower(o.Stderr)
	for _, marker := range []string{"command not found", "no such file or directory", "permission denied"} {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

func category(timedOut, transport bool) FailureCategory {
	switch {
	case timedOut:
		return CategoryTimeout
	case transport:
		return CategoryTransport
	default:
		return CategoryAssertion
	}
}

// Kind picks the failure kind for an unsatisfied evaluation. The checks run
// in a fixed order and the first that applies wins.
func Kind(ev *evidence.Evaluation, expectedSkill string) FailureKind {
	if len(ev.Hits) > 0 && allIncidental(ev.Hits) {
		return KindWeakEvidenceOnly
	}
	if len(ev.TooWeak) > 0 {
		return KindEvidenceTooWeak
	}

	anyMissing := len(ev.MissingAny) > 0
	skillMissing := false
	for _, t := range ev.MissingAll {
		if expectedSkill != "" && strings.EqualFold(t, expectedSkill) {
			skillMissing = true
		}
	}
	skillFileMissing := ev.MissingSkillFile()

	switch {
	case skillMissing && !anyMissing:
		return KindSkillNotLoaded
	case (skillMissing || skillFileMissing) && anyMissing:
		return KindMixedMissing
	case skillFileMissing:
		return KindMissingSkillFile
	case anyMissing:
		return KindMissingActivity
	}
	return KindUnknown
}

func allIncidental(hits map[string]evidence.Hit) bool {
	for _, h := range hits {
		if h.Tier != evidence.TierIncidental {
			return false
		}
	}
	return true
}

// Excerpt bounds output stored on a result. Carriage returns are dropped.
func Excerpt(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r", "")
	if len(text) <= maxExcerpt {
		return text
	}
	cut := maxExcerpt
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
