package result

import (
	"time"

	"github.com/signalnine/skillcheck/internal/evidence"
)

type Status string

const (
	StatusPass       Status = "pass"
	StatusFail       Status = "fail"
	StatusInfraError Status = "infra_error"
)

// FailureKind explains why a unit failed its evidence check.
type FailureKind string

const (
	KindWeakEvidenceOnly FailureKind = "weak_evidence_only"
	KindEvidenceTooWeak  FailureKind = "evidence_too_weak"
	KindSkillNotLoaded   FailureKind = "skill_not_loaded"
	KindMixedMissing     FailureKind = "mixed_evidence_missing"
	KindMissingSkillFile FailureKind = "missing_skill_file_evidence"
	KindMissingActivity  FailureKind = "missing_activity_evidence"
	KindUnknown          FailureKind = "unknown"
)

type FailureCategory string

const (
	CategoryTimeout   FailureCategory = "timeout"
	CategoryTransport FailureCategory = "transport"
	CategoryAssertion FailureCategory = "assertion"
)

// Evidence source labels recorded on results.
const (
	SourceNone        = "none"
	SourceCLI         = "cli_output"
	SourceLogFallback = "log_fallback"
	SourceCLIAndLog   = "cli_output+log_fallback"
)

// AgentResult is the terminal record of one (case, agent) unit.
type AgentResult struct {
	UnitRunID       string                  `json:"unit_run_id"`
	Agent           string                  `json:"agent"`
	Provider        string                  `json:"provider"`
	CaseID          string                  `json:"case_id"`
	Category        string                  `json:"category"`
	ExpectedSkill   string                  `json:"expected_skill"`
	Status          Status                  `json:"status"`
	Source          string                  `json:"source"`
	MatchedEvidence []string                `json:"matched_evidence"`
	MissingEvidence []string                `json:"missing_evidence"`
	TooWeak         []string                `json:"too_weak_evidence,omitempty"`
	MatchedLogFile  string                  `json:"matched_log_file,omitempty"`
	ProofLines      []evidence.ProofLine    `json:"tool_use_proof_lines"`
	Hits            map[string]evidence.Hit `json:"evidence_hits,omitempty"`
	Warnings        []string                `json:"warnings,omitempty"`
	Error           string                  `json:"error,omitempty"`
	StartedAt       time.Time               `json:"started_at_utc"`
	DurationMS      int64                   `json:"duration_ms"`
	Command         string                  `json:"command,omitempty"`
	ExitCode        *int                    `json:"exit_code,omitempty"`
	OutputExcerpt   string                  `json:"output_excerpt,omitempty"`
	TimedOut        bool                    `json:"timed_out"`
	FailureKind     FailureKind             `json:"failure_kind,omitempty"`
	FailureCategory FailureCategory         `json:"failure_category,omitempty"`
}

type Summary struct {
	Total      int `json:"total"`
	Pass       int `json:"pass"`
	Fail       int `json:"fail"`
	InfraError int `json:"infra_error"`
}

func Summarize(results []AgentResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			s.Pass++
		case StatusFail:
			s.Fail++
		case StatusInfraError:
			s.InfraError++
		}
	}
	return s
}

// Options records the settings a batch ran with.
type Options struct {
	Cases           string   `json:"input"`
	Agents          []string `json:"agents"`
	Categories      []string `json:"categories"`
	CaseIDs         []string `json:"case_ids"`
	TimeoutSeconds  int      `json:"timeout_seconds"`
	MaxParallel     int      `json:"max_parallel"`
	LogScan         bool     `json:"enable_log_scan"`
	LogMaxFiles     int      `json:"log_max_files"`
	LogMaxBytes     int64    `json:"log_max_bytes"`
	LogFallbackPass bool     `json:"log_fallback_pass"`
	FailOnInfra     bool     `json:"fail_on_infra"`
	Progress        bool     `json:"progress"`
	ArtifactsRoot   string   `json:"artifacts_root"`
}

// Envelope is the results.json document.
type Envelope struct {
	BatchRunID     string        `json:"batch_run_id"`
	GeneratedAtUTC time.Time     `json:"generated_at_utc"`
	Summary        Summary       `json:"summary"`
	Options        Options       `json:"options"`
	Results        []AgentResult `json:"results"`
}
