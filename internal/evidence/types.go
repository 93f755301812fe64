// Package evidence decides whether an agent transcript or log proves that an
// expected skill was invoked.
//
// Every required token is located line by line and ranked into a tier:
//
//	1  definitive: a provider-specific invocation record attributed to the token
//	2  corroborating: a provider pattern with the wrong attribution, or a line
//	   with strong tool-use context
//	3  incidental: the token is merely mentioned
//
// A token is satisfied only when its best hit is at or below the tier floor
// the case assigns to it.
package evidence

import (
	"fmt"
	"strings"
)

const (
	TierDefinitive   = 1
	TierCorroborated = 2
	TierIncidental   = 3
)

// SourceKind identifies where a body of text came from.
type SourceKind string

const (
	SourceLive SourceKind = "live"
	SourceLog  SourceKind = "log"
)

const (
	maxLineLength    = 500
	proofPerToken    = 2
	maxProofLines    = 30
	strongScoreFloor = 60
)

// Source labels the text handed to Evaluate. Detail is "cli_output" for live
// output or the file path for a log.
type Source struct {
	Kind   SourceKind
	Detail string
}

func LiveSource() Source {
	return Source{Kind: SourceLive, Detail: "cli_output"}
}

func LogSource(path string) Source {
	return Source{Kind: SourceLog, Detail: path}
}

// Hit is the strongest observed occurrence of one required token.
type Hit struct {
	Tier       int        `json:"tier"`
	Score      int        `json:"score"`
	Source     SourceKind `json:"source"`
	Detail     string     `json:"source_detail"`
	LineNumber int        `json:"line_number"`
	Line       string     `json:"line"`
}

// better reports whether h should replace cur as a token's best hit. Pure
// ties return false so that the earlier hit is kept.
func (h Hit) better(cur Hit) bool {
	if h.Tier != cur.Tier {
		return h.Tier < cur.Tier
	}
	if h.Score != cur.Score {
		return h.Score > cur.Score
	}
	if h.Source != cur.Source {
		return h.Source == SourceLive
	}
	return false
}

type ProofLine struct {
	Token      string `json:"token"`
	Source     string `json:"source"`
	LineNumber int    `json:"line_number"`
	Line       string `json:"line"`
}

// Requirement is one required-all token with its tier floor. A zero Floor
// accepts any tier. When Parts is set the token is a label and a single line
// must contain every part.
type Requirement struct {
	Token  string   `json:"token"`
	Floor  int      `json:"floor,omitempty"`
	Parts  []string `json:"parts,omitempty"`
	Origin string   `json:"origin"`
}

func (r Requirement) matches(line string) bool {
	if len(r.Parts) == 0 {
		return containsToken(line, r.Token)
	}
	for _, p := range r.Parts {
		if !containsToken(line, p) {
			return false
		}
	}
	return true
}

// IsSkillFile reports whether the requirement asks for evidence that a skill
// definition file was read. Composite plugin-path requirements count.
func (r Requirement) IsSkillFile() bool {
	if r.Origin == OriginSkillFile || IsSkillFileToken(r.Token) {
		return true
	}
	for _, p := range r.Parts {
		if IsSkillFileToken(p) {
			return true
		}
	}
	return false
}

// scoringToken is the text used for scoring and tier attribution.
func (r Requirement) scoringToken() string {
	if len(r.Parts) == 0 {
		return r.Token
	}
	return r.Parts[len(r.Parts)-1]
}

type Requirements struct {
	All      []Requirement `json:"all"`
	Any      []string      `json:"any"`
	Warnings []string      `json:"warnings,omitempty"`
}

func (r Requirements) lookup(token string) (Requirement, bool) {
	for _, req := range r.All {
		if strings.EqualFold(req.Token, token) {
			return req, true
		}
	}
	return Requirement{}, false
}

// Evaluation is the outcome of scanning one body of text against one case.
type Evaluation struct {
	Provider       string         `json:"provider"`
	Requirements   Requirements   `json:"-"`
	MatchedAll     []string       `json:"matched_all"`
	MissingAll     []string       `json:"missing_all"`
	TooWeak        []string       `json:"too_weak,omitempty"`
	MatchedAny     []string       `json:"matched_any"`
	MissingAny     []string       `json:"missing_any"`
	Hits           map[string]Hit `json:"hits"`
	Proof          []ProofLine    `json:"proof_lines"`
	MatchedLogFile string         `json:"matched_log_file,omitempty"`
}

func (e *Evaluation) Success() bool {
	return len(e.MissingAll) == 0 && len(e.MissingAny) == 0
}

// MatchedEvidence lists matched required-all tokens followed by matched
// alternatives not already listed.
func (e *Evaluation) MatchedEvidence() []string {
	out := append([]string{}, e.MatchedAll...)
	for _, t := range e.MatchedAny {
		if !containsFold(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// MissingSkillFile reports whether any missing required-all token is a
// skill-file requirement.
func (e *Evaluation) MissingSkillFile() bool {
	for _, t := range e.MissingAll {
		req, ok := e.Requirements.lookup(t)
		if !ok {
			req = Requirement{Token: t}
		}
		if req.IsSkillFile() {
			return true
		}
	}
	return false
}

// MissingEvidence lists missing required-all tokens and, when no alternative
// matched, a single any_of(...) entry.
func (e *Evaluation) MissingEvidence() []string {
	out := append([]string{}, e.MissingAll...)
	if len(e.MissingAny) > 0 {
		out = append(out, fmt.Sprintf("any_of(%s)", strings.Join(e.MissingAny, "|")))
	}
	return out
}

// resolve recomputes the matched, missing and too-weak lists from Hits and
// the requirement floors.
func (e *Evaluation) resolve() {
	e.MatchedAll, e.MissingAll, e.TooWeak = nil, nil, nil
	for _, req := range e.Requirements.All {
		hit, ok := e.Hits[req.Token]
		switch {
		case !ok:
			e.MissingAll = append(e.MissingAll, req.Token)
		case req.Floor > 0 && hit.Tier > req.Floor:
			e.MissingAll = append(e.MissingAll, req.Token)
			e.TooWeak = append(e.TooWeak, req.Token)
		default:
			e.MatchedAll = append(e.MatchedAll, req.Token)
		}
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
