package evidence

import (
	"strings"

	"github.com/signalnine/skillcheck/internal/cases"
)

// Evaluate scans text for the requirements of c as seen by the given
// provider family, using DefaultRegistry.
func Evaluate(text string, c *cases.Case, src Source, provider string) Evaluation {
	return DefaultRegistry.Evaluate(text, c, src, provider)
}

// Evaluate builds the case's requirements for provider and scans text for
// them. Noise lines are skipped for required-all tokens only. Hits from a
// log source never rank better than tier 2.
func (r *Registry) Evaluate(text string, c *cases.Case, src Source, provider string) Evaluation {
	p := r.Lookup(provider)
	return r.evaluate(text, BuildRequirements(c, p), src, provider, p)
}

func (r *Registry) evaluate(text string, reqs Requirements, src Source, provider string, p *Provider) Evaluation {
	lines := splitLines(text)
	ev := Evaluation{
		Provider:     provider,
		Requirements: reqs,
		Hits:         make(map[string]Hit),
	}

	for _, req := range reqs.All {
		if hit, ok := r.bestHit(p, req, lines, src); ok {
			ev.Hits[req.Token] = hit
		}
	}
	ev.resolve()

	for _, t := range reqs.Any {
		if containsToken(text, t) {
			ev.MatchedAny = append(ev.MatchedAny, t)
		}
	}
	if len(ev.MatchedAny) == 0 && len(reqs.Any) > 0 {
		ev.MissingAny = append([]string{}, reqs.Any...)
	}

	ev.Proof = r.proofLines(p, &ev, lines, src)
	if src.Kind == SourceLog && ev.Success() {
		ev.MatchedLogFile = src.Detail
	}
	return ev
}

func (r *Registry) bestHit(p *Provider, req Requirement, lines []string, src Source) (Hit, bool) {
	var best Hit
	found := false
	token := req.scoringToken()
	for i, line := range lines {
		if strings.TrimSpace(line) == "" || p.isNoise(line) || !req.matches(line) {
			continue
		}
		score := r.Score(line, token)
		tier := tierFor(p, token, line, score)
		if src.Kind == SourceLog && tier < TierCorroborated {
			tier = TierCorroborated
		}
		hit := Hit{
			Tier:       tier,
			Score:      score,
			Source:     src.Kind,
			Detail:     src.Detail,
			LineNumber: i + 1,
			Line:       truncateLine(line),
		}
		if !found || hit.better(best) {
			best, found = hit, true
		}
	}
	return best, found
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
