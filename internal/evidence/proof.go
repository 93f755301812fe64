package evidence

import (
	"sort"
	"strconv"
	"strings"
)

type proofCandidate struct {
	line  int
	score int
}

// proofLines picks up to two lines per matched token, strongest first, with
// required-all tokens before required-any tokens. Required-all candidates
// exclude noise lines; required-any candidates do not.
func (r *Registry) proofLines(p *Provider, ev *Evaluation, lines []string, src Source) []ProofLine {
	var out []ProofLine
	seen := make(map[string]bool)
	collect := func(token, scoreToken string, match func(string) bool, skipNoise bool) {
		var cands []proofCandidate
		for i, line := range lines {
			if strings.TrimSpace(line) == "" || (skipNoise && p.isNoise(line)) || !match(line) {
				continue
			}
			cands = append(cands, proofCandidate{line: i, score: r.Score(line, scoreToken)})
		}
		sort.SliceStable(cands, func(a, b int) bool {
			if cands[a].score != cands[b].score {
				return cands[a].score > cands[b].score
			}
			return cands[a].line < cands[b].line
		})
		for _, c := range cands[:min(len(cands), proofPerToken)] {
			pl := ProofLine{
				Token:      token,
				Source:     src.Detail,
				LineNumber: c.line + 1,
				Line:       truncateLine(lines[c.line]),
			}
			out = appendProof(out, seen, pl)
		}
	}

	for _, req := range ev.Requirements.All {
		if !containsFold(ev.MatchedAll, req.Token) {
			continue
		}
		collect(req.Token, req.scoringToken(), req.matches, true)
	}
	for _, t := range ev.MatchedAny {
		token := t
		collect(token, token, func(line string) bool { return containsToken(line, token) }, false)
	}
	if len(out) > maxProofLines {
		out = out[:maxProofLines]
	}
	return out
}

func proofKey(pl ProofLine) string {
	return strings.ToLower(pl.Token) + "\x00" + pl.Source + "\x00" + pl.Line + "\x00" + strconv.Itoa(pl.LineNumber)
}

func appendProof(out []ProofLine, seen map[string]bool, pl ProofLine) []ProofLine {
	k := proofKey(pl)
	if seen[k] {
		return out
	}
	seen[k] = true
	return append(out, pl)
}
