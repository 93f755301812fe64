package evidence

import "sort"

// Merge combines two evaluations of the same requirements. For each token
// the stronger hit wins: lower tier, then higher score, then the live
// source, then the first argument. Log hits are capped at tier 2 before
// comparison. Matched and missing sets are recomputed against the floors.
func Merge(first, second Evaluation) Evaluation {
	out := Evaluation{
		Provider:     first.Provider,
		Requirements: first.Requirements,
		Hits:         make(map[string]Hit),
	}
	if out.Provider == "" {
		out.Provider = second.Provider
	}
	if len(out.Requirements.All) == 0 && len(out.Requirements.Any) == 0 {
		out.Requirements = second.Requirements
	}

	for _, token := range hitTokens(first, second) {
		a, aok := first.Hits[token]
		b, bok := second.Hits[token]
		a, b = capLogHit(a), capLogHit(b)
		switch {
		case aok && bok:
			if b.better(a) {
				out.Hits[token] = b
			} else {
				out.Hits[token] = a
			}
		case aok:
			out.Hits[token] = a
		case bok:
			out.Hits[token] = b
		}
	}
	out.resolve()

	for _, list := range [][]string{first.MatchedAny, second.MatchedAny} {
		for _, t := range list {
			if !containsFold(out.MatchedAny, t) {
				out.MatchedAny = append(out.MatchedAny, t)
			}
		}
	}
	if len(out.MatchedAny) == 0 {
		for _, list := range [][]string{first.MissingAny, second.MissingAny} {
			for _, t := range list {
				if !containsFold(out.MissingAny, t) {
					out.MissingAny = append(out.MissingAny, t)
				}
			}
		}
	}

	seen := make(map[string]bool)
	for _, list := range [][]ProofLine{first.Proof, second.Proof} {
		for _, pl := range list {
			if len(out.Proof) >= maxProofLines {
				break
			}
			out.Proof = appendProof(out.Proof, seen, pl)
		}
	}

	out.MatchedLogFile = second.MatchedLogFile
	if out.MatchedLogFile == "" {
		out.MatchedLogFile = first.MatchedLogFile
	}
	return out
}

func capLogHit(h Hit) Hit {
	if h.Source == SourceLog && h.Tier < TierCorroborated {
		h.Tier = TierCorroborated
	}
	return h
}

// hitTokens lists every token with a hit on either side, in requirement
// order first and sorted afterwards.
func hitTokens(first, second Evaluation) []string {
	var tokens []string
	seen := make(map[string]bool)
	for _, reqs := range []Requirements{first.Requirements, second.Requirements} {
		for _, r := range reqs.All {
			if !seen[r.Token] {
				seen[r.Token] = true
				tokens = append(tokens, r.Token)
			}
		}
	}
	var extra []string
	for _, hits := range []map[string]Hit{first.Hits, second.Hits} {
		for t := range hits {
			if !seen[t] {
				seen[t] = true
				extra = append(extra, t)
			}
		}
	}
	sort.Strings(extra)
	return append(tokens, extra...)
}
