package evidence

import (
	"strings"
	"unicode/utf8"
)

var slashReplacer = strings.NewReplacer(`\\`, "/", `\`, "/")

// Tier classifies one line for token using DefaultRegistry.
func Tier(agent, token, line string, score int) int {
	return DefaultRegistry.Tier(agent, token, line, score)
}

// Score weighs how strongly line indicates a tool interaction involving
// token, using DefaultRegistry.
func Score(line, token string) int {
	return DefaultRegistry.Score(line, token)
}

// Tier returns 1 when a rule of the agent's family attributes the line to
// token, 2 when a rule matches with other attribution or when score is at
// least 60, and 3 otherwise.
func (r *Registry) Tier(agent, token, line string, score int) int {
	return tierFor(r.Lookup(agent), token, line, score)
}

func tierFor(p *Provider, token, line string, score int) int {
	if p != nil {
		patternSeen := false
		for _, rule := range p.Rules {
			if !rule.applies(token) {
				continue
			}
			matched, attributed := rule.match(line, token)
			if attributed {
				return TierDefinitive
			}
			patternSeen = patternSeen || matched
		}
		if patternSeen {
			return TierCorroborated
		}
	}
	if score >= strongScoreFloor {
		return TierCorroborated
	}
	return TierIncidental
}

func (r *Registry) Score(line, token string) int {
	score := 0
	for _, rule := range r.rules {
		if !rule.applies(token) {
			continue
		}
		if _, attributed := rule.match(line, token); attributed {
			score += rule.Weight
		}
	}
	if strings.Contains(line, "tool_use") {
		score += 100
	}
	for _, kw := range []string{"command_execution", "read_file", "mcp_tool_call", "function_call"} {
		if strings.Contains(line, kw) {
			score += 60
			break
		}
	}
	if containsToken(line, token) {
		score += 10
	}
	return score
}

// containsToken is a case-insensitive substring test. Path-shaped tokens
// also match after backslashes are normalised to forward slashes.
func containsToken(line, token string) bool {
	if token == "" {
		return false
	}
	l, t := strings.ToLower(line), strings.ToLower(token)
	if strings.Contains(l, t) {
		return true
	}
	if !hasPathSeparator(token) {
		return false
	}
	return strings.Contains(normalizeSlashes(l), normalizeSlashes(t))
}

func normalizeSlashes(s string) string {
	return slashReplacer.Replace(s)
}

func truncateLine(s string) string {
	if len(s) <= maxLineLength {
		return s
	}
	cut := maxLineLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
