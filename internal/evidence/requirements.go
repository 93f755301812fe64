package evidence

import (
	"fmt"
	"sort"
	"strings"

	"github.com/signalnine/skillcheck/internal/cases"
)

const skillFileName = "SKILL.md"

// Requirement origins.
const (
	OriginExpectedSkill  = "expected_skill"
	OriginRequiredSkill  = "required_skills"
	OriginRequiredFile   = "required_files"
	OriginRequiredAll    = "required_all_evidence"
	OriginRequiredLegacy = "required_evidence"
	OriginSkillFile      = "skill_file"
	OriginEvidenceTiers  = "evidence_tiers"
)

// BuildRequirements normalises the requirement shapes a case may declare into
// one required-all list with tier floors plus the required-any alternatives.
// Tokens are deduplicated case-insensitively; when two shapes assign
// different floors the stricter one wins and a warning is recorded.
// p may be nil for families without a registered provider.
func BuildRequirements(c *cases.Case, p *Provider) Requirements {
	b := &requirementBuilder{index: make(map[string]int)}

	expected := strings.TrimSpace(c.ExpectedSkill)
	if expected != "" {
		floor := TierDefinitive
		if p == nil || len(p.Rules) == 0 {
			floor = TierCorroborated
			b.warn(fmt.Sprintf("provider %q has no invocation patterns; expected skill %q relaxed to tier %d",
				providerName(p), expected, floor))
		}
		b.add(expected, floor, OriginExpectedSkill)
	}
	for _, t := range c.RequiredSkills {
		b.add(t, TierDefinitive, OriginRequiredSkill)
	}
	for _, t := range c.RequiredFiles {
		b.add(t, TierCorroborated, OriginRequiredFile)
	}
	for _, t := range c.RequiredAllEvidence {
		b.add(t, TierCorroborated, OriginRequiredAll)
	}
	for _, t := range c.RequiredEvidence {
		b.add(t, TierCorroborated, OriginRequiredLegacy)
	}

	noFileReads := p != nil && p.NoFileReadTraces
	if c.NeedsSkillFile() && !noFileReads {
		skillFile := skillFileName
		if expected != "" {
			skillFile = expected + "/" + skillFileName
		}
		b.add(skillFile, TierCorroborated, OriginSkillFile)
		if p != nil && p.PluginMarker != "" && expected != "" {
			b.addComposite(fmt.Sprintf("%s_plugin_skill_path(%s)", p.Name, skillFile),
				[]string{p.PluginMarker, skillFile}, TierCorroborated)
		}
	}

	keys := make([]string, 0, len(c.EvidenceTiers))
	for k := range c.EvidenceTiers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.add(k, c.EvidenceTiers[k], OriginEvidenceTiers)
	}

	if noFileReads {
		b.dropSkillFiles()
	}

	anySeen := make(map[string]bool)
	for _, list := range [][]string{DefaultAnyEvidence, c.RequiredAnyEvidence} {
		for _, t := range list {
			key := strings.ToLower(t)
			if strings.TrimSpace(t) == "" || anySeen[key] {
				continue
			}
			anySeen[key] = true
			b.reqs.Any = append(b.reqs.Any, t)
		}
	}
	return b.reqs
}

type requirementBuilder struct {
	reqs  Requirements
	index map[string]int
}

func (b *requirementBuilder) warn(msg string) {
	b.reqs.Warnings = append(b.reqs.Warnings, msg)
}

func (b *requirementBuilder) add(token string, floor int, origin string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	key := strings.ToLower(token)
	i, ok := b.index[key]
	if !ok {
		b.index[key] = len(b.reqs.All)
		b.reqs.All = append(b.reqs.All, Requirement{Token: token, Floor: floor, Origin: origin})
		return
	}
	cur := &b.reqs.All[i]
	if cur.Floor == floor {
		return
	}
	stricter := min(cur.Floor, floor)
	b.warn(fmt.Sprintf("token %q: %s requires tier %d but %s requires tier %d; using tier %d",
		cur.Token, cur.Origin, cur.Floor, origin, floor, stricter))
	if floor < cur.Floor {
		cur.Origin = origin
	}
	cur.Floor = stricter
}

func (b *requirementBuilder) addComposite(label string, parts []string, floor int) {
	key := strings.ToLower(label)
	if _, ok := b.index[key]; ok {
		return
	}
	b.index[key] = len(b.reqs.All)
	b.reqs.All = append(b.reqs.All, Requirement{Token: label, Floor: floor, Parts: parts, Origin: OriginSkillFile})
}

func (b *requirementBuilder) dropSkillFiles() {
	kept := b.reqs.All[:0]
	for _, r := range b.reqs.All {
		if IsSkillFileToken(r.Token) {
			continue
		}
		kept = append(kept, r)
	}
	b.reqs.All = kept
}

// IsSkillFileToken reports whether token names a skill definition file.
func IsSkillFileToken(token string) bool {
	t := strings.ToLower(normalizeSlashes(strings.TrimSpace(token)))
	return t == "skill.md" || strings.HasSuffix(t, "/skill.md")
}

func providerName(p *Provider) string {
	if p == nil {
		return "unknown"
	}
	return p.Name
}
