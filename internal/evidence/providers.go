package evidence

import (
	"regexp"
	"sort"
	"strings"
)

// Rule recognises a provider-specific skill invocation record. A line
// matches when Gate (if set) and Capture both match; the first capture group
// is the invoked identifier, which Attribute checks against the token.
type Rule struct {
	Name      string
	Gate      *regexp.Regexp
	Capture   *regexp.Regexp
	Attribute func(identifier, token string) bool
	SkipToken func(token string) bool
	Weight    int
}

// match reports whether the rule's pattern is present on line and whether
// any captured identifier is attributed to token.
func (r *Rule) match(line, token string) (matched, attributed bool) {
	if r.Gate != nil && !r.Gate.MatchString(line) {
		return false, false
	}
	for _, m := range r.Capture.FindAllStringSubmatch(line, -1) {
		matched = true
		if len(m) > 1 && r.Attribute(m[1], token) {
			return true, true
		}
	}
	return matched, false
}

func (r *Rule) applies(token string) bool {
	return r.SkipToken == nil || !r.SkipToken(token)
}

// Provider describes one agent family.
type Provider struct {
	Name  string
	Rules []*Rule
	// NoiseMarkers are extra substrings that exclude a line from
	// required-all scanning.
	NoiseMarkers []string
	// NoFileReadTraces marks families whose output never shows skill files
	// being read.
	NoFileReadTraces bool
	// PluginMarker, when set, adds a composite skill-file requirement: one
	// line must contain the marker and the skill file path.
	PluginMarker string
}

func (p *Provider) isNoise(line string) bool {
	for _, m := range globalNoise {
		if strings.Contains(line, m) {
			return true
		}
	}
	if p == nil {
		return false
	}
	for _, m := range p.NoiseMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

// Registry holds the known provider families.
type Registry struct {
	providers map[string]*Provider
	rules     []*Rule
}

func NewRegistry(providers ...*Provider) *Registry {
	r := &Registry{providers: make(map[string]*Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider. Rules shared between providers are
// scored once.
func (r *Registry) Register(p *Provider) {
	r.providers[strings.ToLower(p.Name)] = p
	seen := make(map[string]bool)
	r.rules = r.rules[:0]
	for _, name := range r.Names() {
		for _, rule := range r.providers[name].Rules {
			if seen[rule.Name] {
				continue
			}
			seen[rule.Name] = true
			r.rules = append(r.rules, rule)
		}
	}
}

// Lookup returns the provider for a family name or nil.
func (r *Registry) Lookup(name string) *Provider {
	return r.providers[strings.ToLower(strings.TrimSpace(name))]
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var globalNoise = []string{
	`"type":"system"`,
	`"type":"queue-operation"`,
	`"subtype":"init"`,
	`"subtype":"hook_`,
}

// DefaultAnyEvidence is the baseline set of tool-activity markers accepted
// as required-any evidence for every case.
var DefaultAnyEvidence = []string{
	"tool_use",
	"read_file",
	"file_search",
	"command_execution",
	"function_call",
	"mcp:",
	"Glob ",
	"Grep ",
	"Read(",
	"Grep(",
	"Glob(",
	"Bash(",
	"shell(",
	"Starting remote MCP client for github-mcp-server",
	`Invalid MCP config for plugin "dotnet-artisan"`,
}

var (
	skillToolRule = &Rule{
		Name:      "skill_tool_record",
		Gate:      regexp.MustCompile(`(?i)"name"\s*:\s*"Skill"`),
		Capture:   regexp.MustCompile(`"skill"\s*:\s*"([^"]+)"`),
		Attribute: idContains,
		Weight:    1000,
	}
	launchingSkillRule = &Rule{
		Name:      "launching_skill",
		Capture:   regexp.MustCompile(`(?i)Launching skill:\s*([A-Za-z0-9._:/-]+)`),
		Attribute: idContains,
		Weight:    900,
	}
	baseDirectoryRule = &Rule{
		Name:      "base_directory",
		Capture:   regexp.MustCompile(`(?i)Base directory for this skill:\s*([^\s"',]+)`),
		Attribute: pathHasSegment,
		SkipToken: hasPathSeparator,
		Weight:    700,
	}
)

func Claude() *Provider {
	return &Provider{
		Name:  "claude",
		Rules: []*Rule{skillToolRule, launchingSkillRule},
		NoiseMarkers: []string{
			"[DEBUG] Hooks:",
			"Hook SessionStart:startup",
			"Skill prompt: showing",
			"Attempting to load skills from plugin",
			"Loading from skillPath:",
			"Loaded 1 skills from plugin",
			"Sending 230 skills via attachment",
		},
		NoFileReadTraces: true,
	}
}

func Codex() *Provider {
	return &Provider{Name: "codex", Rules: []*Rule{baseDirectoryRule}}
}

func Copilot() *Provider {
	return &Provider{
		Name:         "copilot",
		Rules:        []*Rule{baseDirectoryRule},
		PluginMarker: ".copilot/installed-plugins",
	}
}

// DefaultRegistry knows the claude, codex and copilot families.
var DefaultRegistry = NewRegistry(Claude(), Codex(), Copilot())

func idContains(identifier, token string) bool {
	return token != "" && strings.Contains(strings.ToLower(identifier), strings.ToLower(token))
}

func pathHasSegment(path, token string) bool {
	if token == "" {
		return false
	}
	p := strings.ToLower(normalizeSlashes(path))
	t := strings.ToLower(normalizeSlashes(token))
	return strings.Contains(p, "/"+t+"/") || strings.HasSuffix(p, "/"+t)
}

func hasPathSeparator(token string) bool {
	return strings.ContainsAny(token, `/\`)
}
