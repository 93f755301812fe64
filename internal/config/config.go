package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no --config is given and it exists in the working
// directory.
const DefaultFile = "skillcheck.yaml"

// Log scan modes.
const (
	LogScanAuto = "auto"
	LogScanOn   = "on"
	LogScanOff  = "off"
)

type Config struct {
	Agents  []Agent `yaml:"agents"`
	Run     Run     `yaml:"run"`
	Secrets Secrets `yaml:"secrets"`
}

// Agent is one CLI under test. Provider selects the evidence rules and
// defaults to Name.
type Agent struct {
	Name     string   `yaml:"name"`
	Provider string   `yaml:"provider"`
	Template string   `yaml:"template"`
	LogDirs  []string `yaml:"log_dirs"`
}

type Run struct {
	Cases              string `yaml:"cases"`
	ArtifactsRoot      string `yaml:"artifacts_root"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	MaxParallel        int    `yaml:"max_parallel"`
	LogScan            string `yaml:"log_scan"`
	LogMaxFiles        int    `yaml:"log_max_files"`
	LogMaxBytes        int64  `yaml:"log_max_bytes"`
	LogLookbackSeconds int    `yaml:"log_lookback_seconds"`
	LogFallbackPass    *bool  `yaml:"log_fallback_pass"`
	FailOnInfra        bool   `yaml:"fail_on_infra"`
}

type Secrets struct {
	EnvFile string `yaml:"env_file"`
}

var builtinAgents = []Agent{
	{
		Name:     "claude",
		Provider: "claude",
		Template: "claude -p --verbose --output-format stream-json --include-partial-messages --permission-mode bypassPermissions {prompt} --disallowed-tools AskUserQuestion --disallowed-tools EnterPlanMode",
		LogDirs:  []string{"~/.claude"},
	},
	{
		Name:     "codex",
		Provider: "codex",
		Template: "codex -a never exec --json {prompt}",
		LogDirs:  []string{"~/.codex"},
	},
	{
		Name:     "copilot",
		Provider: "copilot",
		Template: "copilot -p {prompt} --allow-all-tools --no-ask-user --log-level debug",
		LogDirs:  []string{"~/.copilot", "~/.config/github-copilot", "~/.local/share/github-copilot"},
	},
}

// Default returns the built-in configuration for the claude, codex and
// copilot CLIs.
func Default() *Config {
	cfg := &Config{}
	for _, a := range builtinAgents {
		a.LogDirs = append([]string(nil), a.LogDirs...)
		cfg.Agents = append(cfg.Agents, a)
	}
	cfg.Run.applyDefaults()
	return cfg
}

func (r *Run) applyDefaults() {
	if r.Cases == "" {
		r.Cases = filepath.Join("tests", "agent-routing", "cases.json")
	}
	if r.ArtifactsRoot == "" {
		r.ArtifactsRoot = filepath.Join("tests", "agent-routing", "artifacts")
	}
	if r.TimeoutSeconds == 0 {
		r.TimeoutSeconds = 90
	}
	if r.MaxParallel == 0 {
		r.MaxParallel = 4
	}
	if r.LogScan == "" {
		r.LogScan = LogScanAuto
	}
	if r.LogMaxFiles == 0 {
		r.LogMaxFiles = 60
	}
	if r.LogMaxBytes == 0 {
		r.LogMaxBytes = 300000
	}
	if r.LogLookbackSeconds == 0 {
		r.LogLookbackSeconds = 120
	}
	if r.LogFallbackPass == nil {
		pass := true
		r.LogFallbackPass = &pass
	}
}

// Load reads a config file. Agents that only name a built-in CLI inherit its
// template and log directories.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if len(cfg.Agents) == 0 {
		cfg.Agents = Default().Agents
	}
	cfg.Run.applyDefaults()
	for i := range cfg.Agents {
		fillAgent(&cfg.Agents[i])
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOrDefault loads path. An empty path falls back to DefaultFile when it
// exists and to Default otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return Load(DefaultFile)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("checking %s: %w", DefaultFile, err)
	}
	return Default(), nil
}

func fillAgent(a *Agent) {
	if a.Provider == "" {
		a.Provider = a.Name
	}
	for _, b := range builtinAgents {
		if !strings.EqualFold(b.Name, a.Provider) {
			continue
		}
		if a.Template == "" {
			a.Template = b.Template
		}
		if a.LogDirs == nil {
			a.LogDirs = append([]string(nil), b.LogDirs...)
		}
	}
}

// LoadEnvFile loads a dotenv file into the process environment. Variables
// that are already set are left alone.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv applies MAX_CONCURRENCY, AGENT_<NAME>_TEMPLATE and
// AGENT_<NAME>_LOG_DIRS overrides. Log dirs are split on the OS path list
// separator.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("MAX_CONCURRENCY")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("MAX_CONCURRENCY must be a positive integer, got %q", v)
		}
		c.Run.MaxParallel = n
	}
	for i := range c.Agents {
		a := &c.Agents[i]
		key := EnvKey(a.Name)
		if v := strings.TrimSpace(getenv("AGENT_" + key + "_TEMPLATE")); v != "" {
			a.Template = v
		}
		if v := strings.TrimSpace(getenv("AGENT_" + key + "_LOG_DIRS")); v != "" {
			var dirs []string
			for _, d := range filepath.SplitList(v) {
				if d = strings.TrimSpace(d); d != "" {
					dirs = append(dirs, d)
				}
			}
			a.LogDirs = dirs
		}
	}
	return nil
}

// EnvKey upper-cases an agent name and replaces characters that are not
// valid in environment variable names.
func EnvKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("no agents defined")
	}
	seen := make(map[string]bool)
	for i, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("agent %d: name is required", i)
		}
		key := strings.ToLower(a.Name)
		if seen[key] {
			return fmt.Errorf("agent %q: duplicate name", a.Name)
		}
		seen[key] = true
	}
	r := c.Run
	if r.TimeoutSeconds < 1 {
		return fmt.Errorf("timeout_seconds must be at least 1")
	}
	if r.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be at least 1")
	}
	switch r.LogScan {
	case LogScanAuto, LogScanOn, LogScanOff:
	default:
		return fmt.Errorf("log_scan must be auto, on or off, got %q", r.LogScan)
	}
	if r.LogMaxFiles < 1 {
		return fmt.Errorf("log_max_files must be at least 1")
	}
	if r.LogMaxBytes < 1 {
		return fmt.Errorf("log_max_bytes must be at least 1")
	}
	if r.LogLookbackSeconds < 0 {
		return fmt.Errorf("log_lookback_seconds must not be negative")
	}
	return nil
}

// Agent finds a configured agent by name, ignoring case.
func (c *Config) Agent(name string) (Agent, bool) {
	for _, a := range c.Agents {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return Agent{}, false
}

// SelectAgents returns the named agents in the order given, or every
// configured agent when names is empty.
func (c *Config) SelectAgents(names []string) ([]Agent, error) {
	if len(names) == 0 {
		return append([]Agent(nil), c.Agents...), nil
	}
	var out []Agent
	seen := make(map[string]bool)
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[strings.ToLower(n)] {
			continue
		}
		a, ok := c.Agent(n)
		if !ok {
			return nil, fmt.Errorf("unknown agent %q", n)
		}
		seen[strings.ToLower(n)] = true
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no agents selected")
	}
	return out, nil
}

func (r Run) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

func (r Run) Lookback() time.Duration {
	return time.Duration(r.LogLookbackSeconds) * time.Second
}

// LogScanEnabled resolves the log scan mode. Auto scans only when units run
// one at a time, since concurrent agents write to the same log roots.
func (r Run) LogScanEnabled() bool {
	switch r.LogScan {
	case LogScanOn:
		return true
	case LogScanOff:
		return false
	}
	return r.MaxParallel == 1
}

func (r Run) FallbackCanPass() bool {
	return r.LogFallbackPass == nil || *r.LogFallbackPass
}
