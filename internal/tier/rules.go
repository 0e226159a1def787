package tier

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/patchwarden/internal/model"
)

// Rule is one path matcher inside a tier rule-set. Pattern and Exclude are
// regular expressions matched case-insensitively anywhere in the path.
// Exclude carves exceptions out of Pattern (Go regexp has no lookahead).
type Rule struct {
	Pattern string `yaml:"pattern"`
	Exclude string `yaml:"exclude,omitempty"`
}

// RuleSet groups the rules for one tier with the reason reported on match.
type RuleSet struct {
	Tier   int    `yaml:"tier"`
	Reason string `yaml:"reason"`
	Rules  []Rule `yaml:"rules"`
}

// Config is the declarative ordered rule table loaded from YAML.
type Config struct {
	RuleSets []RuleSet `yaml:"rule_sets"`
}

// DefaultConfig returns the built-in rule table. It mirrors a conventional
// repository layout: production core under governance, published artifacts
// and docs informed, test and sandbox areas free to develop in, and
// personal or tool-configuration paths outside governance entirely.
func DefaultConfig() *Config {
	return &Config{
		RuleSets: []RuleSet{
			{
				Tier:   int(model.TierGovern),
				Reason: "Quorum approval required — core production code",
				Rules: []Rule{
					{Pattern: `[/\\]core[/\\]`},
					{Pattern: `[/\\]archive[/\\]`},
					{Pattern: `[/\\]governance[/\\]`, Exclude: `[/\\]governance[/\\]commits[/\\]`},
					{Pattern: `[/\\]source_ring[/\\]`},
				},
			},
			{
				Tier:   int(model.TierInform),
				Reason: "Log and allow — low-risk production area",
				Rules: []Rule{
					{Pattern: `[/\\]artifacts[/\\]`},
					{Pattern: `[/\\]docs[/\\]`},
					{Pattern: `[/\\]ui[/\\]`},
					{Pattern: `[/\\]bridge_ring[/\\]`},
					{Pattern: `[/\\]governance[/\\]commits[/\\]`},
				},
			},
			{
				Tier:   int(model.TierAllow),
				Reason: "Proceed freely — development repository",
				Rules: []Rule{
					{Pattern: `[/\\]tests[/\\]`},
					{Pattern: `[/\\]scratch[/\\]`},
					{Pattern: `[/\\]sandbox[/\\]`},
					{Pattern: `-website[/\\]`},
				},
			},
			{
				Tier:   int(model.TierFree),
				Reason: "Proceed immediately — personal or tool configuration",
				Rules: []Rule{
					{Pattern: `[/\\]Desktop[/\\]`},
					{Pattern: `[/\\]Documents[/\\]`, Exclude: `[/\\]Documents[/\\]GitHub[/\\]`},
					{Pattern: `[/\\]\.claude[/\\]`, Exclude: `[/\\]\.claude[/\\]projects[/\\]`},
					{Pattern: `[/\\]AppData[/\\]`},
					{Pattern: `[/\\]tmp[/\\]`},
				},
			},
		},
	}
}

// LoadConfig loads a rule table from a YAML file.
// Empty path or missing file returns the defaults. Invalid YAML is an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read rules config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse rules config: %w", err)
	}
	if len(cfg.RuleSets) == 0 {
		return DefaultConfig(), nil
	}

	return &cfg, nil
}

type compiledRule struct {
	pattern *regexp.Regexp
	exclude *regexp.Regexp
	source  string
}

type compiledSet struct {
	tier   model.Tier
	reason string
	rules  []compiledRule
}

// Table is a compiled, immutable rule table. Classification through a Table
// is pure and safe for unbounded concurrent use.
type Table struct {
	sets []compiledSet
}

// Compile validates and compiles the rule table. Rule-sets are evaluated in
// rising tier order so a GOVERN pattern always outranks an INFORM pattern,
// regardless of how the YAML was arranged.
func (c *Config) Compile() (*Table, error) {
	sets := make([]compiledSet, 0, len(c.RuleSets))
	for _, rs := range c.RuleSets {
		t := model.Tier(rs.Tier)
		if t < model.TierGovern || t > model.TierFree {
			return nil, fmt.Errorf("invalid tier %d in rule table", rs.Tier)
		}
		cs := compiledSet{tier: t, reason: rs.Reason}
		for _, r := range rs.Rules {
			if r.Pattern == "" {
				return nil, fmt.Errorf("tier %d: empty pattern", rs.Tier)
			}
			pat, err := regexp.Compile("(?i)" + r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("tier %d: pattern %q: %w", rs.Tier, r.Pattern, err)
			}
			cr := compiledRule{pattern: pat, source: r.Pattern}
			if r.Exclude != "" {
				exc, err := regexp.Compile("(?i)" + r.Exclude)
				if err != nil {
					return nil, fmt.Errorf("tier %d: exclude %q: %w", rs.Tier, r.Exclude, err)
				}
				cr.exclude = exc
			}
			cs.rules = append(cs.rules, cr)
		}
		sets = append(sets, cs)
	}

	sort.SliceStable(sets, func(i, j int) bool { return sets[i].tier < sets[j].tier })
	return &Table{sets: sets}, nil
}

// MustCompileDefault compiles the built-in rule table.
func MustCompileDefault() *Table {
	t, err := DefaultConfig().Compile()
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultConfigYAML returns a commented YAML rule table for init-rules.
func DefaultConfigYAML() string {
	return `# patchwarden tier rules
# Generated by: patchwarden init-rules
#
# Rule-sets are evaluated in rising tier order (GOVERN first).
# The first matching rule anywhere in the table wins.
# Paths that match nothing default to tier 2 (INFORM) — never FREE.
#
# Fields:
#   tier:    1=GOVERN (quorum approval), 2=INFORM (log and allow),
#            3=ALLOW (proceed freely), 4=FREE (no proposal at all)
#   reason:  reported with every classification for audit
#   pattern: case-insensitive regular expression matched against the path
#   exclude: optional regexp carving exceptions out of pattern

rule_sets:
  - tier: 1
    reason: "Quorum approval required — core production code"
    rules:
      - pattern: '[/\\]core[/\\]'
      - pattern: '[/\\]archive[/\\]'
      - pattern: '[/\\]governance[/\\]'
        exclude: '[/\\]governance[/\\]commits[/\\]'
      - pattern: '[/\\]source_ring[/\\]'

  - tier: 2
    reason: "Log and allow — low-risk production area"
    rules:
      - pattern: '[/\\]artifacts[/\\]'
      - pattern: '[/\\]docs[/\\]'
      - pattern: '[/\\]ui[/\\]'
      - pattern: '[/\\]bridge_ring[/\\]'
      - pattern: '[/\\]governance[/\\]commits[/\\]'

  - tier: 3
    reason: "Proceed freely — development repository"
    rules:
      - pattern: '[/\\]tests[/\\]'
      - pattern: '[/\\]scratch[/\\]'
      - pattern: '[/\\]sandbox[/\\]'
      - pattern: '-website[/\\]'

  - tier: 4
    reason: "Proceed immediately — personal or tool configuration"
    rules:
      - pattern: '[/\\]Desktop[/\\]'
      - pattern: '[/\\]Documents[/\\]'
        exclude: '[/\\]Documents[/\\]GitHub[/\\]'
      - pattern: '[/\\]\.claude[/\\]'
        exclude: '[/\\]\.claude[/\\]projects[/\\]'
      - pattern: '[/\\]AppData[/\\]'
      - pattern: '[/\\]tmp[/\\]'
`
}
