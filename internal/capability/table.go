package capability

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alanmeadows/catcode/internal/config"
	"github.com/alanmeadows/catcode/internal/task"
)

//go:embed compat.yaml
var builtinTable []byte

// Rule maps a configuration kind and a set of model-name prefixes to the
// tasks they support.
type Rule struct {
	ConfigKind    string      `yaml:"config_kind"`
	ModelPrefixes []string    `yaml:"model_prefixes"`
	Tasks         []task.Kind `yaml:"tasks"`
}

// Table is the compatibility table. It is the only place model and
// configuration names are matched.
type Table struct {
	Rules []Rule `yaml:"rules"`
}

// ParseTable decodes a YAML compatibility table.
func ParseTable(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("parsing compatibility table: %w", err)
	}
	for i, r := range t.Rules {
		if strings.TrimSpace(r.ConfigKind) == "" {
			return Table{}, fmt.Errorf("compatibility rule %d: config_kind is required", i)
		}
		for j, k := range r.Tasks {
			parsed, err := task.Parse(string(k))
			if err != nil {
				return Table{}, fmt.Errorf("compatibility rule %d: %w", i, err)
			}
			t.Rules[i].Tasks[j] = parsed
		}
	}
	return t, nil
}

// BuiltinTable returns the table shipped with catcode.
func BuiltinTable() Table {
	t, err := ParseTable(builtinTable)
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTable returns the compatibility table. A user table at
// ~/.config/catcode/compat.yaml replaces the built-in one; rules from the
// config file are appended to whichever is used.
func LoadTable(extra []config.RuleConfig) (Table, error) {
	t := BuiltinTable()

	if configDir, err := os.UserConfigDir(); err == nil {
		userPath := filepath.Join(configDir, "catcode", "compat.yaml")
		if data, err := os.ReadFile(userPath); err == nil {
			if t, err = ParseTable(data); err != nil {
				return Table{}, fmt.Errorf("%s: %w", userPath, err)
			}
		}
	}

	for _, rc := range extra {
		r := Rule{ConfigKind: rc.ConfigKind, ModelPrefixes: rc.ModelPrefixes}
		for _, name := range rc.Tasks {
			k, err := task.Parse(name)
			if err != nil {
				return Table{}, fmt.Errorf("config rule for %s: %w", rc.ConfigKind, err)
			}
			r.Tasks = append(r.Tasks, k)
		}
		t.Rules = append(t.Rules, r)
	}
	return t, nil
}

// KnowsKind reports whether any rule names the configuration kind.
func (t Table) KnowsKind(configKind string) bool {
	for _, r := range t.Rules {
		if strings.EqualFold(r.ConfigKind, configKind) {
			return true
		}
	}
	return false
}

// Kinds returns the configuration kinds named by the rules, in rule order.
func (t Table) Kinds() []string {
	var out []string
	for _, r := range t.Rules {
		if !slices.Contains(out, r.ConfigKind) {
			out = append(out, r.ConfigKind)
		}
	}
	return out
}

// TasksFor returns the tasks supported by the configuration kind and
// model, in task.All order. Unknown kinds and unmatched models yield none.
func (t Table) TasksFor(configKind, modelName string) []task.Kind {
	if configKind == "" || modelName == "" {
		return nil
	}
	ref := ParseModelRef(modelName)

	var out []task.Kind
	for _, r := range t.Rules {
		if !strings.EqualFold(r.ConfigKind, configKind) {
			continue
		}
		if !slices.ContainsFunc(r.ModelPrefixes, ref.HasPrefix) {
			continue
		}
		for _, k := range r.Tasks {
			if !slices.Contains(out, k) {
				out = append(out, k)
			}
		}
	}

	slices.SortFunc(out, func(a, b task.Kind) int {
		return slices.Index(task.All(), a) - slices.Index(task.All(), b)
	})
	return out
}
