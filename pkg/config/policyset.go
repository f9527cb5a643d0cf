package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/helmward/agentgov/pkg/authz"
)

// PolicySet is the on-disk form of the authorize pipeline's hook set,
// letting operators add pre/post-authorize CEL checks without a
// redeploy. This is the YAML policy-set file SigningKeySeed's neighbor
// settings assume: a list of named CEL expressions per stage.
type PolicySet struct {
	Hooks []PolicySetHook `yaml:"hooks"`
}

// PolicySetHook mirrors pkg/authz.Hook in a YAML-friendly shape.
type PolicySetHook struct {
	Name  string `yaml:"name"`
	Stage string `yaml:"stage"`
	Expr  string `yaml:"expr"`
}

// LoadPolicySet reads and parses a YAML policy-set file. A missing
// PolicySetPath is not an error: callers fall back to an empty hook set.
func LoadPolicySet(path string) ([]authz.Hook, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read policy set %q: %w", path, err)
	}

	var set PolicySet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("config: parse policy set %q: %w", path, err)
	}

	hooks := make([]authz.Hook, 0, len(set.Hooks))
	for _, h := range set.Hooks {
		stage := authz.HookStage(h.Stage)
		if stage != authz.StagePreAuthorize && stage != authz.StagePostAuthorize {
			return nil, fmt.Errorf("config: policy set %q: hook %q has unknown stage %q", path, h.Name, h.Stage)
		}
		hooks = append(hooks, authz.Hook{Name: h.Name, Stage: stage, Expr: h.Expr})
	}
	return hooks, nil
}
