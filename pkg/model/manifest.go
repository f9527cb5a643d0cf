package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Manifest is a BASIS manifest: a declarative description of an agent's
// capabilities and constraints, frozen at registration.
type Manifest struct {
	SchemaVersion string            `json:"schema_version"`
	AgentInfo     ManifestAgentInfo `json:"agent"`
	Capabilities  []ManifestCapability `json:"capabilities"`
	Constraints   []ManifestConstraint `json:"constraints,omitempty"`
	DefaultAutonomy string          `json:"default_autonomy"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
}

type ManifestAgentInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

type ManifestCapability struct {
	Code       string         `json:"code"`
	Level      string         `json:"level"`
	Scope      string         `json:"scope,omitempty"`
	Conditions map[string]any `json:"conditions,omitempty"`
}

type ManifestConstraintType string

const (
	ConstraintResource ManifestConstraintType = "resource"
	ConstraintTime     ManifestConstraintType = "time"
	ConstraintScope    ManifestConstraintType = "scope"
	ConstraintRate     ManifestConstraintType = "rate"
)

type ManifestConstraintAction string

const (
	ConstraintActionAllow ManifestConstraintAction = "allow"
	ConstraintActionDeny  ManifestConstraintAction = "deny"
	ConstraintActionAudit ManifestConstraintAction = "audit"
	ConstraintActionGate  ManifestConstraintAction = "gate"
)

type ManifestConstraint struct {
	Type   ManifestConstraintType   `json:"type"`
	Rule   string                   `json:"rule"`
	Action ManifestConstraintAction `json:"action"`
}

// manifestSchema is the JSON Schema BASIS manifests must validate against.
// Compiled once at package init; registration fails closed if a manifest
// does not validate.
var manifestSchema = mustCompileManifestSchema()

const manifestSchemaDoc = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["schema_version", "agent", "capabilities", "default_autonomy"],
  "properties": {
    "schema_version": {"type": "string"},
    "agent": {
      "type": "object",
      "required": ["name", "version"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "version": {"type": "string", "minLength": 1},
        "description": {"type": "string"}
      }
    },
    "capabilities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["code", "level"],
        "properties": {
          "code": {"type": "string", "minLength": 1},
          "level": {"type": "string"},
          "scope": {"type": "string"}
        }
      }
    },
    "default_autonomy": {"type": "string"}
  }
}`

func mustCompileManifestSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("basis-manifest.json", strings.NewReader(manifestSchemaDoc)); err != nil {
		panic(fmt.Sprintf("model: invalid embedded manifest schema: %v", err))
	}
	schema, err := compiler.Compile("basis-manifest.json")
	if err != nil {
		panic(fmt.Sprintf("model: manifest schema compile failed: %v", err))
	}
	return schema
}

// ValidateManifest parses raw JSON into a Manifest and validates it against
// the BASIS manifest schema plus semantic-version well-formedness checks.
func ValidateManifest(raw json.RawMessage) (Manifest, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Manifest{}, fmt.Errorf("manifest: invalid JSON: %w", err)
	}
	if err := manifestSchema.Validate(generic); err != nil {
		return Manifest{}, fmt.Errorf("manifest: schema validation failed: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("manifest: decode failed: %w", err)
	}
	if _, err := semver.NewVersion(m.AgentInfo.Version); err != nil {
		return Manifest{}, fmt.Errorf("manifest: agent.version %q is not a valid semantic version: %w", m.AgentInfo.Version, err)
	}
	return m, nil
}

// CompatibleSchemaVersion reports whether a manifest's schema_version
// satisfies the given semver constraint (e.g. ">= 1.0.0, < 2.0.0").
func CompatibleSchemaVersion(m Manifest, constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("manifest: invalid constraint %q: %w", constraint, err)
	}
	v, err := semver.NewVersion(m.SchemaVersion)
	if err != nil {
		return false, fmt.Errorf("manifest: schema_version %q is not semantic: %w", m.SchemaVersion, err)
	}
	return c.Check(v), nil
}
