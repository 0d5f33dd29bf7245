package catalog

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-statusflow"
)

// ErrInvalidConfig marks catalog files that cannot be turned into a graph.
var ErrInvalidConfig = errors.New("invalid catalog config", errors.CategoryValidation).
	WithTextCode("STATUSFLOW_INVALID_CONFIG")

// Config is the on-disk catalog: the status graph, display overlays and role
// bindings.
type Config struct {
	Version      int                                     `json:"version" yaml:"version" toml:"version"`
	Start        string                                  `json:"start" yaml:"start" toml:"start"`
	States       []StateConfig                           `json:"states" yaml:"states" toml:"states"`
	DisplaySteps []DisplayStepConfig                     `json:"display_steps,omitempty" yaml:"display_steps,omitempty" toml:"display_steps,omitempty"`
	Roles        map[string]map[string]*DescriptorConfig `json:"roles" yaml:"roles" toml:"roles"`
}

type StateConfig struct {
	Key          string   `json:"key" yaml:"key" toml:"key"`
	AllowedTypes []string `json:"allowed_types" yaml:"allowed_types" toml:"allowed_types"`
	Nexts        []string `json:"nexts,omitempty" yaml:"nexts,omitempty" toml:"nexts,omitempty"`
}

type DisplayStepConfig struct {
	After string   `json:"after" yaml:"after" toml:"after"`
	Label string   `json:"label" yaml:"label" toml:"label"`
	Types []string `json:"types,omitempty" yaml:"types,omitempty" toml:"types,omitempty"`
}

// DescriptorConfig is the action descriptor a role sees at one state. An
// explicit null, or an empty table in TOML, means no actions.
type DescriptorConfig struct {
	Hint     string         `json:"hint,omitempty" yaml:"hint,omitempty" toml:"hint,omitempty"`
	Actions  []ActionConfig `json:"actions,omitempty" yaml:"actions,omitempty" toml:"actions,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty" toml:"metadata,omitempty"`
}

type ActionConfig struct {
	ID       string   `json:"id" yaml:"id" toml:"id"`
	Label    string   `json:"label,omitempty" yaml:"label,omitempty" toml:"label,omitempty"`
	Style    string   `json:"style,omitempty" yaml:"style,omitempty" toml:"style,omitempty"`
	Confirm  string   `json:"confirm,omitempty" yaml:"confirm,omitempty" toml:"confirm,omitempty"`
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty" toml:"requires,omitempty"`
}

func (d *DescriptorConfig) empty() bool {
	return d == nil || (strings.TrimSpace(d.Hint) == "" && len(d.Actions) == 0 && len(d.Metadata) == 0)
}

// Validate checks structure and that every key names a known status or item
// type. Graph level rules (missing nodes, cycles, incomplete roles) are
// checked when the catalog is compiled.
func (c Config) Validate() error {
	if c.Version != 1 {
		return invalid("unsupported catalog version %d", c.Version)
	}
	if _, err := statusflow.ParseStatus(c.Start); err != nil {
		return invalid("start %q is not a known status", c.Start)
	}
	if len(c.States) == 0 {
		return invalid("catalog requires states")
	}

	seen := make(map[string]struct{}, len(c.States))
	for idx, st := range c.States {
		if _, err := statusflow.ParseStatus(st.Key); err != nil {
			return invalid("states[%d]: unknown status %q", idx, st.Key)
		}
		key := strings.ToLower(strings.TrimSpace(st.Key))
		if _, dup := seen[key]; dup {
			return invalid("states[%d]: duplicate status %s", idx, st.Key)
		}
		seen[key] = struct{}{}
		for _, t := range st.AllowedTypes {
			if _, err := statusflow.ParseItemType(t); err != nil {
				return invalid("state %s: unknown item type %q", st.Key, t)
			}
		}
		for _, next := range st.Nexts {
			if _, err := statusflow.ParseStatus(next); err != nil {
				return invalid("state %s: transition to unknown status %q", st.Key, next)
			}
		}
	}

	for idx, ds := range c.DisplaySteps {
		if _, err := statusflow.ParseStatus(ds.After); err != nil {
			return invalid("display_steps[%d]: unknown status %q", idx, ds.After)
		}
		if strings.TrimSpace(ds.Label) == "" {
			return invalid("display_steps[%d]: label required", idx)
		}
		for _, t := range ds.Types {
			if _, err := statusflow.ParseItemType(t); err != nil {
				return invalid("display_steps[%d]: unknown item type %q", idx, t)
			}
		}
	}

	if len(c.Roles) == 0 {
		return invalid("catalog requires at least one role")
	}
	for role, table := range c.Roles {
		if strings.TrimSpace(role) == "" {
			return invalid("role name required")
		}
		bound := make(map[statusflow.Status]struct{}, len(table))
		for key, desc := range table {
			st, err := statusflow.ParseStatus(key)
			if err != nil {
				return invalid("role %s: unknown status %q", role, key)
			}
			if _, dup := bound[st]; dup {
				return invalid("role %s: status %s bound more than once", role, st)
			}
			bound[st] = struct{}{}
			if desc == nil {
				continue
			}
			ids := make(map[string]struct{}, len(desc.Actions))
			for _, a := range desc.Actions {
				id := strings.TrimSpace(a.ID)
				if id == "" {
					return invalid("role %s status %s: action id required", role, key)
				}
				if _, dup := ids[id]; dup {
					return invalid("role %s status %s: duplicate action %s", role, key, id)
				}
				ids[id] = struct{}{}
			}
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	reason := fmt.Sprintf(format, args...)
	err := ErrInvalidConfig.Clone()
	err.Message = err.Message + ": " + reason
	return err.WithMetadata(map[string]any{"reason": reason})
}
