package tool

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Argument types accepted in tool schemas.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// ArgSpec describes one tool argument.
type ArgSpec struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Required    bool               `json:"-"`
	Enum        []string           `json:"enum,omitempty"`
	Format      string             `json:"format,omitempty"`
	Items       *ArgSpec           `json:"items,omitempty"`
	Properties  map[string]ArgSpec `json:"properties,omitempty"`
}

// Definition is the advertised contract of one tool.
type Definition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Arguments   map[string]ArgSpec `json:"arguments"`
}

// ArgumentNames returns the argument names in deterministic order.
func (d Definition) ArgumentNames() []string {
	names := make([]string, 0, len(d.Arguments))
	for name := range d.Arguments {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RequiredArguments returns the required argument names in deterministic order.
func (d Definition) RequiredArguments() []string {
	var names []string
	for _, name := range d.ArgumentNames() {
		if d.Arguments[name].Required {
			names = append(names, name)
		}
	}
	return names
}

// InputSchema renders the argument set as a JSON Schema object.
func (d Definition) InputSchema() map[string]any {
	properties := make(map[string]ArgSpec, len(d.Arguments))
	for name, spec := range d.Arguments {
		properties[name] = spec
	}
	schema := map[string]any{
		"type":                 TypeObject,
		"properties":           properties,
		"additionalProperties": false,
	}
	if required := d.RequiredArguments(); len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// RawInputSchema is InputSchema encoded as JSON.
func (d Definition) RawInputSchema() (json.RawMessage, error) {
	raw, err := json.Marshal(d.InputSchema())
	if err != nil {
		return nil, fmt.Errorf("tool: encode schema for %s: %w", d.Name, err)
	}
	return raw, nil
}

var validArgTypes = map[string]struct{}{
	TypeString:  {},
	TypeNumber:  {},
	TypeInteger: {},
	TypeBoolean: {},
	TypeArray:   {},
	TypeObject:  {},
}

func validateDefinition(def Definition) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return fmt.Errorf("tool: definition name is empty")
	}
	if !strings.HasPrefix(name, "ghost_") {
		return fmt.Errorf("tool: definition %q must be named ghost_<entity>_<verb>", name)
	}
	if strings.TrimSpace(def.Description) == "" {
		return fmt.Errorf("tool: definition %q has no description", name)
	}
	for _, arg := range def.ArgumentNames() {
		if err := validateArgSpec(def.Arguments[arg]); err != nil {
			return fmt.Errorf("tool: definition %q argument %q: %w", name, arg, err)
		}
	}
	return nil
}

func validateArgSpec(spec ArgSpec) error {
	if _, ok := validArgTypes[spec.Type]; !ok {
		return fmt.Errorf("unsupported type %q", spec.Type)
	}
	if len(spec.Enum) > 0 && spec.Type != TypeString {
		return fmt.Errorf("enum is only supported for strings")
	}
	if spec.Items != nil {
		if spec.Type != TypeArray {
			return fmt.Errorf("items is only supported for arrays")
		}
		if err := validateArgSpec(*spec.Items); err != nil {
			return fmt.Errorf("items: %w", err)
		}
	}
	for name, prop := range spec.Properties {
		if spec.Type != TypeObject {
			return fmt.Errorf("properties are only supported for objects")
		}
		if err := validateArgSpec(prop); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
	}
	return nil
}

func str(description string) ArgSpec {
	return ArgSpec{Type: TypeString, Description: description}
}

func requiredStr(description string) ArgSpec {
	return ArgSpec{Type: TypeString, Description: description, Required: true}
}

func enumStr(description string, values ...string) ArgSpec {
	return ArgSpec{Type: TypeString, Description: description, Enum: values}
}

func dateStr(description string) ArgSpec {
	return ArgSpec{Type: TypeString, Description: description, Format: "date-time"}
}

func num(description string) ArgSpec {
	return ArgSpec{Type: TypeNumber, Description: description}
}

func boolean(description string) ArgSpec {
	return ArgSpec{Type: TypeBoolean, Description: description}
}

func list(description string) ArgSpec {
	return ArgSpec{Type: TypeArray, Description: description}
}

func object(description string) ArgSpec {
	return ArgSpec{Type: TypeObject, Description: description}
}
