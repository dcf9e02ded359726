package backup

import (
	"fmt"
	"slices"
)

// FieldType is the admin-UI input type for a settings field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldPassword FieldType = "password"
	FieldNumber   FieldType = "number"
	FieldBoolean  FieldType = "boolean"
	FieldSelect   FieldType = "select"
)

// SettingsField describes one provider setting: the contract the admin
// UI renders and the factory validates against.
type SettingsField struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Default  any       `json:"default,omitempty"`
	Options  []string  `json:"options,omitempty"`
}

// Schema is the ordered settings schema of one provider type.
type Schema []SettingsField

// Validate checks settings against the schema. Missing required fields
// and type mismatches are construction-time failures; a provider is
// never built from an invalid config.
func (s Schema) Validate(settings map[string]any) error {
	for _, f := range s {
		v, ok := settings[f.Key]
		if !ok || v == nil || v == "" {
			if f.Required {
				return fmt.Errorf("missing required setting %q", f.Key)
			}
			continue
		}
		if err := checkFieldType(f, v); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDefaults returns a copy of settings with schema defaults filled
// in for absent optional fields. Nil and empty-string values count as
// absent, exactly as Validate treats them: a JSON null in a stored
// settings document must yield the default, not reach a factory.
func (s Schema) ApplyDefaults(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for k, v := range settings {
		out[k] = v
	}
	for _, f := range s {
		if v, ok := out[f.Key]; !ok || v == nil || v == "" {
			if f.Default != nil {
				out[f.Key] = f.Default
			} else {
				delete(out, f.Key)
			}
		}
	}
	return out
}

func checkFieldType(f SettingsField, v any) error {
	switch f.Type {
	case FieldText, FieldPassword:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("setting %q must be a string", f.Key)
		}
	case FieldNumber:
		switch v.(type) {
		case int, int64, float64:
		default:
			return fmt.Errorf("setting %q must be a number", f.Key)
		}
	case FieldBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("setting %q must be a boolean", f.Key)
		}
	case FieldSelect:
		sv, ok := v.(string)
		if !ok || !slices.Contains(f.Options, sv) {
			return fmt.Errorf("setting %q must be one of %v", f.Key, f.Options)
		}
	}
	return nil
}
