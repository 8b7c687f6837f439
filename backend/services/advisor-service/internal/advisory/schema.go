package advisory

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the JSON type a field must carry.
type Kind string

const (
	KindString      Kind = "string"
	KindNumber      Kind = "number"
	KindBoolean     Kind = "boolean"
	KindStringArray Kind = "string_array"
)

// Field declares one required member of a schema. Rules uses validator tag syntax
// and is evaluated after the type check passed.
type Field struct {
	Name        string
	Kind        Kind
	Rules       string
	Description string
}

// Check is a cross-field constraint. It only runs on documents whose fields all
// passed their own rules, so it may type-assert freely.
type Check func(doc Document) *Violation

// Schema is a declarative description of a request or response object.
type Schema struct {
	Name   string
	Fields []Field
	Checks []Check
}

// Document is a JSON object narrowed to the fields of a schema. Numbers are
// float64 and string arrays are []string.
type Document map[string]any

// Result is either a validated Document or the list of violations.
type Result struct {
	Value      Document
	Violations []Violation
}

// OK reports whether validation succeeded.
func (r Result) OK() bool { return len(r.Violations) == 0 }

// Validate checks value against the schema. Unknown members are dropped from the
// returned document. Numeric strings are not coerced.
func (s *Schema) Validate(value any) Result {
	obj, ok := asObject(value)
	if !ok {
		rule := "type:object"
		if value == nil {
			rule = "required"
		}
		return Result{Violations: []Violation{{Path: "$", Rule: rule}}}
	}

	doc := make(Document, len(s.Fields))
	var violations []Violation
	for _, f := range s.Fields {
		raw, present := obj[f.Name]
		if !present || raw == nil {
			violations = append(violations, Violation{Path: f.Name, Rule: "required"})
			continue
		}
		typed, typeViolations := coerceKind(f, raw)
		if len(typeViolations) > 0 {
			violations = append(violations, typeViolations...)
			continue
		}
		if ruleViolations := checkRules(f.Name, typed, f.Rules); len(ruleViolations) > 0 {
			violations = append(violations, ruleViolations...)
			continue
		}
		doc[f.Name] = typed
	}
	if len(violations) > 0 {
		return Result{Violations: violations}
	}

	for _, check := range s.Checks {
		if v := check(doc); v != nil {
			violations = append(violations, *v)
		}
	}
	if len(violations) > 0 {
		return Result{Violations: violations}
	}
	return Result{Value: doc}
}

// Has reports whether the schema declares a field with the given name.
func (s *Schema) Has(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// JSONSchema renders the declaration as a JSON Schema object, used to ask the model
// for structured output.
func (s *Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		var prop map[string]any
		switch f.Kind {
		case KindStringArray:
			prop = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
		default:
			prop = map[string]any{"type": string(f.Kind)}
		}
		if f.Kind == KindNumber {
			addNumericBounds(prop, f.Rules)
		}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		props[f.Name] = prop
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

var boundKeywords = map[string]string{
	"gte": "minimum",
	"lte": "maximum",
	"gt":  "exclusiveMinimum",
	"lt":  "exclusiveMaximum",
}

// addNumericBounds maps gte/lte/gt/lt rules onto the matching JSON Schema keywords.
func addNumericBounds(prop map[string]any, rules string) {
	for _, rule := range strings.Split(rules, ",") {
		tag, param, ok := strings.Cut(strings.TrimSpace(rule), "=")
		if !ok {
			continue
		}
		keyword, known := boundKeywords[tag]
		if !known {
			continue
		}
		if n, err := strconv.ParseFloat(param, 64); err == nil {
			prop[keyword] = n
		}
	}
}

// Decode copies a validated document into a typed value via its json tags.
func (d Document) Decode(out any) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func asObject(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case Document:
		return v, v != nil
	case map[string]any:
		return v, v != nil
	default:
		return nil, false
	}
}

func coerceKind(f Field, raw any) (any, []Violation) {
	mismatch := []Violation{{Path: f.Name, Rule: "type:" + string(f.Kind)}}
	switch f.Kind {
	case KindString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return nil, mismatch
	case KindNumber:
		if n, ok := toFloat(raw); ok {
			return n, nil
		}
		return nil, mismatch
	case KindBoolean:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
		return nil, mismatch
	case KindStringArray:
		return toStringSlice(f.Name, raw)
	default:
		return nil, []Violation{{Path: f.Name, Rule: fmt.Sprintf("unknown kind %q", f.Kind)}}
	}
}

func toFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toStringSlice(name string, raw any) (any, []Violation) {
	switch items := raw.(type) {
	case []string:
		return append([]string{}, items...), nil
	case []any:
		out := make([]string, 0, len(items))
		var violations []Violation
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				violations = append(violations, Violation{Path: fmt.Sprintf("%s[%d]", name, i), Rule: "type:string"})
				continue
			}
			out = append(out, s)
		}
		if len(violations) > 0 {
			return nil, violations
		}
		return out, nil
	default:
		return nil, []Violation{{Path: name, Rule: "type:" + string(KindStringArray)}}
	}
}
