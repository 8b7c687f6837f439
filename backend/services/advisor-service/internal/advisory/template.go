package advisory

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"
)

const (
	placeholderStart = "{{"
	placeholderEnd   = "}}"
)

// Template is a prompt with {{field}} placeholders bound to an input schema.
type Template struct {
	tpl          *fasttemplate.Template
	placeholders []string
}

// CompileTemplate parses text and checks that every placeholder names a field of
// input. A dangling placeholder is reported as ErrInvalidDefinition.
func CompileTemplate(text string, input *Schema) (*Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty prompt template", ErrInvalidDefinition)
	}
	if input == nil {
		return nil, fmt.Errorf("%w: template needs an input schema", ErrInvalidDefinition)
	}

	tpl, err := fasttemplate.NewTemplate(text, placeholderStart, placeholderEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	seen := make(map[string]struct{})
	var names []string
	var undeclared []string
	tpl.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		name := strings.TrimSpace(tag)
		if _, ok := seen[name]; ok {
			return 0, nil
		}
		seen[name] = struct{}{}
		if !input.Has(name) {
			undeclared = append(undeclared, strconv.Quote(name))
			return 0, nil
		}
		names = append(names, name)
		return 0, nil
	})
	if len(undeclared) > 0 {
		return nil, fmt.Errorf("%w: template references undeclared field(s) %s of %s",
			ErrInvalidDefinition, strings.Join(undeclared, ", "), input.Name)
	}

	return &Template{tpl: tpl, placeholders: names}, nil
}

// Placeholders returns the distinct field names used by the template.
func (t *Template) Placeholders() []string {
	return append([]string(nil), t.placeholders...)
}

// Render substitutes every placeholder with the string form of the field value.
// Values are inserted literally.
func (t *Template) Render(doc Document) (string, error) {
	return t.tpl.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		name := strings.TrimSpace(tag)
		value, ok := doc[name]
		if !ok {
			return 0, fmt.Errorf("advisory: no value for placeholder %q", name)
		}
		text, err := fieldString(value)
		if err != nil {
			return 0, fmt.Errorf("advisory: render %q: %w", name, err)
		}
		return w.Write([]byte(text))
	})
}

func fieldString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
