package advisory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Rule tags registered on top of the validator built-ins.
const (
	RuleNotBlank   = "notblank"
	RuleISO8601    = "iso8601"
	RuleJSONArray  = "jsonarray"
	RuleJSONObject = "jsonobject"
)

var iso8601Layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	time.DateOnly,
}

var ruleEngine = newRuleEngine()

func newRuleEngine() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegister(v, RuleNotBlank, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	mustRegister(v, RuleISO8601, func(fl validator.FieldLevel) bool {
		_, err := ParseISO8601(fl.Field().String())
		return err == nil
	})
	mustRegister(v, RuleJSONArray, func(fl validator.FieldLevel) bool {
		var items []json.RawMessage
		return json.Unmarshal([]byte(fl.Field().String()), &items) == nil && items != nil
	})
	mustRegister(v, RuleJSONObject, func(fl validator.FieldLevel) bool {
		var obj map[string]json.RawMessage
		return json.Unmarshal([]byte(fl.Field().String()), &obj) == nil && obj != nil
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("advisory: register rule %s: %v", tag, err))
	}
}

// ParseISO8601 accepts an RFC 3339 timestamp, a zoneless date-time or a calendar date.
// Surrounding whitespace is rejected since the value is rendered into prompts verbatim.
func ParseISO8601(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}
	if strings.TrimSpace(value) != value {
		return time.Time{}, fmt.Errorf("%q has surrounding whitespace", value)
	}
	for _, layout := range iso8601Layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not an ISO-8601 date", value)
}

// checkRules runs a validator tag against a single typed value.
func checkRules(path string, value any, rules string) []Violation {
	if rules == "" {
		return nil
	}
	err := ruleEngine.Var(value, rules)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []Violation{{Path: path, Rule: err.Error()}}
	}
	out := make([]Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out = append(out, Violation{Path: path, Rule: rule})
	}
	return out
}
