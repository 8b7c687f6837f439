package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the lifecycle stage of a single invocation.
type State string

const (
	StateIdle             State = "idle"
	StateValidatingInput  State = "validating_input"
	StateRendering        State = "rendering"
	StateAwaitingModel    State = "awaiting_model"
	StateValidatingOutput State = "validating_output"
	StateSucceeded        State = "succeeded"
	StateFailed           State = "failed"
)

// Definition describes an advisory function before it is bound to an invoker.
type Definition struct {
	Name   string
	Input  *Schema
	Output *Schema
	Prompt string
}

// Function validates a request, renders the prompt, queries the model once and
// validates the answer. It holds no per-call state and is safe for concurrent use.
type Function[Req any, Res any] struct {
	name     string
	input    *Schema
	output   *Schema
	template *Template
	invoker  Invoker
	logger   *zap.Logger
}

// NewFunction checks the definition and binds it to invoker.
func NewFunction[Req any, Res any](def Definition, invoker Invoker, logger *zap.Logger) (*Function[Req, Res], error) {
	if strings.TrimSpace(def.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if def.Input == nil || len(def.Input.Fields) == 0 {
		return nil, fmt.Errorf("%w: %s has no input schema", ErrInvalidDefinition, def.Name)
	}
	if def.Output == nil || len(def.Output.Fields) == 0 {
		return nil, fmt.Errorf("%w: %s has no output schema", ErrInvalidDefinition, def.Name)
	}
	if invoker == nil {
		return nil, fmt.Errorf("%w: %s has no model invoker", ErrInvalidDefinition, def.Name)
	}
	tpl, err := CompileTemplate(def.Prompt, def.Input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", def.Name, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Function[Req, Res]{
		name:     def.Name,
		input:    def.Input,
		output:   def.Output,
		template: tpl,
		invoker:  invoker,
		logger:   logger.With(zap.String("advisory", def.Name)),
	}, nil
}

// Name returns the function name.
func (f *Function[Req, Res]) Name() string { return f.name }

// OutputSchema exposes the output contract handed to the model.
func (f *Function[Req, Res]) OutputSchema() *Schema { return f.output }

// Invoke runs one advisory call. input may be a Req, *Req, map[string]any, Document,
// []byte or json.RawMessage. Errors are *ValidationError, *OutputContractError or
// *RemoteCallError.
func (f *Function[Req, Res]) Invoke(ctx context.Context, input any) (Res, error) {
	var zero Res
	inv := f.begin()

	inv.advance(StateValidatingInput)
	_, doc, err := f.ValidateInput(input)
	if err != nil {
		return zero, inv.fail(err)
	}

	inv.advance(StateRendering)
	prompt, err := f.template.Render(doc)
	if err != nil {
		return zero, inv.fail(err)
	}

	inv.advance(StateAwaitingModel)
	raw, err := f.call(ctx, prompt)
	if err != nil {
		return zero, inv.fail(&RemoteCallError{Function: f.name, Err: err})
	}

	inv.advance(StateValidatingOutput)
	res, err := f.ValidateOutput(raw)
	if err != nil {
		return zero, inv.fail(err)
	}

	inv.advance(StateSucceeded)
	return res, nil
}

// ValidateInput checks input against the input schema and returns it narrowed to Req
// along with the document used for rendering.
func (f *Function[Req, Res]) ValidateInput(input any) (Req, Document, error) {
	var req Req
	value, err := toValue(input)
	if err != nil {
		return req, nil, &ValidationError{Function: f.name, Violations: []Violation{{Path: "$", Rule: "json"}}}
	}

	result := f.input.Validate(value)
	if !result.OK() {
		return req, nil, &ValidationError{Function: f.name, Violations: result.Violations}
	}
	if err := result.Value.Decode(&req); err != nil {
		return req, nil, &ValidationError{Function: f.name, Violations: []Violation{{Path: "$", Rule: "decode: " + err.Error()}}}
	}
	return req, result.Value, nil
}

// ValidateOutput checks a raw model answer against the output schema. Nothing short
// of a full match is accepted.
func (f *Function[Req, Res]) ValidateOutput(raw json.RawMessage) (Res, error) {
	var res Res
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return res, &OutputContractError{Function: f.name, Violations: []Violation{{Path: "$", Rule: "required"}}}
	}

	var value any
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return res, &OutputContractError{Function: f.name, Violations: []Violation{{Path: "$", Rule: "json"}}, Cause: err}
	}

	result := f.output.Validate(value)
	if !result.OK() {
		return res, &OutputContractError{Function: f.name, Violations: result.Violations}
	}
	if err := result.Value.Decode(&res); err != nil {
		return res, &OutputContractError{Function: f.name, Cause: err}
	}
	return res, nil
}

// call performs the single model request. A panicking invoker is reported as a
// failed remote call.
func (f *Function[Req, Res]) call(ctx context.Context, prompt string) (raw json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw = nil
			err = fmt.Errorf("invoker panic: %v", r)
		}
	}()
	return f.invoker.Invoke(ctx, prompt, f.output)
}

func toValue(input any) (any, error) {
	switch v := input.(type) {
	case nil:
		return nil, nil
	case Document:
		return v, nil
	case map[string]any:
		return v, nil
	case json.RawMessage:
		return decodeJSON(v)
	case []byte:
		return decodeJSON(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return decodeJSON(data)
	}
}

func decodeJSON(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}

type invocation struct {
	id      string
	state   State
	started time.Time
	logger  *zap.Logger
}

func (f *Function[Req, Res]) begin() *invocation {
	id := uuid.NewString()
	return &invocation{
		id:      id,
		state:   StateIdle,
		started: time.Now(),
		logger:  f.logger.With(zap.String("invocation_id", id)),
	}
}

func (i *invocation) advance(next State) {
	i.logger.Debug("advisory state change",
		zap.String("from", string(i.state)),
		zap.String("to", string(next)),
	)
	i.state = next
	if next == StateSucceeded {
		i.logger.Info("advisory invocation succeeded", zap.Duration("elapsed", time.Since(i.started)))
	}
}

func (i *invocation) fail(err error) error {
	stage := i.state
	i.state = StateFailed

	fields := []zap.Field{
		zap.String("stage", string(stage)),
		zap.Duration("elapsed", time.Since(i.started)),
		zap.Error(err),
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		i.logger.Info("advisory request rejected", fields...)
	} else {
		i.logger.Warn("advisory invocation failed", fields...)
	}
	return err
}
