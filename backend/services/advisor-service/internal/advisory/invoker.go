package advisory

import (
	"context"
	"encoding/json"
)

// Invoker sends a rendered prompt to a hosted language model and returns its raw
// JSON answer. Implementations own transport concerns such as timeouts; the
// advisory layer calls Invoke at most once per invocation and never retries.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, output *Schema) (json.RawMessage, error)
}

// InvokerFunc adapts a plain function to Invoker.
type InvokerFunc func(ctx context.Context, prompt string, output *Schema) (json.RawMessage, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, prompt string, output *Schema) (json.RawMessage, error) {
	return f(ctx, prompt, output)
}
