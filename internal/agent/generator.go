package agent

import (
	"context"
	"errors"
)

// ErrEmptyGeneration is returned when the model answers with no text.
var ErrEmptyGeneration = errors.New("model returned an empty response")

// Generator turns a prompt into model text. One call, no retries.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

const generatorSystemPrompt = "You translate analytics questions into exactly one read-only SQL query. " +
	"Reply with the SQL only."
