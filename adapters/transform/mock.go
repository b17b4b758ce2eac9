package transform

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"godrift/domain/chain"
	"godrift/domain/core"
	"godrift/ports"
)

// MockTransformer is a deterministic stand-in for the provider, used in tests
// and offline runs. It echoes its input, optionally degrading a fixed
// fraction of words, so noise already present in the input survives the
// round trip and drift stays measurable without network calls.
type MockTransformer struct {
	mu sync.Mutex

	// TransientFailures maps stage name to the number of transient errors to
	// return before succeeding.
	TransientFailures map[string]int

	// FatalStages lists stages that always fail fatally.
	FatalStages map[string]bool

	// EmptyStages lists stages that return an empty string without error, the
	// way a provider sometimes does on content it refuses to translate.
	EmptyStages map[string]bool

	// DegradeEveryN replaces every Nth word with a deterministic placeholder
	// to simulate lossy translation. Zero disables degradation.
	DegradeEveryN int

	attempts map[string]int
	calls    int
}

// NewMockTransformer creates a well-behaved mock that echoes input.
func NewMockTransformer() *MockTransformer {
	return &MockTransformer{
		TransientFailures: make(map[string]int),
		FatalStages:       make(map[string]bool),
		EmptyStages:       make(map[string]bool),
		attempts:          make(map[string]int),
	}
}

// Calls returns the total number of Transform invocations.
func (m *MockTransformer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Attempts returns how many times a stage was invoked.
func (m *MockTransformer) Attempts(stageName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[stageName]
}

func (m *MockTransformer) Transform(ctx context.Context, stage chain.Stage, input string) (*ports.TransformResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewFatalError(stage.Name, err)
	}

	m.mu.Lock()
	m.calls++
	m.attempts[stage.Name]++
	attempt := m.attempts[stage.Name]
	fatal := m.FatalStages[stage.Name]
	empty := m.EmptyStages[stage.Name]
	remaining := m.TransientFailures[stage.Name]
	if remaining > 0 {
		m.TransientFailures[stage.Name] = remaining - 1
	}
	m.mu.Unlock()

	if fatal {
		return nil, core.NewFatalError(stage.Name, fmt.Errorf("mock fatal failure (attempt %d)", attempt))
	}
	if remaining > 0 {
		return nil, core.NewTransientError(stage.Name, fmt.Errorf("mock transient failure (attempt %d)", attempt))
	}

	output := input
	if empty {
		output = ""
	} else if m.DegradeEveryN > 0 {
		output = degrade(input, stage.Name, m.DegradeEveryN)
	}

	words := len(strings.Fields(input))
	return &ports.TransformResult{
		Text: output,
		Usage: chain.Usage{
			PromptTokens:     words + 20,
			CompletionTokens: len(strings.Fields(output)),
			TotalTokens:      words + 20 + len(strings.Fields(output)),
			Model:            "mock",
			Provider:         "mock",
		},
	}, nil
}

// degrade replaces every nth word with a token derived from the stage name
// and word position, deterministically.
func degrade(input, stageName string, n int) string {
	words := strings.Fields(input)
	for i := range words {
		if (i+1)%n == 0 {
			h := fnv.New32a()
			h.Write([]byte(stageName))
			h.Write([]byte(words[i]))
			words[i] = fmt.Sprintf("w%x", h.Sum32()%0xffff)
		}
	}
	return strings.Join(words, " ")
}
