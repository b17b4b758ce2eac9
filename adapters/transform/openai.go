package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"godrift/domain/chain"
	"godrift/domain/core"
	"godrift/ports"
)

// Config holds OpenAI client settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// NewTransformer creates a translation transformer from config.
func NewTransformer(config Config) (ports.Transformer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("missing OpenAI API key")
	}

	baseURL := strings.TrimSpace(config.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &OpenAITransformer{
		APIKey:      config.APIKey,
		BaseURL:     baseURL,
		Model:       config.Model,
		MaxTokens:   config.MaxTokens,
		Temperature: config.Temperature,
		Timeout:     config.Timeout,
	}, nil
}

// OpenAITransformer implements ports.Transformer against the Chat Completions API.
type OpenAITransformer struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// StagePrompt builds the translation instruction for a stage. The wording is
// deliberately strict: any commentary from the model would contaminate the
// drift measurement.
func StagePrompt(stage chain.Stage) string {
	if stage.Prompt != "" {
		return stage.Prompt
	}
	return fmt.Sprintf(
		"Translate the following %s text to %s. Preserve the meaning as faithfully as possible. Output only the translation, nothing else.",
		stage.SourceLang, stage.TargetLang,
	)
}

func (t *OpenAITransformer) Transform(ctx context.Context, stage chain.Stage, input string) (*ports.TransformResult, error) {
	if strings.TrimSpace(t.Model) == "" {
		return nil, core.NewFatalError(stage.Name, fmt.Errorf("missing model"))
	}
	maxTokens := t.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type reqBody struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature,omitempty"`
		MaxTokens   int     `json:"max_tokens,omitempty"`
	}
	body := reqBody{
		Model: t.Model,
		Messages: []msg{
			{Role: "system", Content: StagePrompt(stage)},
			{Role: "user", Content: input},
		},
		Temperature: t.Temperature,
		MaxTokens:   maxTokens,
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, core.NewFatalError(stage.Name, fmt.Errorf("marshal request: %w", err))
	}

	client := &http.Client{Timeout: t.Timeout}
	url := strings.TrimRight(t.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, core.NewFatalError(stage.Name, fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+t.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, classifyNetError(stage.Name, err)
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewTransientError(stage.Name, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyHTTPError(stage.Name, resp.StatusCode, respRaw)
	}

	type choice struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	type respBody struct {
		Choices []choice `json:"choices"`
		Usage   struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	var decoded respBody
	if err := json.Unmarshal(respRaw, &decoded); err != nil {
		return nil, core.NewTransientError(stage.Name, fmt.Errorf("unmarshal response: %w", err))
	}
	if len(decoded.Choices) == 0 {
		return nil, core.NewTransientError(stage.Name, fmt.Errorf("response missing choices"))
	}

	return &ports.TransformResult{
		Text: strings.TrimSpace(decoded.Choices[0].Message.Content),
		Usage: chain.Usage{
			PromptTokens:     decoded.Usage.PromptTokens,
			CompletionTokens: decoded.Usage.CompletionTokens,
			TotalTokens:      decoded.Usage.TotalTokens,
			Model:            t.Model,
			Provider:         "openai",
		},
	}, nil
}

// classifyHTTPError maps provider status codes onto the retry taxonomy:
// rate limits and server errors are worth retrying, client errors are not.
func classifyHTTPError(stage string, status int, body []byte) error {
	cause := fmt.Errorf("openai http %d: %s", status, truncate(string(body), 200))
	if status == http.StatusTooManyRequests || status >= 500 {
		return core.NewTransientError(stage, cause)
	}
	return core.NewFatalError(stage, cause)
}

func classifyNetError(stage string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return core.NewFatalError(stage, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return core.NewTransientError(stage, err)
	}
	// Connection refused, DNS flaps and the like are usually recoverable.
	return core.NewTransientError(stage, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
