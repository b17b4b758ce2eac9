package chain

import (
	"time"

	"godrift/domain/core"
)

// Stage is one translation hop in a chain.
type Stage struct {
	Name       string `json:"name"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Prompt     string `json:"prompt"`
}

// Chain is an ordered list of translation stages. The final stage must return
// to the chain's source language so drift is measured in one language.
type Chain struct {
	ID     core.ChainID `json:"id"`
	Stages []Stage      `json:"stages"`
}

// Hash fingerprints the chain definition.
func (c Chain) Hash() core.ChainHash {
	names := make([]string, 0, len(c.Stages))
	langs := make([]string, 0, 2*len(c.Stages))
	for _, s := range c.Stages {
		names = append(names, s.Name)
		langs = append(langs, s.SourceLang, s.TargetLang)
	}
	return core.ComputeChainHash(names, langs)
}

// DefaultChain is the English -> French -> Hebrew -> English round trip.
func DefaultChain() Chain {
	return Chain{
		ID: core.ChainID(core.NewID()),
		Stages: []Stage{
			{Name: "en_to_fr", SourceLang: "English", TargetLang: "French"},
			{Name: "fr_to_he", SourceLang: "French", TargetLang: "Hebrew"},
			{Name: "he_to_en", SourceLang: "Hebrew", TargetLang: "English"},
		},
	}
}

// StageState tracks a stage through the retry lifecycle.
type StageState string

const (
	StagePending   StageState = "pending"
	StageRunning   StageState = "running"
	StageRetrying  StageState = "retrying"
	StageSucceeded StageState = "succeeded"
	StageFailed    StageState = "failed"
)

// Terminal reports whether the state can no longer change.
func (s StageState) Terminal() bool {
	return s == StageSucceeded || s == StageFailed
}

// Usage captures provider token accounting for one call.
type Usage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
	Provider         string `json:"provider"`
}

// Add accumulates usage in place.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	if u.Model == "" {
		u.Model = other.Model
	}
	if u.Provider == "" {
		u.Provider = other.Provider
	}
}

// TransformationRecord is the audit trail for one stage execution, including
// every retry attempt.
type TransformationRecord struct {
	StageName string        `json:"stage_name"`
	Input     string        `json:"input"`
	Output    string        `json:"output"`
	Attempts  int           `json:"attempts"`
	Latency   time.Duration `json:"latency"`
	Usage     Usage         `json:"usage"`
	State     StageState    `json:"state"`
	Error     string        `json:"error,omitempty"`
}

// RunState is the chain-level outcome.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
)

// Run is one execution of a chain against one (already corrupted) input.
type Run struct {
	RunID        core.RunID             `json:"run_id"`
	ChainID      core.ChainID           `json:"chain_id"`
	ConditionKey string                 `json:"condition_key"`
	Replicate    int                    `json:"replicate"`
	Input        string                 `json:"input"`
	FinalText    string                 `json:"final_text"`
	Records      []TransformationRecord `json:"records"`
	State        RunState               `json:"state"`
	TotalUsage   Usage                  `json:"total_usage"`
	StartedAt    core.Timestamp         `json:"started_at"`
	FinishedAt   core.Timestamp         `json:"finished_at"`
}

// Failed reports whether the run ended without a final text.
func (r Run) Failed() bool { return r.State == RunFailed }
