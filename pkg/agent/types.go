// Package agent provides the language-model provider layer: a uniform Call
// interface over the upstream SDKs, a credential-driven factory, and the
// model-id routing table that picks the provider serving a given model.
package agent

import "strings"

// Message is one conversation entry in provider-neutral form
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a tool invocation requested by the model
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Request contains the parameters for one provider call
type Request struct {
	Model        string
	Messages     []Message
	Tools        []interface{}
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Response is the provider's answer
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// IsRetryableError reports whether a provider error is transient
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	// Network errors
	if strings.Contains(msg, "ECONNRESET") || strings.Contains(msg, "ETIMEDOUT") {
		return true
	}

	// Rate limits
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") {
		return true
	}

	// Server errors
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}

	return false
}
