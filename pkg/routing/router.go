// Package routing selects the model that serves a request. The decision is a
// pure function of the request signal; no network calls, no stored state.
package routing

import (
	"strings"

	"github.com/harun/lea/pkg/catalog"
)

// Model identifiers known to the router
const (
	// ModelCapable handles browser, cli, vision, and heavy reasoning turns
	ModelCapable = "google-gemini-3-pro"
	// ModelFast is the default low-latency model
	ModelFast = "google-gemini-2.5-flash"
	// DefaultChatModel is the placeholder id the chat surface sends when the
	// user has not picked a model
	DefaultChatModel = "chat-model"
)

// Reason explains a routing decision
type Reason string

const (
	ReasonUserSelected Reason = "user-selected"
	ReasonForcedMode   Reason = "forced-mode"
	ReasonVisionInput  Reason = "vision-input"
	ReasonReasoning    Reason = "reasoning"
	ReasonFast         Reason = "fast"
)

// RoutedModel is the router's answer
type RoutedModel struct {
	ModelID string `json:"model_id"`
	Reason  Reason `json:"reason"`
}

// Part is one segment of a message
type Part struct {
	Type string `json:"type"` // "text" or "image"
	Text string `json:"text,omitempty"`
}

// Message is a conversation entry as seen by the router
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Sentinel ids that defer the choice to the router
var sentinelModelIDs = map[string]bool{
	"":               true,
	"auto":           true,
	"auto-model":     true,
	DefaultChatModel: true,
}

// reasoningKeywords in the last message text signal a turn that deserves the
// capable model
var reasoningKeywords = []string{"plan", "architecture", "design", "strategy", "analyze", "analysis"}

// reasoningLengthThreshold is the text length above which a turn is treated
// as a reasoning turn regardless of keywords
const reasoningLengthThreshold = 800

// Route picks the model for a request. Decision order, first match wins:
// explicit user choice, forced browser/cli mode, vision input, reasoning
// signal, fast default.
func Route(explicitModelID string, messages []Message, hasVisionInput bool, forcedMode catalog.Mode) RoutedModel {
	if !sentinelModelIDs[explicitModelID] {
		return RoutedModel{ModelID: explicitModelID, Reason: ReasonUserSelected}
	}

	lastText := lastMessageText(messages)
	reasoning := hasReasoningSignal(lastText)

	switch forcedMode {
	case catalog.ModeBrowser:
		return RoutedModel{ModelID: ModelCapable, Reason: ReasonForcedMode}
	case catalog.ModeCLI:
		return RoutedModel{ModelID: ModelCapable, Reason: ReasonForcedMode}
	}

	if hasVisionInput {
		return RoutedModel{ModelID: ModelCapable, Reason: ReasonVisionInput}
	}

	if reasoning {
		return RoutedModel{ModelID: ModelCapable, Reason: ReasonReasoning}
	}

	return RoutedModel{ModelID: ModelFast, Reason: ReasonFast}
}

// HasVisionInput reports whether any message carries an image part
func HasVisionInput(messages []Message) bool {
	for _, m := range messages {
		for _, p := range m.Parts {
			if p.Type == "image" {
				return true
			}
		}
	}
	return false
}

// lastMessageText concatenates the text parts of the most recent message
func lastMessageText(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	last := messages[len(messages)-1]
	var b strings.Builder
	for _, p := range last.Parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func hasReasoningSignal(text string) bool {
	if len(text) > reasoningLengthThreshold {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range reasoningKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
