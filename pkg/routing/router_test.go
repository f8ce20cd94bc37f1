package routing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harun/lea/pkg/catalog"
)

func textMessage(text string) Message {
	return Message{Role: "user", Parts: []Part{{Type: "text", Text: text}}}
}

func TestRouteExplicitModelWins(t *testing.T) {
	// Explicit choice beats every other signal, including forced mode
	got := Route("anthropic-claude-sonnet", []Message{textMessage("plan the architecture")}, true, catalog.ModeBrowser)
	assert.Equal(t, "anthropic-claude-sonnet", got.ModelID)
	assert.Equal(t, ReasonUserSelected, got.Reason)
}

func TestRouteSentinelsDeferToRouter(t *testing.T) {
	for _, sentinel := range []string{"", "auto", "auto-model", "chat-model"} {
		got := Route(sentinel, []Message{textMessage("hello")}, false, "")
		assert.Equal(t, ModelFast, got.ModelID, "sentinel %q", sentinel)
		assert.Equal(t, ReasonFast, got.Reason)
	}
}

func TestRouteForcedModes(t *testing.T) {
	for _, mode := range []catalog.Mode{catalog.ModeBrowser, catalog.ModeCLI} {
		got := Route("auto", nil, false, mode)
		assert.Equal(t, ModelCapable, got.ModelID, string(mode))
		assert.Equal(t, ReasonForcedMode, got.Reason)
	}

	// coding mode does not force a model
	got := Route("auto", []Message{textMessage("hi")}, false, catalog.ModeCoding)
	assert.Equal(t, ModelFast, got.ModelID)
}

func TestRouteForcedModeBeatsVision(t *testing.T) {
	got := Route("auto", nil, true, catalog.ModeBrowser)
	assert.Equal(t, ReasonForcedMode, got.Reason)
}

func TestRouteVisionInput(t *testing.T) {
	got := Route("auto", []Message{textMessage("what is in this image")}, true, "")
	assert.Equal(t, ModelCapable, got.ModelID)
	assert.Equal(t, ReasonVisionInput, got.Reason)
}

func TestRouteReasoningKeywords(t *testing.T) {
	for _, kw := range []string{"plan", "architecture", "design", "strategy", "analyze", "analysis"} {
		got := Route("auto", []Message{textMessage("please " + strings.ToUpper(kw) + " this")}, false, "")
		assert.Equal(t, ModelCapable, got.ModelID, kw)
		assert.Equal(t, ReasonReasoning, got.Reason, kw)
	}
}

func TestRouteLongMessageIsReasoning(t *testing.T) {
	long := strings.Repeat("x", 801)
	got := Route("auto", []Message{textMessage(long)}, false, "")
	assert.Equal(t, ReasonReasoning, got.Reason)

	exact := strings.Repeat("x", 800)
	got = Route("auto", []Message{textMessage(exact)}, false, "")
	assert.Equal(t, ReasonFast, got.Reason, "threshold is strictly greater than 800")
}

func TestRouteOnlyLastMessageCounts(t *testing.T) {
	messages := []Message{
		textMessage("plan the architecture in detail"),
		textMessage("thanks"),
	}
	got := Route("auto", messages, false, "")
	assert.Equal(t, ReasonFast, got.Reason)
}

func TestRouteEmptyHistory(t *testing.T) {
	got := Route("auto", nil, false, "")
	assert.Equal(t, ModelFast, got.ModelID)
	assert.Equal(t, ReasonFast, got.Reason)
}

func TestHasVisionInput(t *testing.T) {
	assert.False(t, HasVisionInput(nil))
	assert.False(t, HasVisionInput([]Message{textMessage("hi")}))
	assert.True(t, HasVisionInput([]Message{
		textMessage("hi"),
		{Role: "user", Parts: []Part{{Type: "image"}}},
	}))
}

func TestLastMessageTextConcatenatesParts(t *testing.T) {
	messages := []Message{{
		Role: "user",
		Parts: []Part{
			{Type: "text", Text: "please "},
			{Type: "image"},
			{Type: "text", Text: "analyze this"},
		},
	}}
	got := Route("auto", messages, false, "")
	assert.Equal(t, ReasonReasoning, got.Reason)
}
