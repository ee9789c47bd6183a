// Package prompt assembles the generation prompt from conversation history
// and retrieved context. Building is a pure function over its inputs: no
// collaborator calls, no side effects, which keeps it trivially testable.
package prompt

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prior conversation turn, supplied by the caller per
// request. History is an input, never stored server-side.
type Message struct {
	Role    Role
	Content string
}

// Prompt is the fully assembled generation input.
type Prompt struct {
	System   string
	Messages []Message // strictly ordered, ends with the current user turn
}

// DefaultHistoryWindow bounds how many prior turns are kept.
const DefaultHistoryWindow = 20

const systemTemplate = `You are a helpful assistant for daily life.
Today's Date: %s

INSTRUCTIONS:
1. Check the provided CONTEXT below.
2. If the CONTEXT contains information relevant to the user's QUESTION, use it to answer.

CRITICAL RULE FOR NEWS:
3. If the user asks for "latest news", "current events", "what happened today", or specific recent updates:
   - You MUST answer based ONLY on the provided CONTEXT.
   - If the CONTEXT is empty or does not contain the requested news, DO NOT use your internal training data.
   - Instead, explicitly state: "I don't have information on that in my local database. Please click 'Update News DB' to fetch the latest headlines."

GENERAL KNOWLEDGE FALLBACK:
4. For questions NOT related to news or current events (e.g., "how to cook pasta", "explain python code"), if the CONTEXT is empty, you MAY answer using your own internal knowledge.

CONTEXT:
%s`

// Builder assembles prompts with a bounded history window.
type Builder struct {
	Window int
	// Now is the clock used for the date line; nil means time.Now.
	// Injected in tests for determinism.
	Now func() time.Time
}

// NewBuilder creates a Builder with the given history window.
// window <= 0 falls back to DefaultHistoryWindow.
func NewBuilder(window int) *Builder {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &Builder{Window: window}
}

// Build assembles the prompt: system instructions with today's date and the
// retrieved context block, the last Window turns of history in order, and
// the current user question as the final message.
//
// contextPassages come from retrieval; an empty slice produces the literal
// "No context available." block so the news rule in the instructions can
// fire.
func (b *Builder) Build(history []Message, contextPassages []string, question string) Prompt {
	contextBlock := "No context available."
	if len(contextPassages) > 0 {
		contextBlock = strings.Join(contextPassages, "\n")
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	system := fmt.Sprintf(systemTemplate, now().Format("2006-01-02"), contextBlock)

	window := b.Window
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}

	messages := make([]Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, Message{Role: normalizeRole(m.Role), Content: m.Content})
	}
	messages = append(messages, Message{
		Role:    RoleUser,
		Content: "QUESTION:\n" + question,
	})

	return Prompt{System: system, Messages: messages}
}

// normalizeRole maps legacy role names from older clients ("ai", "model")
// onto the assistant role; anything unrecognized is treated as user input.
func normalizeRole(r Role) Role {
	switch strings.ToLower(string(r)) {
	case "assistant", "ai", "model":
		return RoleAssistant
	default:
		return RoleUser
	}
}
