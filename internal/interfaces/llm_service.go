package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// LLMService is a chat completion backend used by the AI extraction source.
type LLMService interface {
	// Chat generates a completion for the conversation. System messages are
	// passed to the provider as its system instruction.
	Chat(ctx context.Context, messages []Message) (string, error)

	// Provider returns the provider name, e.g. "claude" or "gemini".
	Provider() string

	// Close releases client resources.
	Close() error
}
