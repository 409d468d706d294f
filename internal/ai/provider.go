// Package ai is the thin integration layer over external text-generation
// providers. Two backend request/response shapes (OpenAI, Gemini) are
// reduced to one contract: an ordered list of role-tagged messages in,
// generated text out.
package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry in a completion exchange.
type Message struct {
	Role    string
	Content string
}

// ProviderClient is the uniform provider contract. Implementations do not
// retry; transport and auth failures surface to the caller unchanged.
type ProviderClient interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Name() string
	Model() string
}
