package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
)

// systemPrompt frames every chat completion. The per-call evidence, question,
// and output format instructions are carried in the user message.
const systemPrompt = "You are a biomedical research assistant. Answer strictly from " +
	"the evidence passages supplied in the user message and cite them by their " +
	"identifiers. Do not use outside knowledge."

// Generator adapts an eino ChatModel to the single-prompt completion surface
// the synthesis layer consumes. It is safe for concurrent use if the
// underlying ChatModel is.
type Generator struct {
	model ChatModel
}

// NewGenerator wraps a ChatModel in a Generator.
func NewGenerator(m ChatModel) *Generator {
	return &Generator{model: m}
}

// Generate sends the prompt as a single user turn and returns the model's
// text response.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(prompt),
	}
	resp, err := g.model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("provider: chat completion failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("provider: chat completion returned no message")
	}
	return resp.Content, nil
}
