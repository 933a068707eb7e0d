package llm

import "context"

// OpenAIProvider is a registered placeholder. It exists so Provider is
// demonstrably polymorphic across vendors; Complete always fails until a
// real implementation lands.
type OpenAIProvider struct {
	apiKey string
}

// NewOpenAIProvider builds a placeholder OpenAI Provider.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{apiKey: apiKey}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// Complete implements Provider. Always returns NotImplementedError.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	return CompletionResult{}, &NotImplementedError{Provider: "openai"}
}
