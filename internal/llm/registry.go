package llm

import "strings"

// isAnthropicOAuthCredential reports whether key looks like an Anthropic
// OAuth-issued credential rather than a plain API key, grounded on
// provider/mod.rs's create_llm_provider OAuth sniff (sk-ant-/ant- prefix).
func isAnthropicOAuthCredential(key string) bool {
	return strings.HasPrefix(key, "sk-ant-oat") || strings.HasPrefix(key, "ant-oat")
}

// NewProvider selects and constructs a Provider for the given provider name
// and resolved credential, dispatching to a concrete constructor rather
// than reflecting over the name at every call site.
func NewProvider(providerName, credential string) Provider {
	switch providerName {
	case "openai":
		return NewOpenAIProvider(credential)
	case "anthropic":
		fallthrough
	default:
		if isAnthropicOAuthCredential(credential) {
			return NewAnthropicOAuthProvider(credential)
		}
		return NewAnthropicKeyProvider(credential)
	}
}
