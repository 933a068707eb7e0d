package llm

import "testing"

func TestNewProviderDispatchesByCredentialShape(t *testing.T) {
	if _, ok := NewProvider("anthropic", "sk-ant-api03-abc").(*AnthropicKeyProvider); !ok {
		t.Fatalf("expected AnthropicKeyProvider for a plain API key")
	}
	if _, ok := NewProvider("anthropic", "sk-ant-oat01-abc").(*AnthropicOAuthProvider); !ok {
		t.Fatalf("expected AnthropicOAuthProvider for an OAuth-shaped credential")
	}
	if _, ok := NewProvider("openai", "sk-test").(*OpenAIProvider); !ok {
		t.Fatalf("expected OpenAIProvider for provider name openai")
	}
	if _, ok := NewProvider("unknown", "sk-ant-api03-abc").(*AnthropicKeyProvider); !ok {
		t.Fatalf("expected unknown provider names to default to Anthropic")
	}
}

func TestOpenAIProviderReturnsNotImplemented(t *testing.T) {
	p := NewOpenAIProvider("key")
	_, err := p.Complete(nil, CompletionRequest{})
	if err == nil {
		t.Fatalf("expected NotImplementedError")
	}
	if _, ok := err.(*NotImplementedError); !ok {
		t.Fatalf("expected *NotImplementedError, got %T", err)
	}
}

func TestClassifyReasonFromStatus(t *testing.T) {
	cases := []struct {
		status int
		want   FailoverReason
	}{
		{401, ReasonAuth},
		{403, ReasonAuth},
		{429, ReasonRateLimit},
		{400, ReasonInvalidArgs},
		{500, ReasonTransient},
	}
	for _, c := range cases {
		got := classify(c.status, nil)
		if got != c.want {
			t.Errorf("classify(%d): got %s, want %s", c.status, got, c.want)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	authErr := &ProviderError{Reason: ReasonAuth}
	if isRetryableError(authErr) {
		t.Fatalf("auth errors should be terminal")
	}
	transientErr := &ProviderError{Reason: ReasonTransient}
	if !isRetryableError(transientErr) {
		t.Fatalf("transient errors should be retryable")
	}
}
