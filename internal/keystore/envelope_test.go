package keystore

import "testing"

func TestEncryptDecryptKeyRoundTrip(t *testing.T) {
	raw := "sk-ant-REDACTED"
	encoded := encryptKey(raw)
	if encoded == raw {
		t.Fatalf("expected encryptKey to transform the raw key")
	}
	if decryptKey(encoded) != raw {
		t.Fatalf("expected decryptKey(encryptKey(raw)) == raw, got %q", decryptKey(encoded))
	}
}

func TestDecryptKeyPassesThroughUnenveloped(t *testing.T) {
	if decryptKey("plain-value") != "plain-value" {
		t.Fatalf("expected a non-enveloped value to pass through unchanged")
	}
}

func TestIsOAuthTokenPattern(t *testing.T) {
	cases := map[string]bool{
		"sk-ant-oat01-abcdef": true,
		"sk-ant-oat99-xyz":    true,
		"sk-ant-api03-xyz":    false,
		"sk-ant-oat1-xyz":     false,
		"short":               false,
	}
	for key, want := range cases {
		if got := isOAuthToken(key); got != want {
			t.Fatalf("isOAuthToken(%q) = %v, want %v", key, got, want)
		}
	}
}
