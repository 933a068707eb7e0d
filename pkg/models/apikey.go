// Package models holds the wire and state types shared across Spider's
// internal packages: provider credentials, MCP server records, conversation
// history, and the JSON-RPC/WebSocket envelopes that carry them.
package models

// Permission strings recognized by the Session & Authorization Gateway.
// "admin" is never granted implicitly — OAuth-derived sessions get every
// permission except it.
const (
	PermissionRead  = "read"
	PermissionWrite = "write"
	PermissionAdmin = "admin"
)

// ApiKey is a stored third-party LLM provider credential, keyed by provider
// name in the key store (e.g. "anthropic", "openai").
type ApiKey struct {
	Provider  string `json:"provider"`
	Key       string `json:"key"`
	CreatedAt int64  `json:"createdAt"`
	LastUsed  *int64 `json:"lastUsed,omitempty"`
}

// ApiKeyInfo is the redacted view of an ApiKey returned to callers: the raw
// key is replaced with a preview that intentionally still reveals the
// obfuscation envelope prefix plus a few bytes of ciphertext.
type ApiKeyInfo struct {
	Provider   string `json:"provider"`
	CreatedAt  int64  `json:"createdAt"`
	LastUsed   *int64 `json:"lastUsed,omitempty"`
	KeyPreview string `json:"keyPreview"`
}

// SpiderApiKey is a Spider-issued bearer credential used to authorize calls
// against Spider's own HTTP/WS surface (as opposed to ApiKey, which
// authorizes Spider's outbound calls to an LLM provider).
type SpiderApiKey struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	CreatedAt   int64    `json:"createdAt"`
}

// HasPermission reports whether the key grants the named permission.
func (k SpiderApiKey) HasPermission(permission string) bool {
	for _, p := range k.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}
