package keystore

import (
	"encoding/base64"
	"strings"
)

// encryptedPrefix marks a key as passed through the obfuscation envelope.
// This is explicitly not cryptography: base64 with a literal prefix, kept
// faithful to how the reference implementation stores provider keys at
// rest. Anything stronger belongs in front of the key store, not in it.
const encryptedPrefix = "encrypted:"

func encryptKey(raw string) string {
	return encryptedPrefix + base64.StdEncoding.EncodeToString([]byte(raw))
}

func decryptKey(encoded string) string {
	if !strings.HasPrefix(encoded, encryptedPrefix) {
		return encoded
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded[len(encryptedPrefix):])
	if err != nil {
		return ""
	}
	return string(decoded)
}

// previewKey returns the first 20 bytes of the envelope, including the
// "encrypted:" prefix. This intentionally leaks a slice of the ciphertext;
// callers must never treat it as a secret boundary.
func previewKey(encoded string) string {
	if len(encoded) > 20 {
		return encoded[:20] + "..."
	}
	return "***"
}

// isOAuthToken reports whether key matches the OAuth session-token shape:
// the third hyphen-delimited segment begins "oat" followed by exactly two
// ASCII digits, e.g. "sk-ant-oat01-...".
func isOAuthToken(key string) bool {
	parts := strings.Split(key, "-")
	if len(parts) < 3 {
		return false
	}
	seg := parts[2]
	if !strings.HasPrefix(seg, "oat") || len(seg) != 5 {
		return false
	}
	d1, d2 := seg[3], seg[4]
	return d1 >= '0' && d1 <= '9' && d2 >= '0' && d2 <= '9'
}
