package auth

import (
	"net/http"
	"strings"
)

// ResolveCredential picks the credential an HTTP request is authenticating
// with: a session JWT from the Authorization header if one is present and
// JWT mode is enabled, otherwise the auth key embedded in the request
// body. It returns the Spider key to check permissions against.
func (s *Service) ResolveCredential(r *http.Request, bodyAuthKey string) (string, error) {
	if token := extractBearerToken(r); token != "" && s.JWTEnabled() {
		return s.ValidateSessionToken(token, "")
	}
	if bodyAuthKey == "" {
		return "", ErrInvalidKey
	}
	return bodyAuthKey, nil
}

func extractBearerToken(r *http.Request) string {
	value := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(value), "bearer ") {
		return strings.TrimSpace(value[len("Bearer "):])
	}
	return ""
}
