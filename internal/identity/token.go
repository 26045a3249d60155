// Package identity bridges opaque bearer tokens to stable actor identities
// and implements the Cognito secret-hash challenge used by token issuance.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"

	"agentcore-agent/internal/domain"
)

// DecodeTokenClaims extracts the claims map from a JWT-shaped bearer token
// without verifying its signature; trust in the token's authenticity is the
// gateway's inbound authorizer's job. Any structural problem yields an empty
// map, never an error.
func DecodeTokenClaims(token string) map[string]any {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return map[string]any{}
	}

	payload := parts[1]
	if rem := len(payload) % 4; rem != 0 {
		payload += strings.Repeat("=", 4-rem)
	}

	decoded, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return map[string]any{}
	}
	var claims map[string]any
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return map[string]any{}
	}
	if claims == nil {
		return map[string]any{}
	}
	return claims
}

// DeriveActorIdentity computes the per-user identity from an access token.
// ActorID falls back from the subject claim to the username claim; both
// absent means unauthenticated (empty string).
func DeriveActorIdentity(token string) domain.ActorIdentity {
	claims := DecodeTokenClaims(token)

	sub := claimString(claims, "sub")
	username := claimString(claims, "username")
	email := claimString(claims, "email")

	actorID := sub
	if actorID == "" {
		actorID = username
	}

	return domain.ActorIdentity{
		ActorID:  actorID,
		Username: username,
		Email:    email,
		Subject:  sub,
	}
}

// ComputeSecretHash produces the SECRET_HASH value Cognito requires on the
// password grant: base64(HMAC-SHA256(client_secret, username+client_id)).
// The construction must be bit-compatible; a mismatch surfaces as an opaque
// NotAuthorized rejection from the provider, not a local error.
func ComputeSecretHash(clientID, clientSecret, username string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func claimString(claims map[string]any, key string) string {
	v, ok := claims[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
