package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// SignJWT signs claims with HMAC-SHA256. iat is always set; exp is set when
// ttl is positive. Explicit claims win over both.
func SignJWT(secret string, claims map[string]any, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt secret is empty")
	}

	now := time.Now()
	mc := jwt.MapClaims{"iat": now.Unix()}
	if ttl > 0 {
		mc["exp"] = now.Add(ttl).Unix()
	}
	for k, v := range claims {
		mc[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mc)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign jwt: %w", err)
	}
	return signed, nil
}

// ParseClaims turns name=value pairs into claims. Values that parse as JSON
// (numbers, booleans, arrays, objects) keep their type; anything else is a
// string.
func ParseClaims(pairs []string) (map[string]any, error) {
	claims := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid claim %q: expected name=value", pair)
		}

		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			claims[name] = decoded
		} else {
			claims[name] = value
		}
	}
	return claims, nil
}
