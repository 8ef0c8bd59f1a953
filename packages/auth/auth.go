package auth

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Basic returns the header value for user:password credentials.
func Basic(credentials string) (string, error) {
	if !strings.Contains(credentials, ":") {
		return "", fmt.Errorf("basic credentials must be user:password")
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials)), nil
}

// Bearer returns the header value for token.
func Bearer(token string) string {
	return "Bearer " + token
}
