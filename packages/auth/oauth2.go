package auth

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

// GrantType represents the OAuth2 grant type
type GrantType string

const (
	// ClientCredentials is the client_credentials grant type
	ClientCredentials GrantType = "client_credentials"
	// Password is the password (resource owner) grant type
	Password GrantType = "password"
)

// OAuth2Config holds OAuth2 configuration
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Username     string // password grant only
	Password     string // password grant only
	GrantType    GrantType
}

// Token represents an OAuth2 access token
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// expirySkew treats tokens this close to expiry as expired
const expirySkew = 30 * time.Second

// IsExpired checks if the token is expired
func (t *Token) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(expirySkew).After(t.ExpiresAt)
}

// Poster sends a token request. *http.Client satisfies it.
type Poster interface {
	Post(url string, body []byte, headers map[string]string) (*http.Response, error)
}

// Provider fetches and caches OAuth2 access tokens
type Provider struct {
	config *OAuth2Config
	client Poster

	mu    sync.Mutex
	token *Token
}

// NewProvider creates a new OAuth2 provider
func NewProvider(config *OAuth2Config, client Poster) *Provider {
	return &Provider{config: config, client: client}
}

// Token returns a valid access token, fetching a new one when the cached
// token is missing or expired.
func (p *Provider) Token() (*Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != nil && !p.token.IsExpired() {
		return p.token, nil
	}

	token, err := p.fetch()
	if err != nil {
		return nil, err
	}
	p.token = token
	return token, nil
}

// Header returns the Authorization header value for the current token.
func (p *Provider) Header() (string, error) {
	token, err := p.Token()
	if err != nil {
		return "", err
	}
	tokenType := token.TokenType
	if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
		tokenType = "Bearer"
	}
	return tokenType + " " + token.AccessToken, nil
}

func (p *Provider) fetch() (*Token, error) {
	if p.config.TokenURL == "" {
		return nil, fmt.Errorf("oauth2 token URL is empty")
	}

	data := url.Values{}
	switch p.config.GrantType {
	case Password:
		data.Set("grant_type", string(Password))
		data.Set("username", p.config.Username)
		data.Set("password", p.config.Password)
	case ClientCredentials, "":
		data.Set("grant_type", string(ClientCredentials))
	default:
		return nil, fmt.Errorf("unsupported oauth2 grant type %q", p.config.GrantType)
	}
	if len(p.config.Scopes) > 0 {
		data.Set("scope", strings.Join(p.config.Scopes, " "))
	}

	headers := map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Accept":       "application/json",
	}
	if p.config.ClientID != "" {
		basic, err := Basic(url.QueryEscape(p.config.ClientID) + ":" + url.QueryEscape(p.config.ClientSecret))
		if err != nil {
			return nil, err
		}
		headers["Authorization"] = basic
	}

	resp, err := p.client.Post(p.config.TokenURL, []byte(data.Encode()), headers)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}

	if !resp.IsSuccess() {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(resp.Body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("token request failed: %s - %s", errResp.Error, errResp.ErrorDescription)
		}
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, resp.BodyString())
	}

	var token Token
	if err := json.Unmarshal(resp.Body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}

	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	return &token, nil
}
