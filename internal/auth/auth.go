package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

type AuthConfig struct {
	Type         string `mapstructure:"type"` // none, basic, bearer, header, oauth2
	Username     string `mapstructure:"username,omitempty"`
	Password     string `mapstructure:"password,omitempty"`
	Token        string `mapstructure:"token,omitempty"`
	HeaderName   string `mapstructure:"header_name,omitempty"`
	HeaderValue  string `mapstructure:"header_value,omitempty"`
	ClientID     string `mapstructure:"client_id,omitempty"`
	ClientSecret string `mapstructure:"client_secret,omitempty"`
	TokenURL     string `mapstructure:"token_url,omitempty"`
	RefreshToken string `mapstructure:"refresh_token,omitempty"`
}

// AuthProvider setzt die Anmeldedaten eines Webhook-Endpunkts auf die Anfrage.
type AuthProvider interface {
	Apply(req *http.Request) error
}

type BasicAuth struct {
	Username string
	Password string
}

func (b *BasicAuth) Apply(req *http.Request) error {
	encoded := base64.StdEncoding.EncodeToString([]byte(b.Username + ":" + b.Password))
	req.Header.Set("Authorization", "Basic "+encoded)
	return nil
}

type BearerAuth struct {
	Token string
}

func (b *BearerAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// HeaderAuth entspricht der "Header Auth" eines n8n-Webhooks.
type HeaderAuth struct {
	Name  string
	Value string
}

func (h *HeaderAuth) Apply(req *http.Request) error {
	req.Header.Set(h.Name, h.Value)
	return nil
}

type OAuth2Auth struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	RefreshToken string
	Client       *http.Client

	accessToken string
	expiresAt   time.Time
	mu          sync.Mutex
}

func (o *OAuth2Auth) Apply(req *http.Request) error {
	token, err := o.token(req.Context())
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (o *OAuth2Auth) token(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if time.Now().Before(o.expiresAt) && o.accessToken != "" {
		return o.accessToken, nil
	}
	return o.refreshAccessToken(ctx)
}

func (o *OAuth2Auth) refreshAccessToken(ctx context.Context) (string, error) {
	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("refresh_token", o.RefreshToken)
	values.Set("client_id", o.ClientID)
	values.Set("client_secret", o.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.TokenURL, strings.NewReader(values.Encode()))
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token error: %s", body)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("token parse error: %w", err)
	}

	o.accessToken = tokenResp.AccessToken
	o.expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn-10) * time.Second)

	return o.accessToken, nil
}

// BuildAuthProvider liefert für "none" und einen leeren Typ nil.
func BuildAuthProvider(cfg AuthConfig) (AuthProvider, error) {
	switch strings.ToLower(cfg.Type) {
	case "basic":
		return &BasicAuth{
			Username: cfg.Username,
			Password: cfg.Password,
		}, nil
	case "bearer":
		return &BearerAuth{
			Token: cfg.Token,
		}, nil
	case "header":
		if cfg.HeaderName == "" {
			return nil, errors.New("header_name fehlt für Auth-Typ header")
		}
		return &HeaderAuth{
			Name:  cfg.HeaderName,
			Value: cfg.HeaderValue,
		}, nil
	case "oauth2":
		return &OAuth2Auth{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			RefreshToken: cfg.RefreshToken,
		}, nil
	case "none", "":
		return nil, nil
	default:
		return nil, errors.New("unbekannter Auth-Typ: " + cfg.Type)
	}
}
