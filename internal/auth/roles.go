package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// KeycloakRoles reads realm role mappings through the Keycloak admin API
// using a client-credentials token that is cached until shortly before it
// expires.
type KeycloakRoles struct {
	realmURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewKeycloakRoles(realmURL, clientID, clientSecret string) *KeycloakRoles {
	return &KeycloakRoles{
		realmURL:     strings.TrimSuffix(realmURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (k *KeycloakRoles) token(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.accessToken != "" && k.tokenExpiry.After(time.Now()) {
		return k.accessToken, nil
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		k.realmURL+"/protocol/openid-connect/token", strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("keycloak token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("keycloak token response has no access_token")
	}

	k.accessToken = tr.AccessToken
	// Renew a little early so a token never expires mid-request.
	k.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - 10*time.Second)
	return k.accessToken, nil
}

func (k *KeycloakRoles) adminBase() string {
	return strings.Replace(k.realmURL, "/realms/", "/admin/realms/", 1)
}

func (k *KeycloakRoles) FetchRoles(ctx context.Context, id *Identity) ([]Role, error) {
	providerID := id.Metadata["provider_id"]
	iss := strings.TrimSuffix(id.Metadata["iss"], "/")
	if providerID == "" || iss == "" {
		return nil, fmt.Errorf("user %s has no keycloak metadata", id.UserID)
	}
	if iss != k.realmURL {
		return nil, fmt.Errorf("user %s belongs to realm %q, not %q", id.UserID, iss, k.realmURL)
	}

	token, err := k.token(ctx)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/users/%s/role-mappings/realm", k.adminBase(), url.PathEscape(providerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("keycloak role mappings: %d %s", resp.StatusCode, string(body))
	}

	roles := []Role{}
	if err := json.NewDecoder(resp.Body).Decode(&roles); err != nil {
		return nil, fmt.Errorf("decode role mappings: %w", err)
	}
	return roles, nil
}
