package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SupabaseStrategy resolves tokens through the GoTrue user endpoint.
type SupabaseStrategy struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewSupabaseStrategy(baseURL, apiKey string) *SupabaseStrategy {
	return &SupabaseStrategy{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SupabaseStrategy) Name() string { return string(MethodSupabase) }

type supabaseUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	Identities   []struct {
		Provider string `json:"provider"`
		ID       string `json:"id"`
	} `json:"identities"`
}

func (s *SupabaseStrategy) Authenticate(ctx context.Context, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("supabase get user: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var u supabaseUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("decode supabase user: %w", err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("supabase user has no id")
	}

	id := &Identity{
		UserID:     u.ID,
		Email:      u.Email,
		Metadata:   make(map[string]string, len(u.UserMetadata)),
		Identities: make([]ProviderIdentity, 0, len(u.Identities)),
		Method:     MethodSupabase,
	}
	for k, v := range u.UserMetadata {
		switch val := v.(type) {
		case string:
			id.Metadata[k] = val
		case nil:
		default:
			id.Metadata[k] = fmt.Sprint(val)
		}
	}
	for _, p := range u.Identities {
		id.Identities = append(id.Identities, ProviderIdentity{Provider: p.Provider, ID: p.ID})
	}
	return id, nil
}
