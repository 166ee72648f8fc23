package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type Method string

const (
	MethodSupabase Method = "supabase"
	MethodKeycloak Method = "keycloak"
)

var (
	ErrMissingToken    = errors.New("missing bearer token")
	ErrUnauthenticated = errors.New("authentication failed")
)

type ProviderIdentity struct {
	Provider string `json:"provider"`
	ID       string `json:"id"`
}

// Role mirrors a Keycloak realm role representation.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Composite   bool   `json:"composite"`
	ClientRole  bool   `json:"clientRole"`
	ContainerID string `json:"containerId,omitempty"`
}

// Identity is the provider-agnostic caller resolved by an Authenticator.
type Identity struct {
	Token      string             `json:"-"`
	UserID     string             `json:"id"`
	Email      string             `json:"email,omitempty"`
	Metadata   map[string]string  `json:"user_metadata"`
	Identities []ProviderIdentity `json:"identities"`
	Method     Method             `json:"authentication_method"`
	Roles      []Role             `json:"keycloak_roles"`
}

// IsKeycloakProvider reports whether any linked identity came from Keycloak,
// including Keycloak users that signed in through Supabase.
func (i *Identity) IsKeycloakProvider() bool {
	for _, p := range i.Identities {
		if p.Provider == string(MethodKeycloak) {
			return true
		}
	}
	return false
}

func (i *Identity) HasRole(name string) bool {
	for _, r := range i.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// SupabaseCompatible reports whether the token can be forwarded to Supabase
// services that enforce row-level security.
func (i *Identity) SupabaseCompatible() bool {
	return i.Method == MethodSupabase
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}

// BearerToken extracts the token from an Authorization header. ok is false
// when the header is absent; a present but malformed header returns
// ErrMissingToken.
func BearerToken(r *http.Request) (token string, ok bool, err error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false, nil
	}
	scheme, rest, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(rest) == "" {
		return "", true, ErrMissingToken
	}
	return strings.TrimSpace(rest), true, nil
}
