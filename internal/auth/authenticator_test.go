package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStrategy struct {
	mock.Mock
	name string
}

func (m *mockStrategy) Name() string { return m.name }

func (m *mockStrategy) Authenticate(ctx context.Context, token string) (*Identity, error) {
	args := m.Called(ctx, token)
	id, _ := args.Get(0).(*Identity)
	return id, args.Error(1)
}

type mockRoles struct {
	mock.Mock
}

func (m *mockRoles) FetchRoles(ctx context.Context, id *Identity) ([]Role, error) {
	args := m.Called(ctx, id)
	roles, _ := args.Get(0).([]Role)
	return roles, args.Error(1)
}

func keycloakIdentity() *Identity {
	return &Identity{
		UserID:     "kc-1",
		Identities: []ProviderIdentity{{Provider: "keycloak", ID: "kc-1"}},
		Metadata:   map[string]string{"provider_id": "kc-1", "iss": "https://id.example/realms/relife"},
		Method:     MethodKeycloak,
	}
}

func TestAuthenticatorFirstStrategyWins(t *testing.T) {
	first := &mockStrategy{name: "supabase"}
	second := &mockStrategy{name: "keycloak"}
	first.On("Authenticate", mock.Anything, "tok").Return(&Identity{UserID: "u1", Method: MethodSupabase}, nil)

	a := NewAuthenticator(nil, testLogger(), first, second)
	id, err := a.Authenticate(context.Background(), "tok", false)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "tok", id.Token)
	assert.Nil(t, id.Roles)

	first.AssertExpectations(t)
	second.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything)
}

func TestAuthenticatorFallsBack(t *testing.T) {
	first := &mockStrategy{name: "supabase"}
	second := &mockStrategy{name: "keycloak"}
	first.On("Authenticate", mock.Anything, "tok").Return(nil, errors.New("invalid JWT"))
	second.On("Authenticate", mock.Anything, "tok").Return(keycloakIdentity(), nil)

	a := NewAuthenticator(nil, testLogger(), first, second)
	id, err := a.Authenticate(context.Background(), "tok", false)
	require.NoError(t, err)
	assert.Equal(t, MethodKeycloak, id.Method)
}

func TestAuthenticatorAllFail(t *testing.T) {
	first := &mockStrategy{name: "supabase"}
	second := &mockStrategy{name: "keycloak"}
	first.On("Authenticate", mock.Anything, "tok").Return(nil, errors.New("invalid JWT"))
	second.On("Authenticate", mock.Anything, "tok").Return(nil, errors.New("untrusted issuer"))

	a := NewAuthenticator(nil, testLogger(), first, second)
	_, err := a.Authenticate(context.Background(), "tok", false)
	require.ErrorIs(t, err, ErrUnauthenticated)
	assert.Contains(t, err.Error(), "supabase: invalid JWT")
	assert.Contains(t, err.Error(), "keycloak: untrusted issuer")
}

func TestAuthenticatorEmptyTokenAndNoStrategies(t *testing.T) {
	a := NewAuthenticator(nil, testLogger(), &mockStrategy{name: "x"})
	_, err := a.Authenticate(context.Background(), "", false)
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = NewAuthenticator(nil, testLogger()).Authenticate(context.Background(), "tok", false)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticatorRoles(t *testing.T) {
	t.Run("keycloak provider gets roles", func(t *testing.T) {
		s := &mockStrategy{name: "keycloak"}
		s.On("Authenticate", mock.Anything, "tok").Return(keycloakIdentity(), nil)
		roles := &mockRoles{}
		roles.On("FetchRoles", mock.Anything, mock.Anything).Return([]Role{{ID: "r1", Name: "relife_admin"}}, nil)

		id, err := NewAuthenticator(roles, testLogger(), s).Authenticate(context.Background(), "tok", true)
		require.NoError(t, err)
		assert.True(t, id.HasRole("relife_admin"))
		assert.False(t, id.HasRole("other"))
	})

	t.Run("role failure yields empty list", func(t *testing.T) {
		s := &mockStrategy{name: "keycloak"}
		s.On("Authenticate", mock.Anything, "tok").Return(keycloakIdentity(), nil)
		roles := &mockRoles{}
		roles.On("FetchRoles", mock.Anything, mock.Anything).Return(nil, errors.New("403"))

		id, err := NewAuthenticator(roles, testLogger(), s).Authenticate(context.Background(), "tok", true)
		require.NoError(t, err)
		assert.NotNil(t, id.Roles)
		assert.Empty(t, id.Roles)
	})

	t.Run("non keycloak provider skips lookup", func(t *testing.T) {
		s := &mockStrategy{name: "supabase"}
		s.On("Authenticate", mock.Anything, "tok").Return(&Identity{
			UserID:     "u1",
			Identities: []ProviderIdentity{{Provider: "email", ID: "u1"}},
			Method:     MethodSupabase,
		}, nil)
		roles := &mockRoles{}

		id, err := NewAuthenticator(roles, testLogger(), s).Authenticate(context.Background(), "tok", true)
		require.NoError(t, err)
		assert.Empty(t, id.Roles)
		roles.AssertNotCalled(t, "FetchRoles", mock.Anything, mock.Anything)
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		token   string
		present bool
		wantErr bool
	}{
		{"", "", false, false},
		{"Bearer abc", "abc", true, false},
		{"bearer  abc ", "abc", true, false},
		{"Basic abc", "", true, true},
		{"Bearer", "", true, true},
		{"Bearer   ", "", true, true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		tok, present, err := BearerToken(req)
		assert.Equal(t, tt.token, tok, tt.header)
		assert.Equal(t, tt.present, present, tt.header)
		assert.Equal(t, tt.wantErr, err != nil, tt.header)
	}
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), &Identity{UserID: "u1"})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", id.UserID)
}

func TestSupabaseStrategy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" || r.Header.Get("apikey") != "anon" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good" {
			http.Error(w, `{"msg":"invalid JWT"}`, http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "u-42",
			"email": "a@b.c",
			"user_metadata": map[string]any{
				"iss":            "https://id.example/realms/relife",
				"provider_id":    "kc-42",
				"email_verified": true,
				"avatar":         nil,
			},
			"identities": []map[string]any{{"provider": "keycloak", "id": "kc-42"}},
		})
	}))
	defer srv.Close()

	s := NewSupabaseStrategy(srv.URL+"/", "anon")

	id, err := s.Authenticate(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "u-42", id.UserID)
	assert.Equal(t, MethodSupabase, id.Method)
	assert.True(t, id.SupabaseCompatible())
	assert.True(t, id.IsKeycloakProvider())
	assert.Equal(t, "kc-42", id.Metadata["provider_id"])
	assert.Equal(t, "true", id.Metadata["email_verified"])
	assert.NotContains(t, id.Metadata, "avatar")

	_, err = s.Authenticate(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestKeycloakRoles(t *testing.T) {
	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/relife/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("grant_type") != "client_credentials" || r.PostForm.Get("client_secret") != "shh" {
			http.Error(w, "denied", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "admin-token", "expires_in": 300})
	})
	mux.HandleFunc("/admin/realms/relife/users/kc-1/role-mappings/realm", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer admin-token" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "r1", "name": "relife_admin", "composite": false, "clientRole": false, "containerId": "relife"},
			{"id": "r2", "name": "offline_access"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	realmURL := srv.URL + "/realms/relife"
	k := NewKeycloakRoles(realmURL, "relife-service", "shh")
	id := &Identity{UserID: "kc-1", Metadata: map[string]string{"provider_id": "kc-1", "iss": realmURL}}

	roles, err := k.FetchRoles(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "relife_admin", roles[0].Name)
	assert.Equal(t, "relife", roles[0].ContainerID)

	_, err = k.FetchRoles(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int32(1), tokenCalls.Load(), "admin token should be cached")

	t.Run("foreign realm", func(t *testing.T) {
		other := &Identity{UserID: "x", Metadata: map[string]string{"provider_id": "x", "iss": "https://elsewhere/realms/relife"}}
		_, err := k.FetchRoles(context.Background(), other)
		assert.Error(t, err)
	})

	t.Run("missing metadata", func(t *testing.T) {
		_, err := k.FetchRoles(context.Background(), &Identity{UserID: "x"})
		assert.Error(t, err)
	})

	t.Run("bad credentials", func(t *testing.T) {
		bad := NewKeycloakRoles(realmURL, "relife-service", "wrong")
		_, err := bad.FetchRoles(context.Background(), id)
		assert.Error(t, err)
	})
}
