package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// KeycloakStrategy verifies RS256 access tokens issued by a single Keycloak
// realm against the realm's published keys.
type KeycloakStrategy struct {
	issuer   string
	clientID string
	keys     *KeySet
	logger   *slog.Logger
}

func NewKeycloakStrategy(realmURL, clientID string, logger *slog.Logger) *KeycloakStrategy {
	issuer := strings.TrimSuffix(realmURL, "/")
	return &KeycloakStrategy{
		issuer:   issuer,
		clientID: clientID,
		keys:     NewKeySet(issuer + "/protocol/openid-connect/certs"),
		logger:   logger,
	}
}

func (s *KeycloakStrategy) Name() string { return string(MethodKeycloak) }

type keycloakClaims struct {
	jwt.RegisteredClaims
	Email           string `json:"email,omitempty"`
	AuthorizedParty string `json:"azp,omitempty"`
}

func (s *KeycloakStrategy) Authenticate(ctx context.Context, token string) (*Identity, error) {
	// Check the issuer before touching the key set so foreign tokens never
	// cause a JWKS fetch.
	var peek keycloakClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &peek); err != nil {
		return nil, fmt.Errorf("malformed token: %w", err)
	}
	if peek.Issuer == "" {
		return nil, errors.New("token missing issuer claim")
	}
	if peek.Issuer != s.issuer {
		s.logger.Warn("untrusted issuer attempted", "issuer", peek.Issuer, "expected", s.issuer)
		return nil, fmt.Errorf("untrusted issuer %q", peek.Issuer)
	}

	var claims keycloakClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header has no kid")
		}
		return s.keys.Key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid keycloak token: %w", err)
	}

	if !slices.Contains(claims.Audience, s.clientID) && claims.AuthorizedParty != s.clientID {
		return nil, fmt.Errorf("token not intended for client %q (aud %v, azp %q)",
			s.clientID, []string(claims.Audience), claims.AuthorizedParty)
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing subject claim")
	}

	return &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Metadata: map[string]string{
			"provider_id": claims.Subject,
			"iss":         s.issuer,
		},
		Identities: []ProviderIdentity{{Provider: string(MethodKeycloak), ID: claims.Subject}},
		Method:     MethodKeycloak,
	}, nil
}
