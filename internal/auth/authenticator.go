package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Strategy verifies a bearer token against one identity provider.
type Strategy interface {
	Name() string
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

type RoleFetcher interface {
	FetchRoles(ctx context.Context, id *Identity) ([]Role, error)
}

// Authenticator tries each strategy in order and returns the first identity
// that verifies.
type Authenticator struct {
	strategies []Strategy
	roles      RoleFetcher
	logger     *slog.Logger
}

func NewAuthenticator(roles RoleFetcher, logger *slog.Logger, strategies ...Strategy) *Authenticator {
	return &Authenticator{strategies: strategies, roles: roles, logger: logger}
}

func (a *Authenticator) Authenticate(ctx context.Context, token string, withRoles bool) (*Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrMissingToken)
	}
	if len(a.strategies) == 0 {
		return nil, fmt.Errorf("%w: no authentication providers configured", ErrUnauthenticated)
	}

	var errs []error
	for _, s := range a.strategies {
		id, err := s.Authenticate(ctx, token)
		if err != nil {
			a.logger.Debug("authentication strategy failed", "strategy", s.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		id.Token = token
		a.logger.Debug("authenticated", "strategy", s.Name(), "user_id", id.UserID)
		if withRoles {
			a.attachRoles(ctx, id)
		}
		return id, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, errors.Join(errs...))
}

func (a *Authenticator) attachRoles(ctx context.Context, id *Identity) {
	id.Roles = []Role{}
	if !id.IsKeycloakProvider() || a.roles == nil {
		return
	}
	roles, err := a.roles.FetchRoles(ctx, id)
	if err != nil {
		a.logger.Warn("failed to fetch keycloak roles", "user_id", id.UserID, "error", err)
		return
	}
	id.Roles = roles
}
