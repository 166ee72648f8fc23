package api

import (
	"net/http"
	"time"

	"github.com/relife-project/technical-service/internal/auth"
)

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "timestamp": time.Now().Unix()})
}

type AccountHandler struct {
	adminRole string
}

func NewAccountHandler(adminRole string) *AccountHandler {
	return &AccountHandler{adminRole: adminRole}
}

type WhoAmIResponse struct {
	*auth.Identity
	IsAdmin bool `json:"is_admin"`
}

// WhoAmI returns the resolved identity including Keycloak roles.
// GET /whoami
func (h *AccountHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, WhoAmIResponse{Identity: id, IsAdmin: h.adminRole != "" && id.HasRole(h.adminRole)})
}

var premiumRoles = []string{"premium", "admin"}

// Profile summarizes the caller without depending on Supabase, so it also
// serves users authenticated directly against Keycloak.
// GET /user-profile
func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	premium := false
	for _, role := range premiumRoles {
		if id.HasRole(role) {
			premium = true
		}
	}
	roles := id.Roles
	if roles == nil {
		roles = []auth.Role{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":                       id.UserID,
		"email":                         id.Email,
		"authentication_method":         id.Method,
		"keycloak_roles":                roles,
		"user_metadata":                 id.Metadata,
		"has_supabase_compatible_token": id.SupabaseCompatible(),
		"profile_complete":              id.Email != "" && len(roles) > 0,
		"premium_features_enabled":      premium,
	})
}
