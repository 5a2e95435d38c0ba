package authz

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const identityKey contextKey = "identity"

// RolePlatformAdmin may manage the default behavior groups shared by every org.
const RolePlatformAdmin = "platform-admin"

// Identity is the caller as described by its bearer token.
type Identity struct {
	OrgID     string
	AccountID string
	Username  string
	Roles     []string
}

func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// WithIdentity stores the caller identity on the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	id.OrgID = strings.TrimSpace(id.OrgID)
	id.AccountID = strings.TrimSpace(id.AccountID)
	id.Username = strings.TrimSpace(id.Username)
	roles := make([]string, 0, len(id.Roles))
	for _, r := range id.Roles {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, strings.ToLower(r))
		}
	}
	id.Roles = roles
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func IdentityFromRequest(r *http.Request) (Identity, bool) {
	return IdentityFromContext(r.Context())
}

// OrgIDFromRequest returns the org of the caller. Callers without an org are
// treated as unauthenticated for org scoped routes.
func OrgIDFromRequest(r *http.Request) (string, bool) {
	id, ok := IdentityFromRequest(r)
	if !ok || id.OrgID == "" {
		return "", false
	}
	return id.OrgID, true
}
