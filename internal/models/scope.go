package models

import "strings"

// Scope identifies who owns a behavior group, endpoint or link: either a single
// organization or the global default scope shared by every organization.
type Scope struct {
	orgID string
}

// DefaultScope returns the global scope. Rows in it have a NULL org_id.
func DefaultScope() Scope {
	return Scope{}
}

// OrgScope returns the scope of a single organization. A blank id yields the
// default scope, so callers must validate the id before relying on it.
func OrgScope(orgID string) Scope {
	return Scope{orgID: strings.TrimSpace(orgID)}
}

// ScopeOf maps a nullable org id column onto a Scope.
func ScopeOf(orgID *string) Scope {
	if orgID == nil {
		return DefaultScope()
	}
	return OrgScope(*orgID)
}

func (s Scope) IsDefault() bool {
	return s.orgID == ""
}

func (s Scope) OrgID() string {
	return s.orgID
}

// OrgIDPtr returns the org id as a nullable column value.
func (s Scope) OrgIDPtr() *string {
	if s.IsDefault() {
		return nil
	}
	id := s.orgID
	return &id
}

// Matches reports whether a row owned by orgID belongs to this scope.
func (s Scope) Matches(orgID *string) bool {
	if orgID == nil {
		return s.IsDefault()
	}
	return !s.IsDefault() && *orgID == s.orgID
}

// Visible reports whether a row owned by orgID can be read from this scope.
// Default rows are visible to every organization.
func (s Scope) Visible(orgID *string) bool {
	return orgID == nil || s.Matches(orgID)
}

func (s Scope) String() string {
	if s.IsDefault() {
		return "default"
	}
	return "org:" + s.orgID
}
