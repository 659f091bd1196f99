package services

import (
	"context"
	"strings"

	"tontine/internal/ports"
)

// RoleAuthorizer grants privileged transitions to actors holding one of the
// configured roles.
type RoleAuthorizer struct {
	roles map[string]struct{}
}

func NewRoleAuthorizer(roles ...string) *RoleAuthorizer {
	a := &RoleAuthorizer{roles: make(map[string]struct{}, len(roles))}
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" {
			a.roles[r] = struct{}{}
		}
	}
	return a
}

func (a *RoleAuthorizer) CanReopen(_ context.Context, actor ports.Actor) (bool, error) {
	for _, r := range actor.Roles {
		if _, ok := a.roles[strings.ToLower(strings.TrimSpace(r))]; ok {
			return true, nil
		}
	}
	return false, nil
}
