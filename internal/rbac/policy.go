// Package rbac holds the role to permission policy used by the
// authorization gate.
package rbac

import (
	"slices"
	"sort"
	"sync/atomic"
)

// Built-in permission names.
const (
	PermReadUser   = "read:user"
	PermWriteUser  = "write:user"
	PermDeleteUser = "delete:user"
)

// Built-in role names.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
	RoleGuest = "guest"
)

// Policy maps role names to permission sets. A Policy never changes after
// construction; callers replace it as a whole through Registry.
type Policy struct {
	roles map[string][]string
}

// NewPolicy copies roles into a new Policy. Permission lists are
// deduplicated and keep their first-seen order.
func NewPolicy(roles map[string][]string) *Policy {
	p := &Policy{roles: make(map[string][]string, len(roles))}
	for role, perms := range roles {
		seen := make(map[string]struct{}, len(perms))
		list := make([]string, 0, len(perms))
		for _, perm := range perms {
			if _, ok := seen[perm]; ok {
				continue
			}
			seen[perm] = struct{}{}
			list = append(list, perm)
		}
		p.roles[role] = list
	}
	return p
}

// DefaultPolicy returns the built-in admin, user and guest roles.
func DefaultPolicy() *Policy {
	return NewPolicy(map[string][]string{
		RoleAdmin: {PermReadUser, PermWriteUser, PermDeleteUser},
		RoleUser:  {PermReadUser},
		RoleGuest: {},
	})
}

// Permissions returns the permissions granted to role. An unknown role has
// no permissions. The result is a copy.
func (p *Policy) Permissions(role string) []string {
	perms, ok := p.roles[role]
	if !ok {
		return []string{}
	}
	return slices.Clone(perms)
}

// HasRole reports whether role is defined.
func (p *Policy) HasRole(role string) bool {
	_, ok := p.roles[role]
	return ok
}

// Roles lists defined role names in sorted order.
func (p *Policy) Roles() []string {
	roles := make([]string, 0, len(p.roles))
	for role := range p.roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// Map returns a copy of the whole role to permission mapping.
func (p *Policy) Map() map[string][]string {
	out := make(map[string][]string, len(p.roles))
	for role, perms := range p.roles {
		out[role] = slices.Clone(perms)
	}
	return out
}

// Registry publishes the current Policy. Readers always observe a complete
// snapshot.
type Registry struct {
	current atomic.Pointer[Policy]
}

// NewRegistry returns a Registry holding initial, or DefaultPolicy when
// initial is nil.
func NewRegistry(initial *Policy) *Registry {
	if initial == nil {
		initial = DefaultPolicy()
	}
	r := &Registry{}
	r.current.Store(initial)
	return r
}

// Policy returns the current snapshot.
func (r *Registry) Policy() *Policy {
	return r.current.Load()
}

// Swap installs p and returns the previous snapshot. A nil p is ignored.
func (r *Registry) Swap(p *Policy) *Policy {
	if p == nil {
		return r.current.Load()
	}
	return r.current.Swap(p)
}

// Permissions resolves role against the current snapshot.
func (r *Registry) Permissions(role string) []string {
	return r.Policy().Permissions(role)
}
