// Package roles resolves a user's role from configured allow-lists at read
// time. Role is never persisted with the user record, so edits to the lists
// take effect on the next request without touching stored data.
package roles

import (
	"strings"

	"github.com/tradevisor/tradevisor/internal/clockid"
)

type Role int

const (
	RoleUser Role = iota
	RoleAdmin
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleAdmin:
		return "admin"
	default:
		return "user"
	}
}

// Privileged roles bypass quota and see raw provider errors.
func (r Role) Privileged() bool {
	return r == RoleOwner || r == RoleAdmin
}

type Resolver struct {
	owners map[string]struct{}
	admins map[string]struct{}
}

// NewResolver parses comma-separated owner and admin lists. Entries may be
// numeric ids or @handles; both are matched in normalized form.
func NewResolver(ownerList, adminList string) *Resolver {
	return &Resolver{
		owners: parseList(ownerList),
		admins: parseList(adminList),
	}
}

func parseList(csv string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, entry := range strings.Split(csv, ",") {
		id := clockid.NormalizeID(entry)
		if id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}

// Role returns the highest role held by either the user id or the handle.
// Any privileged membership wins over tier limits: privileged implies
// unlimited quota, regardless of overlapping list entries.
func (r *Resolver) Role(userID, handle string) Role {
	id := clockid.NormalizeID(userID)
	h := clockid.NormalizeID(handle)
	if r.member(r.owners, id, h) {
		return RoleOwner
	}
	if r.member(r.admins, id, h) {
		return RoleAdmin
	}
	return RoleUser
}

func (r *Resolver) member(set map[string]struct{}, keys ...string) bool {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := set[k]; ok {
			return true
		}
	}
	return false
}
