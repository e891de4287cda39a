package state

import "github.com/ethereum/go-ethereum/common"

// RolePresaleOwner may extend the presale deadline.
const RolePresaleOwner = "presale.owner"

// RoleAuthority answers ownership checks from the role registry.
type RoleAuthority struct {
	manager *Manager
	role    string
}

// NewRoleAuthority returns an authority backed by role membership.
func NewRoleAuthority(manager *Manager, role string) *RoleAuthority {
	return &RoleAuthority{manager: manager, role: role}
}

// IsOwner reports whether addr holds the configured role.
func (a *RoleAuthority) IsOwner(addr common.Address) bool {
	if a == nil || a.manager == nil {
		return false
	}
	return a.manager.HasRole(a.role, addr)
}
