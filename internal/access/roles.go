// Package access implements the role matrix that gates every ledger mutation.
package access

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Role is a named permission a principal may hold.
type Role uint8

const (
	Admin Role = iota
	Validator
	DataProvider
	EmergencyResponder
	EmergencyCoordinator
	Responder
	Government

	numRoles
)

var roleNames = [numRoles]string{
	Admin:                "ADMIN",
	Validator:            "VALIDATOR",
	DataProvider:         "DATA_PROVIDER",
	EmergencyResponder:   "EMERGENCY_RESPONDER",
	EmergencyCoordinator: "EMERGENCY_COORDINATOR",
	Responder:            "RESPONDER",
	Government:           "GOVERNMENT",
}

func (r Role) String() string {
	if r < numRoles {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	if r >= numRoles {
		return nil, fmt.Errorf("unknown role %d", uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRole resolves a role name, case-insensitively.
func ParseRole(name string) (Role, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, n := range roleNames {
		if n == name {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

// AllRoles lists every role in declaration order.
func AllRoles() []Role {
	roles := make([]Role, 0, numRoles)
	for r := Role(0); r < numRoles; r++ {
		roles = append(roles, r)
	}
	return roles
}

// Set is a bit set of roles.
type Set uint16

// Has reports whether r is in the set.
func (s Set) Has(r Role) bool {
	return s&(1<<r) != 0
}

// HasAny reports whether any of roles is in the set.
func (s Set) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// With returns the set including r.
func (s Set) With(r Role) Set {
	return s | 1<<r
}

// Without returns the set excluding r.
func (s Set) Without(r Role) Set {
	return s &^ (1 << r)
}

// Roles lists the members of the set in declaration order.
func (s Set) Roles() []Role {
	var roles []Role
	for r := Role(0); r < numRoles; r++ {
		if s.Has(r) {
			roles = append(roles, r)
		}
	}
	return roles
}

// Names lists the role names of the set.
func (s Set) Names() []string {
	roles := s.Roles()
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.String()
	}
	return names
}

// Matrix maps principals to their granted roles.
type Matrix map[common.Address]Set

// Has reports whether principal holds role.
func (m Matrix) Has(principal common.Address, role Role) bool {
	return m[principal].Has(role)
}

// HasAny reports whether principal holds at least one of roles.
func (m Matrix) HasAny(principal common.Address, roles ...Role) bool {
	return m[principal].HasAny(roles...)
}

// Grant adds role to principal and reports whether the matrix changed.
func (m Matrix) Grant(principal common.Address, role Role) bool {
	before := m[principal]
	after := before.With(role)
	if before == after {
		return false
	}
	m[principal] = after
	return true
}

// Revoke removes role from principal and reports whether the matrix changed.
func (m Matrix) Revoke(principal common.Address, role Role) bool {
	before, ok := m[principal]
	if !ok || !before.Has(role) {
		return false
	}
	after := before.Without(role)
	if after == 0 {
		delete(m, principal)
	} else {
		m[principal] = after
	}
	return true
}

// Members lists the principals holding role, sorted by address.
func (m Matrix) Members(role Role) []common.Address {
	var members []common.Address
	for principal, set := range m {
		if set.Has(role) {
			members = append(members, principal)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].Cmp(members[j]) < 0
	})
	return members
}

// MarshalJSON encodes the matrix as address -> role names.
func (m Matrix) MarshalJSON() ([]byte, error) {
	out := make(map[common.Address][]string, len(m))
	for principal, set := range m {
		out[principal] = set.Names()
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes address -> role names.
func (m *Matrix) UnmarshalJSON(data []byte) error {
	var raw map[common.Address][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Matrix, len(raw))
	for principal, names := range raw {
		var set Set
		for _, name := range names {
			role, err := ParseRole(name)
			if err != nil {
				return err
			}
			set = set.With(role)
		}
		out[principal] = set
	}
	*m = out
	return nil
}

// ParseGrants parses provisioning entries of the form
// "0xADDR:ROLE,ROLE;0xADDR:ROLE".
func ParseGrants(raw string) (Matrix, error) {
	m := make(Matrix)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		addr, roles, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("grant %q: expected address:roles", entry)
		}
		addr = strings.TrimSpace(addr)
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("grant %q: invalid address", entry)
		}
		principal := common.HexToAddress(addr)
		for _, name := range strings.Split(roles, ",") {
			role, err := ParseRole(name)
			if err != nil {
				return nil, fmt.Errorf("grant %q: %w", entry, err)
			}
			m.Grant(principal, role)
		}
	}
	return m, nil
}
