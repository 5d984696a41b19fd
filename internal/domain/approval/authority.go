// Package approval holds the pure rules of the approval engine: who ranks
// where, which tiers a request needs, who may act on a tier and when.
package approval

import "github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"

// Authority describes a role's standing in the organization
type Authority struct {
	Rank     int
	Override bool
}

var authorityTable = map[entity.Role]Authority{
	entity.RoleSuperAdmin:        {Rank: 100, Override: true},
	entity.RoleCEO:               {Rank: 90, Override: true},
	entity.RoleCFO:               {Rank: 80},
	entity.RoleFinanceDirector:   {Rank: 70},
	entity.RoleOperationsManager: {Rank: 60},
	entity.RoleStationManager:    {Rank: 50},
	entity.RoleAccountant:        {Rank: 40},
	entity.RoleLogistics:         {Rank: 40},
	entity.RoleShiftSupervisor:   {Rank: 30},
	entity.RolePumpAttendant:     {Rank: 10},
}

// AuthorityOf returns the authority of a role; unknown roles rank zero
func AuthorityOf(role entity.Role) Authority {
	return authorityTable[role]
}

// IsKnownRole reports whether role belongs to the closed directory set
func IsKnownRole(role entity.Role) bool {
	_, ok := authorityTable[role]
	return ok
}

// HasOverride reports whether role may satisfy any pending tier directly
func HasOverride(role entity.Role) bool {
	return authorityTable[role].Override
}

// seniorRank is the lowest rank allowed to propose and approve fuel prices
const seniorRank = 60

// IsSenior reports whether role ranks at operations manager level or above
func IsSenior(role entity.Role) bool {
	return authorityTable[role].Rank >= seniorRank
}

var settlementRoles = map[entity.Role]bool{
	entity.RoleSuperAdmin:      true,
	entity.RoleCEO:             true,
	entity.RoleCFO:             true,
	entity.RoleFinanceDirector: true,
	entity.RoleAccountant:      true,
}

// CanSettle reports whether role may record a payment or a disbursement
func CanSettle(role entity.Role) bool {
	return settlementRoles[role]
}

// Outranks reports whether a ranks strictly above b
func Outranks(a, b entity.Role) bool {
	return authorityTable[a].Rank > authorityTable[b].Rank
}

// Roles returns every directory role, highest rank first
func Roles() []entity.Role {
	return []entity.Role{
		entity.RoleSuperAdmin,
		entity.RoleCEO,
		entity.RoleCFO,
		entity.RoleFinanceDirector,
		entity.RoleOperationsManager,
		entity.RoleStationManager,
		entity.RoleAccountant,
		entity.RoleLogistics,
		entity.RoleShiftSupervisor,
		entity.RolePumpAttendant,
	}
}
