package domain

// Role enumerates platform roles relevant to the support engine.
type Role string

const (
	RoleUser           Role = "USER"
	RoleAdmin          Role = "ADMIN"
	RoleSuperAdmin     Role = "SUPER_ADMIN"
	RoleTechSupport    Role = "TECH_SUPPORT"
	RoleBillingSupport Role = "BILLING_SUPPORT"
	RoleAccountManager Role = "ACCOUNT_MANAGER"
)

// SupportRoles are roles that may be assigned tickets.
var SupportRoles = []Role{RoleAdmin, RoleTechSupport, RoleBillingSupport, RoleAccountManager}

// categoryEligibleRoles maps a ticket category to the roles allowed to work it.
// Plain admins are eligible for every category.
var categoryEligibleRoles = map[TicketCategory][]Role{
	TicketCategoryTechnical: {RoleAdmin, RoleTechSupport},
	TicketCategoryBilling:   {RoleAdmin, RoleBillingSupport},
	TicketCategoryAccount:   {RoleAdmin, RoleAccountManager},
	TicketCategoryGeneral:   {RoleAdmin},
}

// EligibleRolesFor returns the roles allowed to handle tickets of the category.
func EligibleRolesFor(category TicketCategory) []Role {
	roles, ok := categoryEligibleRoles[category]
	if !ok {
		return []Role{RoleAdmin}
	}
	return roles
}

// RoleEligibleFor reports whether role may handle tickets of the category.
func RoleEligibleFor(role Role, category TicketCategory) bool {
	for _, r := range EligibleRolesFor(category) {
		if r == role {
			return true
		}
	}
	return false
}

// IsSupportRole reports whether role belongs to the support staff side.
func IsSupportRole(role Role) bool {
	if role == RoleSuperAdmin {
		return true
	}
	for _, r := range SupportRoles {
		if r == role {
			return true
		}
	}
	return false
}
