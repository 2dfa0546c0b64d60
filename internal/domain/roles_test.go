package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEligibleRolesFor(t *testing.T) {
	assert.ElementsMatch(t, []Role{RoleAdmin, RoleTechSupport}, EligibleRolesFor(TicketCategoryTechnical))
	assert.ElementsMatch(t, []Role{RoleAdmin, RoleBillingSupport}, EligibleRolesFor(TicketCategoryBilling))
	assert.ElementsMatch(t, []Role{RoleAdmin, RoleAccountManager}, EligibleRolesFor(TicketCategoryAccount))
	assert.ElementsMatch(t, []Role{RoleAdmin}, EligibleRolesFor(TicketCategoryGeneral))
	// unknown categories fall back to plain admins
	assert.ElementsMatch(t, []Role{RoleAdmin}, EligibleRolesFor(TicketCategory("OTHER")))
}

func TestRoleEligibleFor(t *testing.T) {
	assert.True(t, RoleEligibleFor(RoleAdmin, TicketCategoryBilling))
	assert.True(t, RoleEligibleFor(RoleBillingSupport, TicketCategoryBilling))
	assert.False(t, RoleEligibleFor(RoleBillingSupport, TicketCategoryTechnical))
	assert.False(t, RoleEligibleFor(RoleUser, TicketCategoryGeneral))
}

func TestIsSupportRole(t *testing.T) {
	assert.True(t, IsSupportRole(RoleAdmin))
	assert.True(t, IsSupportRole(RoleSuperAdmin))
	assert.True(t, IsSupportRole(RoleTechSupport))
	assert.True(t, IsSupportRole(RoleBillingSupport))
	assert.True(t, IsSupportRole(RoleAccountManager))
	assert.False(t, IsSupportRole(RoleUser))
}
