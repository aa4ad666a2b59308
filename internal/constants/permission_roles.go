package constants

import roles "sacco-backend/internal/pkg/constants"

// PermissionRoles maps each permission to the roles allowed to perform it.
var PermissionRoles = map[string][]string{
	ManageShareholders: {roles.Admin},
	ManageShares:       {roles.Admin},
	ManageTransfers:    {roles.Admin},
	ManageDividends:    {roles.Admin},
	ManageTransactions: {roles.Admin},
	ViewReports:        {roles.Admin},
	ViewOwnAccount:     {roles.Member, roles.Admin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	allowed, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
