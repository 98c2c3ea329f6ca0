package rbac

// RolePermissions is the default policy. Admin holds every permission.
var RolePermissions = map[string][]string{
	string(RoleStudent): {
		"test:list",
		"attempt:create",
		"attempt:submit",
		"attempt:view-own",
		"session:create",
		"session:view-own",
		"profile:view-own",
		"profile:update-own",
		"user:change_password",
	},
	string(RoleAdmin): {
		"*", // everything
	},
}
