package rbac

// Default policy. Config may replace any role's list.
var RolePermissions = map[string][]string{
	"guest": {
		"page:view",
	},
	"student": {
		"page:view",
		"question:viewall", // inline questions only render for roles holding it
		"question:attempt",
	},
	"teacher": {
		"page:view",
		"page:edit",
		"question:*",
		"filter:preview",
		"course:viewall",
	},
	"admin": {
		"*", // everything
	},
}

// Merge returns the default policy with the given roles replaced.
func Merge(override map[string][]string) map[string][]string {
	out := make(map[string][]string, len(RolePermissions)+len(override))
	for role, perms := range RolePermissions {
		out[role] = perms
	}
	for role, perms := range override {
		out[role] = perms
	}
	return out
}
