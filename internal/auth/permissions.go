package auth

// Permission names consulted by the evaluator. The catalog is seeded by
// migrations; handlers reference these constants only.
const (
	PermContentCreate  = "content.create"
	PermContentApprove = "content.approve"
	PermContentPublish = "content.publish"
	PermCategoryCreate = "category.create"
	PermSubmitCoop     = "submit_coop"
	PermVerifyCoop     = "verify_coop"
	PermApproveCoop    = "approve_coop"
	PermUserRead       = "user.read"
	PermAuditRead      = "audit.read"
	PermRoleManage     = "role.manage"
)

// BuiltinPermissions is ensured at startup so grants can never point at
// a missing catalog row.
var BuiltinPermissions = []string{
	PermContentCreate,
	PermContentApprove,
	PermContentPublish,
	PermCategoryCreate,
	PermSubmitCoop,
	PermVerifyCoop,
	PermApproveCoop,
	PermUserRead,
	PermAuditRead,
	PermRoleManage,
}
