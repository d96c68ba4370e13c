package rbac

import "fmt"

// 权限常量
const (
	PermissionDecomposeIntent = "intent:decompose"
	PermissionChat            = "chat:send"
	PermissionReadMeetingRoom = "meeting:read"
	PermissionBookMeetingRoom = "meeting:book"
	PermissionReplayOutbox    = "outbox:replay"
)

// 角色常量
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var rolePermissions = map[string][]string{
	RoleUser: {
		PermissionDecomposeIntent,
		PermissionChat,
		PermissionReadMeetingRoom,
		PermissionBookMeetingRoom,
	},
	RoleAdmin: {
		PermissionDecomposeIntent,
		PermissionChat,
		PermissionReadMeetingRoom,
		PermissionBookMeetingRoom,
		PermissionReplayOutbox,
	},
}

// NormalizeRole 未知或空角色按 user 处理
func NormalizeRole(role string) string {
	if _, ok := rolePermissions[role]; ok {
		return role
	}
	return RoleUser
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role, permission string) bool {
	for _, p := range rolePermissions[NormalizeRole(role)] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 与 HasPermission 相同，但返回错误便于 handler 处理
func CheckPermission(role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{Role: role, Permission: permission}
	}
	return nil
}

// PermissionDeniedError 表示权限不足
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("role %q lacks permission %s", e.Role, e.Permission)
}
