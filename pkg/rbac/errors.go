package rbac

import "errors"

// Error kinds owned by this package. Callers match them with errors.Is;
// HTTP handlers map them to one consistent status policy.
var (
	ErrUnknownRole             = errors.New("unknown role")
	ErrRoleLevel               = errors.New("role not allowed at this level")
	ErrResourceNotFound        = errors.New("resource not found")
	ErrUserNotFound            = errors.New("user not found")
	ErrRoleAlreadyExists       = errors.New("role with this scope already exists")
	ErrRoleNotFoundForUser     = errors.New("role not found for user")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
)
