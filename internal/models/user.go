package models

import (
	"time"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ValidRole reports whether r is one of the two known roles.
func ValidRole(r Role) bool {
	return r == RoleAdmin || r == RoleUser
}

// Capability names one of the nine boolean permission flags. The closed set
// below replaces the original's free-form permission keys so an unknown
// capability cannot be asked about.
type Capability string

const (
	CapRead         Capability = "canRead"
	CapWrite        Capability = "canWrite"
	CapDelete       Capability = "canDelete"
	CapUpload       Capability = "canUpload"
	CapDownload     Capability = "canDownload"
	CapCreateFolder Capability = "canCreateFolder"
	CapRename       Capability = "canRename"
	CapMove         Capability = "canMove"
	CapArchive      Capability = "canArchive"
)

// UserPermissions is the per-user capability set plus path restrictions.
// An empty AllowedPaths means no allow-list restriction; DeniedPaths is
// evaluated first and always wins.
type UserPermissions struct {
	CanRead         bool     `json:"canRead"`
	CanWrite        bool     `json:"canWrite"`
	CanDelete       bool     `json:"canDelete"`
	CanUpload       bool     `json:"canUpload"`
	CanDownload     bool     `json:"canDownload"`
	CanCreateFolder bool     `json:"canCreateFolder"`
	CanRename       bool     `json:"canRename"`
	CanMove         bool     `json:"canMove"`
	CanArchive      bool     `json:"canArchive"`
	AllowedPaths    []string `json:"allowedPaths"`
	DeniedPaths     []string `json:"deniedPaths"`
}

// Has returns the flag value for cap. Unknown capabilities are false.
func (p UserPermissions) Has(cap Capability) bool {
	switch cap {
	case CapRead:
		return p.CanRead
	case CapWrite:
		return p.CanWrite
	case CapDelete:
		return p.CanDelete
	case CapUpload:
		return p.CanUpload
	case CapDownload:
		return p.CanDownload
	case CapCreateFolder:
		return p.CanCreateFolder
	case CapRename:
		return p.CanRename
	case CapMove:
		return p.CanMove
	case CapArchive:
		return p.CanArchive
	default:
		return false
	}
}

// DefaultUserPermissions is the template for regular users: read and
// download only, no path restrictions.
func DefaultUserPermissions() UserPermissions {
	return UserPermissions{
		CanRead:      true,
		CanDownload:  true,
		AllowedPaths: []string{},
		DeniedPaths:  []string{},
	}
}

// DefaultAdminPermissions has every flag set. Admins bypass permission
// checks anyway; this keeps their stored record self-describing.
func DefaultAdminPermissions() UserPermissions {
	return UserPermissions{
		CanRead:         true,
		CanWrite:        true,
		CanDelete:       true,
		CanUpload:       true,
		CanDownload:     true,
		CanCreateFolder: true,
		CanRename:       true,
		CanMove:         true,
		CanArchive:      true,
		AllowedPaths:    []string{},
		DeniedPaths:     []string{},
	}
}

// DefaultPermissionsFor picks the template matching role.
func DefaultPermissionsFor(role Role) UserPermissions {
	if role == RoleAdmin {
		return DefaultAdminPermissions()
	}
	return DefaultUserPermissions()
}

// PermissionsPatch is a partial update of UserPermissions. Nil fields are
// left untouched, so updates merge onto the existing value instead of
// replacing it wholesale.
type PermissionsPatch struct {
	CanRead         *bool     `json:"canRead,omitempty"`
	CanWrite        *bool     `json:"canWrite,omitempty"`
	CanDelete       *bool     `json:"canDelete,omitempty"`
	CanUpload       *bool     `json:"canUpload,omitempty"`
	CanDownload     *bool     `json:"canDownload,omitempty"`
	CanCreateFolder *bool     `json:"canCreateFolder,omitempty"`
	CanRename       *bool     `json:"canRename,omitempty"`
	CanMove         *bool     `json:"canMove,omitempty"`
	CanArchive      *bool     `json:"canArchive,omitempty"`
	AllowedPaths    *[]string `json:"allowedPaths,omitempty"`
	DeniedPaths     *[]string `json:"deniedPaths,omitempty"`
}

// ApplyTo merges the patch onto base and returns the result.
func (p PermissionsPatch) ApplyTo(base UserPermissions) UserPermissions {
	out := base
	if p.CanRead != nil {
		out.CanRead = *p.CanRead
	}
	if p.CanWrite != nil {
		out.CanWrite = *p.CanWrite
	}
	if p.CanDelete != nil {
		out.CanDelete = *p.CanDelete
	}
	if p.CanUpload != nil {
		out.CanUpload = *p.CanUpload
	}
	if p.CanDownload != nil {
		out.CanDownload = *p.CanDownload
	}
	if p.CanCreateFolder != nil {
		out.CanCreateFolder = *p.CanCreateFolder
	}
	if p.CanRename != nil {
		out.CanRename = *p.CanRename
	}
	if p.CanMove != nil {
		out.CanMove = *p.CanMove
	}
	if p.CanArchive != nil {
		out.CanArchive = *p.CanArchive
	}
	if p.AllowedPaths != nil {
		out.AllowedPaths = append([]string{}, (*p.AllowedPaths)...)
	}
	if p.DeniedPaths != nil {
		out.DeniedPaths = append([]string{}, (*p.DeniedPaths)...)
	}
	return out
}

// User is the stored identity record. PasswordHash is persisted with the
// record but cleared before a User crosses the API boundary.
type User struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"passwordHash,omitempty"`
	Role         Role            `json:"role"`
	Permissions  UserPermissions `json:"permissions"`
	CreatedAt    time.Time       `json:"createdAt"`
	CreatedBy    string          `json:"createdBy,omitempty"`
	LastLogin    *time.Time      `json:"lastLogin,omitempty"`
	IsActive     bool            `json:"isActive"`
}

// Sanitized returns a copy safe to serialize in API responses.
func (u *User) Sanitized() *User {
	out := *u
	out.PasswordHash = ""
	return &out
}
