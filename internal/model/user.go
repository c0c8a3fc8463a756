package model

import "time"

// Roles understood by the access gate.
const (
	RoleAdmin      = "admin"
	RoleTechnician = "technician"
	RoleViewer     = "viewer"
)

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
	return r == RoleAdmin || r == RoleTechnician || r == RoleViewer
}

// User represents an application user record as stored in the `users`
// table. Technicians are users whose Role is RoleTechnician; their Username
// is the name written into a fault's AssignTo.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – unique login and assignment name.
//	DisplayName  – optional human friendly name.
//	PasswordHash – bcrypt hashed password.
//	Role         – admin, technician or viewer.
//	IsActive     – inactive users cannot authenticate.
type User struct {
	ID           int64     // users.id
	Username     string    // users.username
	DisplayName  string    // users.display_name
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the token is stored.
type RefreshToken struct {
	ID        int64      // refresh_tokens.id
	UserID    int64      // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
