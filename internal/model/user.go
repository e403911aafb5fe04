package model

import "time"

// Staff roles. MANAGER administers the workshop and its accounts, ADVISOR
// runs the front desk workflow, TECHNICIAN works assigned jobs.
const (
	RoleManager    = "MANAGER"
	RoleAdvisor    = "ADVISOR"
	RoleTechnician = "TECHNICIAN"
)

// Workshop is a tenant: an isolated customer organization. Every job card,
// staff account and audit entry belongs to exactly one workshop.
type Workshop struct {
	ID        uint64    `json:"id"`   // workshops.id
	Name      string    `json:"name"` // workshops.name
	CreatedAt time.Time `json:"created_at"`
}

// User represents a staff account as stored in the `users` table. A user
// always belongs to one workshop; the workshop id travels in the JWT so
// every request is scoped to its tenant without extra lookups.
type User struct {
	ID           uint64    // users.id
	WorkshopID   uint64    // users.workshop_id
	Email        string    // users.email (unique)
	PasswordHash string    // users.password_hash (bcrypt)
	Role         string    // users.role (MANAGER | ADVISOR | TECHNICIAN)
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
