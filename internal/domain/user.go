package domain

import "time"

// UserRole tags the single user aggregate with its role. Role-specific data
// hangs off the aggregate as an optional payload struct instead of parallel
// entity types.
type UserRole string

const (
	RoleCustomer   UserRole = "CUSTOMER"
	RoleTechnician UserRole = "TECHNICIAN"
	RoleManager    UserRole = "MANAGER"
	RoleAdmin      UserRole = "ADMIN"
)

// TechnicianProfile carries technician-only attributes. Specializations are
// free-text keywords matched by the selector fallback.
type TechnicianProfile struct {
	Specializations []string
}

// User models every platform participant.
type User struct {
	ID         string
	Name       string
	Email      string
	Role       UserRole
	Active     bool
	Technician *TechnicianProfile
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Specializations returns the technician keyword list, empty for other roles.
func (u *User) Specializations() []string {
	if u.Technician == nil {
		return nil
	}
	return u.Technician.Specializations
}
