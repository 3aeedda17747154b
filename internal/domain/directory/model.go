package directory

import (
	"time"

	"github.com/google/uuid"
)

// Party roles. Invoices may only be raised against patients; staff parties
// appear as preparers and payment recorders.
const (
	RolePatient = "patient"
	RoleStaff   = "staff"
	RolePartner = "partner"
)

// Party maps to the parties table: the minimal person/organization directory
// the billing ledger consults before raising an invoice.
type Party struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Role      string    `db:"role" json:"role"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

var validRoles = map[string]bool{
	RolePatient: true, RoleStaff: true, RolePartner: true,
}

// ValidRole reports whether role is one of the closed role set.
func ValidRole(role string) bool { return validRoles[role] }
