package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment is the slice of the scheduling subsystem the billing ledger
// needs: enough to verify that a referenced appointment exists and belongs to
// the invoiced party.
type Appointment struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PartyID        uuid.UUID  `db:"party_id" json:"party_id"`
	PractitionerID *uuid.UUID `db:"practitioner_id" json:"practitioner_id,omitempty"`
	ScheduledAt    time.Time  `db:"scheduled_at" json:"scheduled_at"`
	Status         string     `db:"status" json:"status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}
