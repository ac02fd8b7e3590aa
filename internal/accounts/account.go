package accounts

import (
	"time"

	"github.com/casdoc/casdoc/internal/store"
)

// Account is the canonical versioned entity of the service: ID is the
// document key, CAS carries the store token and never encodes into the
// document body.
type Account struct {
	ID        string    `doc:"id" json:"id"`
	CAS       store.CAS `doc:"-" json:"version,omitempty"`
	Email     string    `doc:"email" json:"email" validate:"required,email"`
	FirstName string    `doc:"firstname" json:"firstname" validate:"required"`
	LastName  string    `doc:"lastname" json:"lastname"`
	Roles     []string  `doc:"roles" json:"roles,omitempty" validate:"dive,oneof=admin editor viewer"`
	CreatedAt time.Time `doc:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `doc:"updatedAt" json:"updatedAt"`
}
