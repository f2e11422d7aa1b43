package domain

import (
	"math"

	"github.com/google/uuid"
)

type Owner struct {
	ID         uuid.UUID `json:"id"`
	CompanyID  uuid.UUID `json:"companyId"`
	Name       string    `json:"name"`
	Percentage float64   `json:"percentage"`
}

// HasValidPercentage reports whether the percentage is a number in [0, 100].
func (o Owner) HasValidPercentage() bool {
	return !math.IsNaN(o.Percentage) && o.Percentage >= 0 && o.Percentage <= 100
}

// OwnerChange is published by the ledger after every accepted write.
type OwnerChange struct {
	Owner    Owner
	Revision uint64 // strictly increasing across the whole ledger
}
