package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rl1809/velocity/internal/core/domain"
)

var ErrInvalidOwner = errors.New("invalid owner")

// validateOwner checks single-field constraints before the owner reaches the
// ledger. The company cap is enforced by the ledger itself.
func validateOwner(o domain.Owner) error {
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidOwner)
	}
	if !o.HasValidPercentage() {
		return fmt.Errorf("%w: percentage must be between 0 and 100", ErrInvalidOwner)
	}
	return nil
}
