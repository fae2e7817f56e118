// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %s not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrValidation covers bad caller input (malformed or foreign lead ids,
// empty lead set). Never retried.
type ErrValidation struct {
	Reason string
}

func (e *ErrValidation) Error() string {
	return e.Reason
}

func NewValidation(format string, args ...any) error {
	return &ErrValidation{Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var v *ErrValidation
	return errors.As(err, &v)
}

func IsCampaignNotFound(err error) bool {
	var nf *ErrCampaignNotFound
	return errors.As(err, &nf)
}

// ErrInvalidDraft marks malformed generator output. Retried like a
// transient failure even though the same prompt may reproduce it.
var ErrInvalidDraft = errors.New("generator returned invalid draft JSON")

// ErrNotFound is the generic not-found sentinel for non-campaign records.
var ErrNotFound = errors.New("not found")

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || IsCampaignNotFound(err)
}
