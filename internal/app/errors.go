package app

import "shared-basket/internal/apperr"

// Sentinel errors returned by the controller. Compare with errors.Is; the
// HTTP layer reads the code through apperr.As.
var (
	ErrEmptyName         = apperr.New(apperr.CodeValidation, "item name is required")
	ErrInvalidQuantity   = apperr.New(apperr.CodeValidation, "quantity must be at least 0.5 in steps of 0.5")
	ErrUnknownStore      = apperr.New(apperr.CodeValidation, "unknown store")
	ErrInvalidMode       = apperr.New(apperr.CodeValidation, "unknown calculation mode")
	ErrInvalidResolution = apperr.New(apperr.CodeValidation, "resolution must be update, add or cancel")
	ErrInvalidCoordinate = apperr.New(apperr.CodeValidation, "coordinates out of range")
	ErrNoFamily          = apperr.New(apperr.CodeValidation, "family id is not set")

	ErrItemNotFound = apperr.New(apperr.CodeNotFound, "item not found")

	ErrConflictPending = apperr.New(apperr.CodeConflict, "another duplicate is awaiting resolution")
	ErrNoConflict      = apperr.New(apperr.CodeConflict, "no duplicate is awaiting resolution")
	ErrSuperseded      = apperr.New(apperr.CodeConflict, "superseded by a newer query")

	ErrImportDisabled  = apperr.New(apperr.CodeDependency, "page import is not configured")
	ErrSharingDisabled = apperr.New(apperr.CodeDependency, "share links are not configured")
)

func importFailed(err error) error {
	return apperr.Wrap(apperr.CodeDependency, err, "page import failed")
}
