package grid

import "github.com/erp/gridsync/internal/domain/shared"

// Error codes
const (
	CodeValidationRejected  = "VALIDATION_REJECTED"
	CodePersistenceFailed   = "PERSISTENCE_FAILED"
	CodeNoChanges           = "NO_CHANGES"
	CodeStaleLoadDiscarded  = "STALE_LOAD_DISCARDED"
	CodeCommitInFlight      = "COMMIT_IN_FLIGHT"
	CodeDuplicateRow        = "DUPLICATE_ROW"
	CodeConfirmationPending = "CONFIRMATION_PENDING"
)

var (
	// ErrValidationRejected is returned when a guard, a cell rule or a commit
	// check refuses a change. Local state is left as it was before the change.
	ErrValidationRejected = shared.NewDomainError(CodeValidationRejected, "Change rejected by validation")
	// ErrPersistenceFailed is returned when the backend refused or failed a save.
	// Edits stay in the grid and the commit may be retried.
	ErrPersistenceFailed = shared.NewDomainError(CodePersistenceFailed, "Saving changes failed")
	// ErrNoChanges is returned by a commit with nothing dirty
	ErrNoChanges = shared.NewDomainError(CodeNoChanges, "Nothing to save")
	// ErrStaleLoadDiscarded marks a superseded load response; it is never surfaced
	ErrStaleLoadDiscarded = shared.NewDomainError(CodeStaleLoadDiscarded, "Superseded load discarded")
	// ErrCommitInFlight is returned when a commit is requested while one is running
	ErrCommitInFlight = shared.NewDomainError(CodeCommitInFlight, "A save is already in progress")
	// ErrRowNotFound is returned when an identity is not present in a surface
	ErrRowNotFound = shared.NewDomainError("NOT_FOUND", "Row not found")
	// ErrDuplicateRow is returned when a new row's natural key is already present
	ErrDuplicateRow = shared.NewDomainError(CodeDuplicateRow, "A row with the same key already exists")
	// ErrNoMasterSelected is returned for detail operations without a loaded master
	ErrNoMasterSelected = shared.NewDomainError("INVALID_STATE", "No master row is selected")
)

func rejected(message string) error {
	return shared.NewDomainError(CodeValidationRejected, message)
}

func persistenceFailed(message string) error {
	return shared.NewDomainError(CodePersistenceFailed, message)
}
