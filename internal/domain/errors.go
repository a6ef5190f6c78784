package domain

import "errors"

// Error taxonomy. Specific sentinels wrap one of these five so callers can
// branch on the class with errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence failure")
	ErrNetwork     = errors.New("network failure")
	ErrAuth        = errors.New("authentication failure")
	ErrConflict    = errors.New("sync conflict")
)

var (
	// Account errors
	ErrAccountNotFound    = wrap(ErrNotFound, "account not found")
	ErrAccountHasActivity = wrap(ErrValidation, "account has transactions and cannot be hard-deleted")
	ErrInvalidAccountKind = wrap(ErrValidation, "invalid account kind")

	// Category errors
	ErrCategoryNotFound     = wrap(ErrNotFound, "category not found")
	ErrCategoryRequired     = wrap(ErrValidation, "category is required")
	ErrInvalidCategoryKind  = wrap(ErrValidation, "invalid category kind")
	ErrCategoryKindMismatch = wrap(ErrValidation, "category kind does not match transaction kind")

	// Transaction errors
	ErrTransactionNotFound      = wrap(ErrNotFound, "transaction not found")
	ErrInvalidTransactionKind   = wrap(ErrValidation, "invalid transaction kind")
	ErrInvalidAmount            = wrap(ErrValidation, "amount must be positive")
	ErrAmountTooLarge           = wrap(ErrValidation, "amount exceeds maximum allowed")
	ErrDateOutOfRange           = wrap(ErrValidation, "date outside the accepted range")
	ErrSameAccount              = wrap(ErrValidation, "cannot transfer to same account")
	ErrTransferNeedsDestination = wrap(ErrValidation, "transfer requires a destination account")
	ErrTransferHasCategory      = wrap(ErrValidation, "transfer cannot carry a category")
	ErrDestinationOnNonTransfer = wrap(ErrValidation, "only transfers may set a destination account")
	ErrInvalidInstallment       = wrap(ErrValidation, "invalid installment number or count")

	// Budget errors
	ErrBudgetNotFound = wrap(ErrNotFound, "budget not found")
	ErrInvalidPeriod  = wrap(ErrValidation, "invalid month/year period")
	ErrBudgetExists   = wrap(ErrValidation, "budget already exists for category and period")

	// Goal errors
	ErrGoalNotFound      = wrap(ErrNotFound, "goal not found")
	ErrGoalDatesInverted = wrap(ErrValidation, "target date precedes start date")

	// Name/metadata errors
	ErrInvalidName  = wrap(ErrValidation, "invalid name")
	ErrInvalidColor = wrap(ErrValidation, "invalid hex color")

	// Sync errors
	ErrSyncStateNotFound = wrap(ErrNotFound, "sync state not found")
	ErrUnknownResolution = wrap(ErrValidation, "unknown conflict resolution")
	ErrSyncInProgress    = errors.New("sync cycle already running")
	ErrSyncSuspended     = wrap(ErrAuth, "sync suspended until re-authentication")
	ErrConflictPending   = wrap(ErrConflict, "item awaits manual conflict resolution")

	// Auth errors
	ErrInvalidToken       = wrap(ErrAuth, "invalid token")
	ErrExpiredToken       = wrap(ErrAuth, "token expired")
	ErrInvalidCredentials = wrap(ErrAuth, "invalid credentials")
	ErrUserNotFound       = wrap(ErrNotFound, "user not found")
)

type wrapped struct {
	class error
	msg   string
}

func wrap(class error, msg string) error {
	return &wrapped{class: class, msg: msg}
}

func (e *wrapped) Error() string { return e.msg }

func (e *wrapped) Unwrap() error { return e.class }
