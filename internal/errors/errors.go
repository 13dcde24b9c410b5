// Package errors provides custom error types for the Cycleledger API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// General errors.
var (
	ErrUnauthorized   = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Budget configuration errors.
var (
	ErrInvalidConfiguration = &AppError{Code: "INVALID_CONFIGURATION", Message: "Cycle length must be a positive number of days", StatusCode: http.StatusBadRequest}
	ErrSettingsNotFound     = &AppError{Code: "SETTINGS_NOT_FOUND", Message: "Budget settings have not been configured", StatusCode: http.StatusNotFound}
)

// Category errors.
var (
	ErrCategoryNotFound    = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrCategoryInUse       = &AppError{Code: "CATEGORY_IN_USE", Message: "Category is used by existing transactions", StatusCode: http.StatusConflict}
	ErrCategoryHasChildren = &AppError{Code: "CATEGORY_HAS_CHILDREN", Message: "Category has subcategories", StatusCode: http.StatusConflict}
	ErrSelfParentCategory  = &AppError{Code: "SELF_PARENT_CATEGORY", Message: "A category cannot be its own parent", StatusCode: http.StatusBadRequest}
	ErrCategoryDepth       = &AppError{Code: "CATEGORY_DEPTH", Message: "Subcategories cannot have their own subcategories", StatusCode: http.StatusBadRequest}
	ErrDefaultCategory     = &AppError{Code: "DEFAULT_CATEGORY", Message: "Default categories cannot be deleted", StatusCode: http.StatusConflict}

	// Allocations or diff rows that reference an unknown category are skipped,
	// not failed, since categories may be deleted concurrently with an
	// asynchronous period close. The sentinel exists for per-row reporting.
	ErrOrphanCategoryReference = &AppError{Code: "ORPHAN_CATEGORY_REFERENCE", Message: "Referenced category does not exist", StatusCode: http.StatusNotFound}
)

// Allocation errors.
var (
	ErrInvalidAmount = &AppError{Code: "INVALID_AMOUNT", Message: "Amount must be a non-negative finite number", StatusCode: http.StatusBadRequest}

	// An unbalanced parent/subcategory split is surfaced as a warning flag on
	// responses, never as a blocking error.
	ErrUnbalancedAllocation = &AppError{Code: "UNBALANCED_ALLOCATION", Message: "Subcategory amounts do not sum to the parent amount", StatusCode: http.StatusBadRequest}
)

// Snapshot and history errors.
var (
	ErrSnapshotNotFound      = &AppError{Code: "SNAPSHOT_NOT_FOUND", Message: "No snapshot exists for this period", StatusCode: http.StatusNotFound}
	ErrManualCycleOutOfOrder = &AppError{Code: "MANUAL_CYCLE_OUT_OF_ORDER", Message: "Manual cycles must start before the earliest recorded cycle", StatusCode: http.StatusConflict}
)
