package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Pipeline authoring errors
const (
	// ErrCodeUnprocessableComposition indicates an illegal chaining of tasks or graphs.
	ErrCodeUnprocessableComposition ErrorCode = "UNPROCESSABLE_COMPOSITION"
	// ErrCodeUnknownAttribute indicates a bind attempted for an id absent from the type schema.
	ErrCodeUnknownAttribute ErrorCode = "UNKNOWN_ATTRIBUTE"
	// ErrCodeMissingAttribute indicates a required attribute is unbound at execution time.
	ErrCodeMissingAttribute ErrorCode = "MISSING_ATTRIBUTE"
	// ErrCodeUnsupportedTaskType indicates a type tag or task kind the system cannot run.
	ErrCodeUnsupportedTaskType ErrorCode = "UNSUPPORTED_TASK_TYPE"
)

// Execution errors
const (
	// ErrCodeExecutionFailed indicates a task body failed during a pipeline run.
	ErrCodeExecutionFailed ErrorCode = "EXECUTION_FAILED"
)

// Connection/Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeConnectionFailed indicates a failed connection to a service.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates the resource already exists.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeDatabaseError indicates a database error.
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	// ErrCodeExternalService indicates an error from an external service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeConnectionFailed:   true,
	ErrCodeTimeout:            true,
	ErrCodeDatabaseError:      true,
	ErrCodeExternalService:    true,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
