// Package errors provides the error code catalogue shared by the publishing packages.
// Codes classify failures for callers that want to branch on the kind of problem
// (missing ref, lost race, rejected push) without matching individual sentinels.
package errors

// ErrorCode represents a specific error condition.
// Error codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Resource errors.

	// CodeNotFound indicates a requested ref, path, remote or config key does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeConflict indicates a ref moved underneath the caller.
	CodeConflict ErrorCode = "CONFLICT"

	// Permission errors.

	// CodeUnauthorized indicates the remote requires credentials that were not provided.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Validation errors.

	// CodeInvalidInput indicates a malformed path, pattern or reference name.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig indicates required configuration is missing or invalid.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// Infrastructure errors.

	// CodeNetwork indicates a network operation failed.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// Execution errors.

	// CodePublishFailed indicates the remote refused a published update.
	CodePublishFailed ErrorCode = "PUBLISH_FAILED"

	// System errors.

	// CodeInternal indicates misuse of an API contract, such as reusing a closed transaction.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeUnavailable indicates the service is temporarily unavailable.
	CodeUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// Generic errors.

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// String returns the code as a plain string.
func (c ErrorCode) String() string {
	return string(c)
}
