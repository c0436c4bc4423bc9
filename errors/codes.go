package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Capture and pipeline errors
const (
	// ErrCodeDeviceUnavailable indicates the capture device could not be acquired.
	ErrCodeDeviceUnavailable ErrorCode = "DEVICE_UNAVAILABLE"
	// ErrCodeStoreFailed indicates a segment's raw audio upload failed.
	ErrCodeStoreFailed ErrorCode = "STORE_FAILED"
	// ErrCodeTranscriptionFailed indicates a segment's transcription failed.
	ErrCodeTranscriptionFailed ErrorCode = "TRANSCRIPTION_FAILED"
	// ErrCodeExtractionFailed indicates checklist extraction failed for a segment.
	ErrCodeExtractionFailed ErrorCode = "EXTRACTION_FAILED"
	// ErrCodeMergeConflict indicates a snapshot publish lost an optimistic-concurrency race.
	ErrCodeMergeConflict ErrorCode = "MERGE_CONFLICT"
	// ErrCodeInvalidState indicates an operation was attempted in the wrong session state.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
)

// Connection/Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates the resource already exists.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	// ErrCodeConflict indicates a conflict with the current state of the resource.
	ErrCodeConflict ErrorCode = "CONFLICT"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeExternalService indicates an error from an external service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable:  true,
	ErrCodeTimeout:             true,
	ErrCodeMergeConflict:       true,
	ErrCodeStoreFailed:         true,
	ErrCodeTranscriptionFailed: true,
	ErrCodeExtractionFailed:    true,
	ErrCodeExternalService:     true,
	ErrCodeDeviceUnavailable:   false,
	ErrCodeInternal:            false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
