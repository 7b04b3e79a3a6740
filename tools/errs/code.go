package errs

// Stable wire error codes. Grouped by concern; do not renumber.
var (
	ErrArgs          = NewCodeError(1001, "invalid argument")
	ErrTokenInvalid  = NewCodeError(1101, "invalid authentication token")
	ErrNotAuthorized = NewCodeError(1102, "not authenticated")
	ErrNoTarget      = NewCodeError(1201, "message has no target context")
	ErrMalformed     = NewCodeError(1202, "malformed frame")
	ErrStorage       = NewCodeError(1301, "storage operation failed")
	ErrCallState     = NewCodeError(1401, "invalid call state transition")
	ErrCallNotFound  = NewCodeError(1402, "call not found")
	ErrInternal      = NewCodeError(1500, "error processing message")
)
