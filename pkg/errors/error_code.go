package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeInvalidSymbol        ErrorCode = 103
	ErrCodeInvalidSegment       ErrorCode = 104
	ErrCodeMissingParameter     ErrorCode = 105
	ErrCodeInsufficientData     ErrorCode = 106

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound    ErrorCode = 200
	ErrCodeDataUnavailable ErrorCode = 201
	ErrCodeParseFailed     ErrorCode = 202

	// Session errors (300-399)
	ErrCodeSessionInitFailed  ErrorCode = 300
	ErrCodeSessionConfigError ErrorCode = 301
	ErrCodeMarketClosed       ErrorCode = 302

	// Trading errors (500-599)
	ErrCodeOrderFailed         ErrorCode = 500
	ErrCodeOrderRejected       ErrorCode = 501
	ErrCodePositionAlreadyOpen ErrorCode = 502
	ErrCodePositionNotOpen     ErrorCode = 503

	// Transport errors (700-799)
	ErrCodeTransient  ErrorCode = 700
	ErrCodeTimeout    ErrorCode = 701
	ErrCodeAuthFailed ErrorCode = 702
	ErrCodeFatal      ErrorCode = 703

	// Callback errors (800-899)
	ErrCodeCallbackFailed     ErrorCode = 800
	ErrCodeNotificationFailed ErrorCode = 801
)
