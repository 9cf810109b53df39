package httputil

// Machine-readable error codes returned in ErrorResponse.Code
const (
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeCooldownActive     = "COOLDOWN_ACTIVE"

	CodeAccountExists       = "ACCOUNT_EXISTS"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeEmailNotConfirmed   = "EMAIL_NOT_CONFIRMED"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeVerificationFailed  = "VERIFICATION_FAILED"
	CodeMissingAuth         = "MISSING_AUTH"
	CodeInvalidAuthHeader   = "INVALID_AUTH_HEADER"
	CodeInvalidToken        = "INVALID_TOKEN"

	CodeContactNotFound = "CONTACT_NOT_FOUND"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeUnsupportedFile = "UNSUPPORTED_FILE_TYPE"
	CodeStorageDisabled = "STORAGE_DISABLED"
)
