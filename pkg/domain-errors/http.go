package domainerrors

import "net/http"

// ToHTTPStatus maps a domain error code to an HTTP status. Unknown codes map
// to 500 so a missing entry can never turn an internal failure into a 2xx/4xx.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput, CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeTransferConflict:
		return http.StatusConflict
	case CodeUnauthorized, CodeInvalidCode, CodeCodeExpired, CodeCodeExhausted,
		CodeInvalidToken, CodeTokenExpired, CodeVerificationRequired:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNotQualified:
		return http.StatusForbidden
	case CodeRegistrationClosed:
		return http.StatusGone
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
