package oauth

import "fmt"

// RefreshErrorKind classifies refresh failures for the pool's skip logic.
type RefreshErrorKind int

const (
	// KindTokenRequestFailed covers transport-level failures.
	KindTokenRequestFailed RefreshErrorKind = iota
	// KindProviderRejected covers OAuth2 server error responses.
	KindProviderRejected
	// KindMalformedResponse covers bodies that cannot be decoded.
	KindMalformedResponse
)

func (k RefreshErrorKind) String() string {
	switch k {
	case KindTokenRequestFailed:
		return "token_request_failed"
	case KindProviderRejected:
		return "provider_rejected"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// RefreshError is the typed failure returned by Refresher.Refresh.
type RefreshError struct {
	Kind RefreshErrorKind
	// Code is the OAuth2 error code when Kind is KindProviderRejected.
	Code string
	err  error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh %s: %v", e.Kind, e.err)
}

func (e *RefreshError) Unwrap() error {
	return e.err
}
