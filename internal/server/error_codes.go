package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument  = 1000
	ErrCodeInvalidJSON      = 1001
	ErrCodeRequestTooLarge  = 1002
	ErrCodeInvalidQuery     = 1003
	ErrCodeInvalidID        = 1004
	ErrCodeMissingRequired  = 1009
	ErrCodeInvalidMultipart = 1020
	ErrCodeUnsupportedImage = 1021
	ErrCodeTooManyPhotos    = 1022
	ErrCodeInvalidTarget    = 1023
	ErrCodeInvalidContext   = 1024

	// Domain state (2xxx)
	ErrCodeStoryNotFound = 2001
	ErrCodePhotoNotFound = 2002

	// Limits (3xxx)
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal     = 4001
	ErrCodeStoreFailure = 4002

	// Upstream narrative generation (5xxx)
	ErrCodeUpstreamUnavailable = 5001
	ErrCodeUpstreamTimeout     = 5002
	ErrCodeUpstreamRejected    = 5003
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 404:
		return ErrCodeStoryNotFound
	case 413:
		return ErrCodeRequestTooLarge
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	case 502:
		return ErrCodeUpstreamUnavailable
	case 504:
		return ErrCodeUpstreamTimeout
	default:
		return 0
	}
}
