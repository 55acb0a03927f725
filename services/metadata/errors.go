package metadata

import "errors"

// Provider failure taxonomy. Callers in the merge engine and bulk import
// treat ErrProviderUnavailable and ErrMalformedResponse as "no data from this
// provider", never fatal. ErrNotConfigured is kept distinguishable so the UI
// can point the user at settings instead of reporting a network failure.
var (
	ErrNotConfigured       = errors.New("provider api key not configured")
	ErrNotFound            = errors.New("not found")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrMalformedResponse   = errors.New("malformed provider response")
)
