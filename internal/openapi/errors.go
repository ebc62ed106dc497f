package openapi

import "errors"

// Sentinel errors for cloud API operations.
var (
	// ErrUnexpectedStatus indicates a non-2xx HTTP response.
	ErrUnexpectedStatus = errors.New("openapi: unexpected http status")

	// ErrDecode indicates a response body that could not be decoded.
	ErrDecode = errors.New("openapi: undecodable response")

	// ErrNoToken indicates the client was used without an API token.
	ErrNoToken = errors.New("openapi: no token configured")
)
