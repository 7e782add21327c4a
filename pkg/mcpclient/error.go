package mcpclient

import "errors"

// Errors returned by Session operations, per §4.2/§7.
var (
	ErrSessionClosed       = errors.New("mcpclient: session closed")
	ErrCancelled           = errors.New("mcpclient: cancelled")
	ErrProtocolMismatch    = errors.New("mcpclient: protocol version mismatch")
	ErrFeatureNotSupported = errors.New("mcpclient: feature not supported")
)
