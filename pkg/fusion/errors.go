package fusion

import "errors"

var (
	// ErrRange is returned when an input field does not fit its bit width.
	ErrRange = errors.New("fusion: field out of range")
	// ErrFormat is returned for a trailer of the wrong length or with a bad magic byte.
	ErrFormat = errors.New("fusion: malformed trailer")
	// ErrIntegrity is returned when the CRC-8 does not match.
	ErrIntegrity = errors.New("fusion: integrity check failed")
	// ErrAuthentication is returned when the MAC8 does not match.
	ErrAuthentication = errors.New("fusion: authentication failed")
)
