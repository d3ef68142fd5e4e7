package dissect

import "errors"

// Sentinel errors dissectors wrap so callers can classify failures with
// errors.Is regardless of which protocol produced them.
var (
	// ErrMalformed marks structurally invalid input: bad version bits,
	// impossible lengths, counts that contradict the payload.
	ErrMalformed = errors.New("dissect: malformed packet")

	// ErrTruncated marks input that ends before its declared structure.
	ErrTruncated = errors.New("dissect: truncated packet")

	// ErrEncrypted marks payload that is present but not decodable.
	ErrEncrypted = errors.New("dissect: encrypted payload")
)
