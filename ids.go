package spanz

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidID is returned when a hex string cannot be decoded into a TraceID or SpanID.
var ErrInvalidID = errors.New("spanz: invalid id")

// TraceID is a 16-byte identifier shared by every span in a trace.
type TraceID [16]byte

// SpanID is an 8-byte identifier unique to a single span.
type SpanID [8]byte

var (
	nilTraceID TraceID
	nilSpanID  SpanID
)

// IsValid reports whether the ID has at least one non-zero byte.
// The all-zero ID is reserved as the invalid sentinel.
func (t TraceID) IsValid() bool {
	return t != nilTraceID
}

// String returns the lowercase hex rendering of the ID.
func (t TraceID) String() string {
	return hex.EncodeToString(t[:])
}

// MarshalText renders the ID as hex.
func (t TraceID) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// IsValid reports whether the ID has at least one non-zero byte.
func (s SpanID) IsValid() bool {
	return s != nilSpanID
}

// String returns the lowercase hex rendering of the ID.
func (s SpanID) String() string {
	return hex.EncodeToString(s[:])
}

// MarshalText renders the ID as hex.
func (s SpanID) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TraceIDFromHex decodes a 32 character lowercase hex string.
func TraceIDFromHex(h string) (TraceID, error) {
	var id TraceID
	if err := decodeHex(h, id[:]); err != nil {
		return TraceID{}, err
	}
	if !id.IsValid() {
		return TraceID{}, fmt.Errorf("%w: all-zero trace id", ErrInvalidID)
	}
	return id, nil
}

// SpanIDFromHex decodes a 16 character lowercase hex string.
func SpanIDFromHex(h string) (SpanID, error) {
	var id SpanID
	if err := decodeHex(h, id[:]); err != nil {
		return SpanID{}, err
	}
	if !id.IsValid() {
		return SpanID{}, fmt.Errorf("%w: all-zero span id", ErrInvalidID)
	}
	return id, nil
}

func decodeHex(h string, dst []byte) error {
	if len(h) != hex.EncodedLen(len(dst)) {
		return fmt.Errorf("%w: want %d hex chars, got %d", ErrInvalidID, hex.EncodedLen(len(dst)), len(h))
	}
	// Uppercase is rejected; W3C mandates lowercase.
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("%w: %q is not lowercase hex", ErrInvalidID, h)
		}
	}
	if _, err := hex.Decode(dst, []byte(h)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return nil
}

// TraceFlags is the 8-bit flag set carried in a SpanContext.
type TraceFlags byte

// FlagsSampled is bit 0, set when the span was selected for export.
const FlagsSampled TraceFlags = 0x01

// IsSampled reports whether the sampled bit is set.
func (f TraceFlags) IsSampled() bool {
	return f&FlagsSampled == FlagsSampled
}

// WithSampled returns a copy of the flags with the sampled bit set or cleared.
func (f TraceFlags) WithSampled(sampled bool) TraceFlags { //nolint:revive // flag setter
	if sampled {
		return f | FlagsSampled
	}
	return f &^ FlagsSampled
}

// String returns the two-character hex rendering of the flags.
func (f TraceFlags) String() string {
	return hex.EncodeToString([]byte{byte(f)})
}
