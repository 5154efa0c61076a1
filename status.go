package spanz

// StatusCode is the tri-state outcome of a span.
type StatusCode uint8

const (
	// StatusUnset is the default status.
	StatusUnset StatusCode = iota
	// StatusError marks a failed operation. Carries an optional description.
	StatusError
	// StatusOK marks a successful operation. Terminal once set.
	StatusOK
)

// String returns the OpenTelemetry name for the code.
func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	default:
		return "UNSET"
	}
}

// Status is the recorded outcome of a span.
type Status struct {
	Description string
	Code        StatusCode
}

// next applies the status transition rules and returns the resulting status.
// OK is terminal and never stores a description; unset never overwrites.
func (s Status) next(code StatusCode, description string) Status {
	if s.Code == StatusOK {
		return s
	}
	switch code {
	case StatusOK:
		return Status{Code: StatusOK}
	case StatusError:
		return Status{Code: StatusError, Description: description}
	default:
		return s
	}
}
