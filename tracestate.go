package spanz

import (
	"errors"
	"fmt"
	"strings"
)

const maxTraceStateMembers = 32

// ErrInvalidTraceState is returned for tracestate headers or members that violate W3C rules.
var ErrInvalidTraceState = errors.New("spanz: invalid tracestate")

type member struct {
	Key   string
	Value string
}

// TraceState is an immutable, ordered list of vendor=value pairs.
// The zero value is an empty trace state.
type TraceState struct {
	members []member
}

// ParseTraceState parses a W3C tracestate header value.
// Empty list members are skipped, duplicates are rejected.
func ParseTraceState(header string) (TraceState, error) {
	if strings.TrimSpace(header) == "" {
		return TraceState{}, nil
	}

	parts := strings.Split(header, ",")
	members := make([]member, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return TraceState{}, fmt.Errorf("%w: member %q has no '='", ErrInvalidTraceState, part)
		}
		if err := validateMember(key, value); err != nil {
			return TraceState{}, err
		}
		if _, dup := seen[key]; dup {
			return TraceState{}, fmt.Errorf("%w: duplicate key %q", ErrInvalidTraceState, key)
		}
		seen[key] = struct{}{}
		members = append(members, member{Key: key, Value: value})
	}

	if len(members) > maxTraceStateMembers {
		return TraceState{}, fmt.Errorf("%w: %d members exceeds %d", ErrInvalidTraceState, len(members), maxTraceStateMembers)
	}
	return TraceState{members: members}, nil
}

// Insert returns a new TraceState with key=value at the front.
// An existing entry for key is removed first.
func (ts TraceState) Insert(key, value string) (TraceState, error) {
	if err := validateMember(key, value); err != nil {
		return ts, err
	}

	members := make([]member, 0, len(ts.members)+1)
	members = append(members, member{Key: key, Value: value})
	for _, m := range ts.members {
		if m.Key != key {
			members = append(members, m)
		}
	}
	if len(members) > maxTraceStateMembers {
		members = members[:maxTraceStateMembers]
	}
	return TraceState{members: members}, nil
}

// Delete returns a new TraceState without key.
func (ts TraceState) Delete(key string) TraceState {
	members := make([]member, 0, len(ts.members))
	for _, m := range ts.members {
		if m.Key != key {
			members = append(members, m)
		}
	}
	return TraceState{members: members}
}

// Get returns the value stored for key.
func (ts TraceState) Get(key string) (string, bool) {
	for _, m := range ts.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return "", false
}

// Len returns the number of members.
func (ts TraceState) Len() int {
	return len(ts.members)
}

// Walk calls fn for each member in order until fn returns false.
func (ts TraceState) Walk(fn func(key, value string) bool) {
	for _, m := range ts.members {
		if !fn(m.Key, m.Value) {
			return
		}
	}
}

// Equal reports whether both trace states hold the same members in the same order.
func (ts TraceState) Equal(other TraceState) bool {
	if len(ts.members) != len(other.members) {
		return false
	}
	for i := range ts.members {
		if ts.members[i] != other.members[i] {
			return false
		}
	}
	return true
}

// String renders the trace state in header form: "k1=v1,k2=v2".
func (ts TraceState) String() string {
	if len(ts.members) == 0 {
		return ""
	}
	var b strings.Builder
	for i, m := range ts.members {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(m.Key)
		b.WriteByte('=')
		b.WriteString(m.Value)
	}
	return b.String()
}

func validateMember(key, value string) error {
	if !validKey(key) {
		return fmt.Errorf("%w: bad key %q", ErrInvalidTraceState, key)
	}
	if !validValue(value) {
		return fmt.Errorf("%w: bad value %q for key %q", ErrInvalidTraceState, value, key)
	}
	return nil
}

// validKey accepts simple keys and tenant@system multi-tenant keys.
func validKey(key string) bool {
	if key == "" || len(key) > 256 {
		return false
	}
	tenant, system, multi := strings.Cut(key, "@")
	if !multi {
		return validKeyPart(key, true)
	}
	if len(tenant) > 241 || len(system) > 14 || system == "" {
		return false
	}
	return validKeyPart(tenant, false) && validKeyPart(system, true)
}

func validKeyPart(s string, mustStartAlpha bool) bool {
	if s == "" {
		return false
	}
	first := s[0]
	if mustStartAlpha {
		if first < 'a' || first > 'z' {
			return false
		}
	} else if (first < 'a' || first > 'z') && (first < '0' || first > '9') {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '_', c == '-', c == '*', c == '/':
		default:
			return false
		}
	}
	return true
}

func validValue(value string) bool {
	if value == "" || len(value) > 256 {
		return false
	}
	if value[len(value)-1] == ' ' {
		return false
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c < 0x20 || c > 0x7e || c == ',' || c == '=' {
			return false
		}
	}
	return true
}
