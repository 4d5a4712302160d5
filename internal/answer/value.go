package answer

import "errors"

// Kind tells which family of input produced a normalized value.
type Kind string

const (
	KindText     Kind = "text"
	KindNumber   Kind = "number"
	KindDate     Kind = "date"
	KindTime     Kind = "time"
	KindLocation Kind = "location"
	KindChoice   Kind = "choice"
)

// Value is the canonical, comparison-ready form of an answer.
// Two answers to the same input are equal iff their Values are equal.
type Value struct {
	Kind Kind
	Key  string
}

// Empty is the value of a blank or absent answer. Empty never conflicts.
var Empty = Value{}

// IsEmpty reports whether v is the Empty value.
func (v Value) IsEmpty() bool {
	return v == Empty
}

func (v Value) String() string {
	if v.IsEmpty() {
		return "<empty>"
	}
	return string(v.Kind) + ":" + v.Key
}

var (
	// ErrInvalidValue is returned when an answer does not fit its input type.
	ErrInvalidValue = errors.New("answer value is invalid")
	// ErrInvalidDatetime is returned when a date or time answer cannot be read with the input's format.
	ErrInvalidDatetime = errors.New("answer does not match the configured datetime format")
	// ErrUnsupportedUniqueness is returned for a uniqueness constraint on an input type that cannot be compared.
	ErrUnsupportedUniqueness = errors.New("uniqueness is not supported for this input type")
)
