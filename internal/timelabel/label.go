// Package timelabel implements the fixed-width "HHMM" time-of-day labels
// reminders are scheduled and snoozed with.
package timelabel

import (
	"errors"
	"fmt"
	"time"
)

const minutesPerDay = 24 * 60

// ErrMalformed is returned for input that is not a valid "HHMM" label.
var ErrMalformed = errors.New("malformed time label")

// Label is a minute of the day. The zero Label is "unset" and renders as "".
type Label struct {
	minutes int
	valid   bool
}

// Parse parses exactly four digits with hour < 24 and minute < 60.
func Parse(s string) (Label, error) {
	if len(s) != 4 {
		return Label{}, fmt.Errorf("%w: %q is not 4 digits", ErrMalformed, s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return Label{}, fmt.Errorf("%w: %q is not 4 digits", ErrMalformed, s)
		}
	}

	hour := int(s[0]-'0')*10 + int(s[1]-'0')
	minute := int(s[2]-'0')*10 + int(s[3]-'0')
	if hour > 23 {
		return Label{}, fmt.Errorf("%w: %q hour out of range", ErrMalformed, s)
	}
	if minute > 59 {
		return Label{}, fmt.Errorf("%w: %q minute out of range", ErrMalformed, s)
	}

	return Label{minutes: hour*60 + minute, valid: true}, nil
}

// ParseOptional is Parse, except "" yields the zero Label.
func ParseOptional(s string) (Label, error) {
	if s == "" {
		return Label{}, nil
	}
	return Parse(s)
}

// MustParse is Parse that panics. Intended for constants and tests.
func MustParse(s string) Label {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

// FromTime returns the label of t's local wall-clock minute.
func FromTime(t time.Time) Label {
	return Label{minutes: t.Hour()*60 + t.Minute(), valid: true}
}

// Now returns the label for the current local time.
func Now() Label {
	return FromTime(time.Now())
}

// IsZero reports whether the label is unset.
func (l Label) IsZero() bool {
	return !l.valid
}

// AddMinutes returns l shifted by n minutes, wrapping at midnight.
// The zero Label stays zero.
func (l Label) AddMinutes(n int) Label {
	if !l.valid {
		return l
	}
	m := ((l.minutes+n)%minutesPerDay + minutesPerDay) % minutesPerDay
	return Label{minutes: m, valid: true}
}

// Hour and Minute of the label. Both are 0 for the zero Label.
func (l Label) Hour() int   { return l.minutes / 60 }
func (l Label) Minute() int { return l.minutes % 60 }

// Int returns the label read as a decimal number (e.g. "0930" -> 930).
// The zero Label is 0.
func (l Label) Int() int {
	return l.Hour()*100 + l.Minute()
}

// Before reports whether l is earlier in the day than o.
// Unset labels sort first.
func (l Label) Before(o Label) bool {
	return l.Int() < o.Int()
}

func (l Label) String() string {
	if !l.valid {
		return ""
	}
	return fmt.Sprintf("%02d%02d", l.Hour(), l.Minute())
}

func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Label) UnmarshalText(b []byte) error {
	parsed, err := ParseOptional(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
