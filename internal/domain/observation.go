package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultStation labels observations whose source carries no station
// identifier (a date-keyed scalar, or a record without a station field).
const DefaultStation = "site"

const isoLayout = "2006-01-02"

// Date is a calendar date with no time-of-day or timezone component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes y/m/d the way time.Date does (e.g. Jan 32 -> Feb 1).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseISODate parses a strict YYYY-MM-DD string.
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse(isoLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after o.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

// Before reports whether d falls before o.
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// After reports whether d falls after o.
func (d Date) After(o Date) bool { return d.Compare(o) > 0 }

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Compact formats d as YYYYMMDD, the form the agency's query parameters expect.
func (d Date) Compact() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText encodes d as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses a YYYY-MM-DD date.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseISODate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Observation is a single (date, station, value) data point.
type Observation struct {
	Date    Date    `json:"date"`
	Station string  `json:"station"`
	Value   float64 `json:"value"`
}

// Valid reports whether o satisfies the observation invariants: a non-zero
// date, a non-empty trimmed station and a finite value.
func (o Observation) Valid() bool {
	if o.Date.IsZero() || o.Station == "" || strings.TrimSpace(o.Station) != o.Station {
		return false
	}
	return !math.IsNaN(o.Value) && !math.IsInf(o.Value, 0)
}

// ObservationSet is the ordered, immutable result of extracting one document.
type ObservationSet struct {
	source string
	items  []Observation
}

// NewObservationSet copies the valid observations into a new set, preserving order.
func NewObservationSet(source string, items ...Observation) ObservationSet {
	kept := make([]Observation, 0, len(items))
	for _, o := range items {
		if o.Valid() {
			kept = append(kept, o)
		}
	}
	return ObservationSet{source: source, items: kept}
}

// Source is the label (usually the URL) the set was extracted from.
func (s ObservationSet) Source() string { return s.source }

// Len returns the number of observations.
func (s ObservationSet) Len() int { return len(s.items) }

// Empty reports whether the set holds no observations.
func (s ObservationSet) Empty() bool { return len(s.items) == 0 }

// All returns a copy of the observations in extraction order.
func (s ObservationSet) All() []Observation {
	out := make([]Observation, len(s.items))
	copy(out, s.items)
	return out
}

// WithSource returns a copy of s relabelled with source.
func (s ObservationSet) WithSource(source string) ObservationSet {
	return ObservationSet{source: source, items: s.items}
}
