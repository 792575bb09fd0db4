package domain

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidRange is returned when a date range ends before it starts.
var ErrInvalidRange = errors.New("invalid date range: end precedes start")

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start Date
	End   Date
}

// LastDays returns the n-day range ending on (and including) end.
func LastDays(end Date, n int) DateRange {
	return DateRange{Start: end.AddDays(-(n - 1)), End: end}
}

// Validate returns ErrInvalidRange when End precedes Start.
func (r DateRange) Validate() error {
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days lists every day of the range in ascending order.
func (r DateRange) Days() []Date {
	var days []Date
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// Matrix is a dense date x station table. Rows are dates in ascending order,
// columns are stations in first-seen order, and every cell holds the sum of
// the observations for that (date, station); absent pairs read as 0.
type Matrix struct {
	dates    []Date
	stations []string
	values   [][]float64
	rowIndex map[Date]int
	colIndex map[string]int
}

type cellKey struct {
	date    Date
	station string
}

// Pivot merges observation sets into a Matrix, summing duplicate
// (date, station) pairs. With a range the rows are exactly the days of the
// range and observations outside it are dropped; without one the rows are the
// distinct observed dates. Columns cover every station seen in the input.
func Pivot(sets []ObservationSet, rng *DateRange) (*Matrix, error) {
	if rng != nil {
		if err := rng.Validate(); err != nil {
			return nil, err
		}
	}

	sums := make(map[cellKey]float64)
	seenDates := make(map[Date]struct{})
	var stations []string
	seenStations := make(map[string]struct{})

	for _, set := range sets {
		for _, o := range set.items {
			if _, ok := seenStations[o.Station]; !ok {
				seenStations[o.Station] = struct{}{}
				stations = append(stations, o.Station)
			}
			if rng != nil && !rng.Contains(o.Date) {
				continue
			}
			sums[cellKey{o.Date, o.Station}] += o.Value
			seenDates[o.Date] = struct{}{}
		}
	}

	var dates []Date
	if rng != nil {
		dates = rng.Days()
	} else {
		dates = make([]Date, 0, len(seenDates))
		for d := range seenDates {
			dates = append(dates, d)
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	}

	m := newEmptyMatrix(dates, stations)
	for k, v := range sums {
		m.values[m.rowIndex[k.date]][m.colIndex[k.station]] = v
	}
	return m, nil
}

// NewMatrix builds a Matrix from explicit axes and row-major values, as read
// back from a snapshot. Dates must be strictly ascending, stations unique and
// every row as wide as the station list.
func NewMatrix(dates []Date, stations []string, values [][]float64) (*Matrix, error) {
	if len(values) != len(dates) {
		return nil, fmt.Errorf("matrix has %d dates but %d rows", len(dates), len(values))
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i-1].Before(dates[i]) {
			return nil, fmt.Errorf("matrix dates not ascending at %s", dates[i])
		}
	}
	seen := make(map[string]struct{}, len(stations))
	for _, s := range stations {
		if s == "" {
			return nil, errors.New("matrix has an empty station name")
		}
		if _, dup := seen[s]; dup {
			return nil, fmt.Errorf("matrix has duplicate station %q", s)
		}
		seen[s] = struct{}{}
	}

	m := newEmptyMatrix(dates, stations)
	for i, row := range values {
		if len(row) != len(stations) {
			return nil, fmt.Errorf("row %s has %d values, want %d", dates[i], len(row), len(stations))
		}
		copy(m.values[i], row)
	}
	return m, nil
}

func newEmptyMatrix(dates []Date, stations []string) *Matrix {
	m := &Matrix{
		dates:    append([]Date(nil), dates...),
		stations: append([]string(nil), stations...),
		values:   make([][]float64, len(dates)),
		rowIndex: make(map[Date]int, len(dates)),
		colIndex: make(map[string]int, len(stations)),
	}
	for i, d := range m.dates {
		m.values[i] = make([]float64, len(stations))
		m.rowIndex[d] = i
	}
	for j, s := range m.stations {
		m.colIndex[s] = j
	}
	return m
}

// Dates returns the row axis.
func (m *Matrix) Dates() []Date { return append([]Date(nil), m.dates...) }

// Stations returns the column axis.
func (m *Matrix) Stations() []string { return append([]string(nil), m.stations...) }

// Value returns the cell for (d, station), 0 when either axis lacks it.
func (m *Matrix) Value(d Date, station string) float64 {
	i, ok := m.rowIndex[d]
	if !ok {
		return 0
	}
	j, ok := m.colIndex[station]
	if !ok {
		return 0
	}
	return m.values[i][j]
}

// Row returns a copy of row i in column order.
func (m *Matrix) Row(i int) []float64 {
	return append([]float64(nil), m.values[i]...)
}

// Observations lists every cell, zeros included, row by row.
func (m *Matrix) Observations() []Observation {
	out := make([]Observation, 0, len(m.dates)*len(m.stations))
	for i, d := range m.dates {
		for j, s := range m.stations {
			out = append(out, Observation{Date: d, Station: s, Value: m.values[i][j]})
		}
	}
	return out
}

// StationTotal is one station's sum over every row of a Matrix.
type StationTotal struct {
	Station string  `json:"station"`
	Total   float64 `json:"total"`
}

// Totals sums each column, in column order.
func (m *Matrix) Totals() []StationTotal {
	out := make([]StationTotal, len(m.stations))
	for j, s := range m.stations {
		out[j].Station = s
		for i := range m.dates {
			out[j].Total += m.values[i][j]
		}
	}
	return out
}
