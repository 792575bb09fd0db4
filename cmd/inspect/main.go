// Command inspect checks a matrix snapshot written by the collector and
// prints per-station totals. It exits non-zero when any check fails.
//
// Usage:
//
//	go run ./cmd/inspect -csv data/rain_by_station.csv -top 20
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/couchcryptid/rainfall-etl/internal/adapter/csvstore"
	"github.com/couchcryptid/rainfall-etl/internal/domain"
	"github.com/mattn/go-runewidth"
)

// phase tracks pass/fail for a check.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	path := flag.String("csv", "data/rain_by_station.csv", "snapshot to inspect")
	top := flag.Int("top", 20, "number of stations in the totals table (0 for all)")
	flag.Parse()

	os.Exit(run(os.Stdout, *path, *top))
}

func run(w io.Writer, path string, top int) int {
	fmt.Fprintln(w, "=== Rainfall Snapshot Inspection ===")
	fmt.Fprintln(w)

	m, err := csvstore.LoadFile(path)
	if err != nil {
		fmt.Fprintf(w, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		checkContinuity(m),
		checkValues(m),
		checkRoundTrip(m),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-30s %s\n", p.name, status)
	}

	dates := m.Dates()
	fmt.Fprintln(w)
	if len(dates) > 0 {
		fmt.Fprintf(w, "Range: %s .. %s (%d days), %d stations\n", dates[0], dates[len(dates)-1], len(dates), len(m.Stations()))
	}
	fmt.Fprintln(w)
	writeTotals(w, m.Totals(), top)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll checks passed.")
		return 0
	}
	fmt.Fprintln(w, "\nInspection FAILED.")
	return 1
}

// checkContinuity verifies rows are consecutive calendar days.
func checkContinuity(m *domain.Matrix) *phase {
	p := &phase{name: "Date continuity"}
	dates := m.Dates()
	for i := 1; i < len(dates); i++ {
		if want := dates[i-1].AddDays(1); dates[i] != want {
			p.errorf("gap after %s: next row is %s", dates[i-1], dates[i])
		}
	}
	return p
}

// checkValues verifies every cell is a finite, non-negative amount.
func checkValues(m *domain.Matrix) *phase {
	p := &phase{name: "Cell values"}
	for _, o := range m.Observations() {
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) || o.Value < 0 {
			p.errorf("%s %q: %v", o.Date, o.Station, o.Value)
		}
	}
	return p
}

// checkRoundTrip re-encodes the matrix and compares every cell.
func checkRoundTrip(m *domain.Matrix) *phase {
	p := &phase{name: "CSV round-trip"}

	var buf bytes.Buffer
	if err := csvstore.Store(&buf, m); err != nil {
		p.errorf("store: %v", err)
		return p
	}
	again, err := csvstore.Load(&buf)
	if err != nil {
		p.errorf("load: %v", err)
		return p
	}

	want, got := m.Observations(), again.Observations()
	if len(want) != len(got) {
		p.errorf("cell count %d, want %d", len(got), len(want))
		return p
	}
	for i := range want {
		if want[i] != got[i] {
			p.errorf("cell %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
	return p
}

// writeTotals prints the wettest stations, padding by display width so CJK
// station names stay aligned.
func writeTotals(w io.Writer, totals []domain.StationTotal, top int) {
	sort.SliceStable(totals, func(i, j int) bool { return totals[i].Total > totals[j].Total })
	if top > 0 && len(totals) > top {
		totals = totals[:top]
	}

	width := runewidth.StringWidth("Station")
	for _, t := range totals {
		width = max(width, runewidth.StringWidth(t.Station))
	}

	fmt.Fprintf(w, "%s  %10s\n", runewidth.FillRight("Station", width), "Total (mm)")
	fmt.Fprintf(w, "%s  %10s\n", strings.Repeat("-", width), strings.Repeat("-", 10))
	for _, t := range totals {
		fmt.Fprintf(w, "%s  %10.1f\n", runewidth.FillRight(t.Station, width), t.Total)
	}
}
