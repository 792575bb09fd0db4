// Command extract runs the station/date extractor over local documents and
// prints the observations as JSON lines. With -csv it also pivots them into a
// matrix snapshot.
//
// Usage:
//
//	go run ./cmd/extract \
//	  -fallback 2024-05-01 \
//	  -start 2024-04-01 -end 2024-05-01 \
//	  -csv data/rain_by_station.csv \
//	  captures/*.json captures/one_json_uc.xml
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/couchcryptid/rainfall-etl/internal/adapter/csvstore"
	"github.com/couchcryptid/rainfall-etl/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	fallback := flag.String("fallback", "", "date (YYYY-MM-DD) for documents that carry none")
	start := flag.String("start", "", "first day of the pivot range (YYYY-MM-DD)")
	end := flag.String("end", "", "last day of the pivot range (YYYY-MM-DD)")
	csvOut := flag.String("csv", "", "write the pivoted matrix to this path")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return errors.New("no input documents")
	}

	var fb domain.Date
	if *fallback != "" {
		d, err := domain.ParseISODate(*fallback)
		if err != nil {
			return fmt.Errorf("-fallback: %w", err)
		}
		fb = d
	}

	rng, err := parseRange(*start, *end)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	enc := json.NewEncoder(out)

	var sets []domain.ObservationSet //nolint:prealloc // unreadable documents are skipped
	for _, path := range flag.Args() {
		set, err := extractFile(path, fb)
		if err != nil {
			log.Printf("%s: skipped: %v", path, err)
			continue
		}
		log.Printf("%s: %d observations", path, set.Len())
		for _, o := range set.All() {
			if err := enc.Encode(o); err != nil {
				return fmt.Errorf("write observation: %w", err)
			}
		}
		sets = append(sets, set)
	}

	if *csvOut == "" {
		return nil
	}
	m, err := domain.Pivot(sets, rng)
	if err != nil {
		return fmt.Errorf("pivot: %w", err)
	}
	if err := csvstore.SaveFile(*csvOut, m); err != nil {
		return err
	}
	log.Printf("matrix: %d dates x %d stations -> %s", len(m.Dates()), len(m.Stations()), *csvOut)
	return nil
}

func extractFile(path string, fallback domain.Date) (domain.ObservationSet, error) {
	//nolint:gosec // G304: paths come from the command line.
	body, err := os.ReadFile(path)
	if err != nil {
		return domain.ObservationSet{}, err
	}
	doc, err := domain.DecodeDocument(body)
	if err != nil {
		return domain.ObservationSet{}, err
	}
	return domain.ExtractDocument(doc, fallback).WithSource(path), nil
}

// parseRange returns nil when neither bound is given.
func parseRange(start, end string) (*domain.DateRange, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, errors.New("-start and -end must be given together")
	}
	s, err := domain.ParseISODate(start)
	if err != nil {
		return nil, fmt.Errorf("-start: %w", err)
	}
	e, err := domain.ParseISODate(end)
	if err != nil {
		return nil, fmt.Errorf("-end: %w", err)
	}
	rng := &domain.DateRange{Start: s, End: e}
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	return rng, nil
}
