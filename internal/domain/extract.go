package domain

import "strings"

// stationFields are the record fields checked, in order, for a station name.
var stationFields = []string{"station", "site", "station_id", "id", "name"}

// Extract walks a decoded document depth-first and returns every observation
// found in date-keyed maps, station-keyed maps and record lists. Malformed
// dates and values drop the single entry they belong to. The walk never
// mutates the document.
func Extract(doc any) ObservationSet {
	var w walker
	w.walk(doc)
	return NewObservationSet("", w.out...)
}

// ExtractDocument extracts a document fetched for a given day. The district
// readings layout is tried first since its date lives in a sibling field and
// falls back to the requested day; anything else goes through Extract.
func ExtractDocument(doc any, fallback Date) ObservationSet {
	if set, ok := ExtractReadings(doc, fallback); ok {
		return set
	}
	return Extract(doc)
}

type walker struct {
	out []Observation
}

func (w *walker) emit(d Date, station string, value float64) {
	w.out = append(w.out, Observation{Date: d, Station: station, Value: value})
}

func (w *walker) walk(node any) {
	shape := Classify(node)
	switch shape.Kind {
	case DateKeyedMap:
		w.dateKeyed(node)
	case StationKeyedMap:
		w.stationKeyed(node)
	case RecordList:
		w.records(node.([]any), shape)
	case Opaque:
		w.children(node)
	}
}

func (w *walker) children(node any) {
	if members, ok := membersOf(node); ok {
		for _, m := range members {
			w.walk(m.Value)
		}
		return
	}
	if items, ok := node.([]any); ok {
		for _, it := range items {
			w.walk(it)
		}
	}
}

func (w *walker) dateKeyed(node any) {
	members, _ := membersOf(node)
	for _, m := range members {
		d, ok := ParseDateToken(m.Key)
		if !ok {
			continue
		}

		if byStation, ok := membersOf(m.Value); ok {
			for _, st := range byStation {
				station := strings.TrimSpace(st.Key)
				if station == "" {
					continue
				}
				if v, ok := coerceFloat(st.Value); ok {
					w.emit(d, station, v)
				}
			}
			continue
		}

		if v, ok := coerceFloat(m.Value); ok {
			w.emit(d, DefaultStation, v)
		}
	}
}

func (w *walker) stationKeyed(node any) {
	members, _ := membersOf(node)
	for _, m := range members {
		station := strings.TrimSpace(m.Key)
		if station == "" || !isScalarSeries(m.Value) {
			w.walk(m.Value)
			continue
		}

		series, _ := membersOf(m.Value)
		for _, entry := range series {
			d, ok := ParseDateToken(entry.Key)
			if !ok {
				continue
			}
			if v, ok := coerceFloat(entry.Value); ok {
				w.emit(d, station, v)
			}
		}
	}
}

func (w *walker) records(items []any, shape Shape) {
	for _, it := range items {
		dateVal, ok := lookup(it, shape.DateField)
		if !ok {
			continue
		}
		d, ok := parseDateValue(dateVal)
		if !ok {
			continue
		}

		raw, ok := lookup(it, shape.ValueField)
		if !ok {
			continue
		}
		v, ok := coerceFloat(raw)
		if !ok {
			continue
		}

		w.emit(d, recordStation(it), v)
	}
}

// recordStation returns the first non-empty station field of a record.
func recordStation(record any) string {
	for _, f := range stationFields {
		v, ok := lookup(record, f)
		if !ok {
			continue
		}
		if s, ok := tokenText(v); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return DefaultStation
}
