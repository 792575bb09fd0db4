package domain

import "strings"

// maxSniffKeys bounds how many members of a mapping are inspected when
// deciding its shape.
const maxSniffKeys = 200

// ShapeKind is the heuristic classification of a document node.
type ShapeKind int

const (
	// Opaque nodes are never aggregated; the walk only recurses into them.
	Opaque ShapeKind = iota
	// DateKeyedMap is a mapping keyed by dates, e.g. {"20240101": {"A": 1.5}}.
	DateKeyedMap
	// StationKeyedMap is a mapping of station names to date-keyed series,
	// e.g. {"A": {"20240101": 1}, "B": {"20240101": 2}}.
	StationKeyedMap
	// RecordList is a list of records each carrying a date and a value field.
	RecordList
)

func (k ShapeKind) String() string {
	switch k {
	case DateKeyedMap:
		return "date_keyed_map"
	case StationKeyedMap:
		return "station_keyed_map"
	case RecordList:
		return "record_list"
	default:
		return "opaque"
	}
}

// Shape is the result of classifying a node. DateField and ValueField are set
// only for RecordList and apply to every record of the list.
type Shape struct {
	Kind       ShapeKind
	DateField  string
	ValueField string
}

// Classify decides which shape a node has. One date-like key among the first
// maxSniffKeys is enough to treat a mapping as date-keyed; metadata mappings
// with a coincidental date key are accepted as false positives.
func Classify(v any) Shape {
	if members, ok := membersOf(v); ok {
		return classifyMapping(members)
	}
	if items, ok := v.([]any); ok {
		return classifyList(items)
	}
	return Shape{Kind: Opaque}
}

func classifyMapping(members []Member) Shape {
	if len(members) == 0 {
		return Shape{Kind: Opaque}
	}
	if hasDateKey(members) {
		return Shape{Kind: DateKeyedMap}
	}

	series := 0
	for _, m := range sniffWindow(members) {
		if isScalarSeries(m.Value) {
			series++
		}
		if series >= 2 {
			return Shape{Kind: StationKeyedMap}
		}
	}
	return Shape{Kind: Opaque}
}

func classifyList(items []any) Shape {
	if len(items) == 0 {
		return Shape{Kind: Opaque}
	}
	sample, ok := membersOf(items[0])
	if !ok {
		return Shape{Kind: Opaque}
	}

	dateField, found := "", false
	for _, m := range sample {
		if isDateField(m) {
			dateField, found = m.Key, true
			break
		}
	}
	if !found {
		return Shape{Kind: Opaque}
	}

	for _, m := range sample {
		if m.Key == dateField {
			continue
		}
		if looksNumeric(m.Value) {
			return Shape{Kind: RecordList, DateField: dateField, ValueField: m.Key}
		}
	}
	return Shape{Kind: Opaque}
}

func isDateField(m Member) bool {
	if strings.Contains(strings.ToLower(m.Key), "date") {
		return true
	}
	_, ok := parseDateValue(m.Value)
	return ok
}

func hasDateKey(members []Member) bool {
	for _, m := range sniffWindow(members) {
		if _, ok := ParseDateToken(m.Key); ok {
			return true
		}
	}
	return false
}

// isScalarSeries reports whether v is a date-keyed mapping whose date entries
// hold scalars, i.e. one station's series.
func isScalarSeries(v any) bool {
	members, ok := membersOf(v)
	if !ok || !hasDateKey(members) {
		return false
	}
	for _, m := range members {
		if _, ok := ParseDateToken(m.Key); ok && !isScalar(m.Value) {
			return false
		}
	}
	return true
}

func sniffWindow(members []Member) []Member {
	if len(members) > maxSniffKeys {
		return members[:maxSniffKeys]
	}
	return members
}
