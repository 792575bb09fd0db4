// Package domain infers daily per-station rainfall from weather agency JSON
// documents that follow no published schema.
//
// # Data Source
//
// The Hong Kong Observatory serves its rainfall data from undocumented
// endpoints under https://my.weather.gov.hk/. Each endpoint has its own
// layout and many accept a day selector in one of several query parameters
// (date=, d=, time=, all YYYYMMDD). Layouts seen in practice:
//
// Date-keyed maps, values per station or a bare scalar:
//
//	{"20240501": {"Sha Tin": 12.5, "Tai Po": "3"}, "note": "..."}
//	{"20240501": 12.5}                 -> station "site"
//
// Station-keyed series (two or more stations required):
//
//	{"Sha Tin": {"20240501": 12.5}, "Tai Po": {"20240501": 3}}
//
// Record lists, date and value field inferred from the first record:
//
//	[{"obsDate": "2024-05-01", "station": "SHA", "rain": "12.5"}, ...]
//
// District readings (DYN_DAT_MINDS_RHRREAD), one day per document:
//
//	{"DYN_DAT_MINDS_RHRREAD": {
//	    "ShaTinRainfallValue": {"Val_Eng": "12.5"},
//	    "ShaTinLocationName":  {"Val_Eng": "Sha Tin"},
//	    "ObservationsObsTime": {"Val_Eng": "202405011200"}}}
//
// Some responses (one_json_uc.xml) wrap a JSON object in XML; DecodeDocument
// recovers the embedded object.
//
// # Date tokens
//
// Dates appear as YYYYMMDD, YYYY-MM-DD, or buried in a longer timestamp.
// [ParseDateToken] accepts exactly these in that priority order and keeps only
// the calendar date.
//
// # Shape heuristics
//
// [Classify] tags each node once and [Extract] matches on the tag:
//
//	DateKeyedMap     any of the first 200 keys parses as a date (terminal)
//	StationKeyedMap  >= 2 members are date-keyed scalar series
//	RecordList       first record has a date field and a numeric field (terminal)
//	Opaque           recurse into children
//
// A single date-like key is enough to classify a mapping as date-keyed, so
// metadata mappings occasionally produce spurious observations. Known
// limitation.
//
// # Aggregation
//
// [Pivot] sums every (date, station) pair across documents. Partial
// extractions of the same day accumulate instead of overwriting each other.
// Missing cells read as zero.
package domain
