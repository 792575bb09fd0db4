package domain

import (
	"strings"
)

const (
	readingsRootPrefix = "DYN_DAT_MINDS_RHRREAD"
)

// obsTimeKeys are tried in order for the reading date.
var obsTimeKeys = []string{"ObservationsObsTime", "ObservationsObsTimeAll"}

// ExtractReadings handles the per-district rainfall layout, where one document
// holds a single day's readings as sibling keys:
//
//	"CentralAndWesternDistrictRainfallValue": {"Val_Eng": "2.5"},
//	"CentralAndWesternDistrictLocationName":  {"Val_Eng": "Central & Western"},
//	"ObservationsObsTime":                    {"Val_Eng": "202405011200"}
//
// The reading date comes from ObservationsObsTime or ObservationsObsTimeAll,
// else fallback. The second
// return value is false when doc does not use this layout.
func ExtractReadings(doc any, fallback Date) (ObservationSet, bool) {
	root, ok := readingsRoot(doc)
	if !ok {
		return ObservationSet{}, false
	}

	d := fallback
	if parsed, ok := readingDate(root); ok {
		d = parsed
	}

	members, _ := membersOf(root)
	var out []Observation
	for _, m := range members {
		base, ok := readingBase(m.Key)
		if !ok {
			continue
		}

		raw, ok := localizedText(m.Value)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		v, ok := coerceFloat(raw)
		if !ok {
			continue
		}

		station := m.Key
		if loc, ok := lookup(root, base+"LocationName"); ok {
			if name, ok := localizedText(loc); ok && strings.TrimSpace(name) != "" {
				station = name
			}
		}
		out = append(out, Observation{Date: d, Station: strings.TrimSpace(station), Value: v})
	}
	return NewObservationSet("", out...), true
}

func readingsRoot(doc any) (any, bool) {
	members, ok := membersOf(doc)
	if !ok {
		return nil, false
	}
	for _, m := range members {
		if strings.HasPrefix(m.Key, readingsRootPrefix) {
			if _, ok := membersOf(m.Value); ok {
				return m.Value, true
			}
		}
	}
	return nil, false
}

func readingBase(key string) (string, bool) {
	if base, ok := strings.CutSuffix(key, "RainfallValue"); ok {
		return base, true
	}
	if base, ok := strings.CutSuffix(key, "Rainfall"); ok {
		return base, true
	}
	return "", false
}

// localizedText reads a {"Val_Eng": ..., "Val_Chi": ...} pair, preferring the
// English value, or the scalar itself.
func localizedText(v any) (string, bool) {
	if _, ok := membersOf(v); ok {
		for _, key := range []string{"Val_Eng", "Val_Chi"} {
			if val, ok := lookup(v, key); ok {
				if s, ok := tokenText(val); ok && s != "" {
					return s, true
				}
			}
		}
		return "", false
	}
	return tokenText(v)
}

func readingDate(root any) (Date, bool) {
	for _, key := range obsTimeKeys {
		obs, ok := lookup(root, key)
		if !ok {
			continue
		}
		if s, ok := localizedText(obs); ok && len(s) >= 8 {
			if d, ok := ParseDateToken(s[:8]); ok {
				return d, true
			}
		}
	}
	return Date{}, false
}
