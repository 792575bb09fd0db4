package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
)

// ErrNotJSON is returned when no JSON document can be recovered from a body.
var ErrNotJSON = errors.New("no JSON document found")

// flwMarkerRe finds the forecast payload the agency wraps inside its
// one_json_uc.xml responses.
var flwMarkerRe = regexp.MustCompile(`\{\s*"FLW"`)

// Object is a decoded JSON object that keeps its members in document order.
// Key order matters to the shape heuristics, so documents are never decoded
// into map[string]any.
type Object struct {
	Members []Member
}

// Member is one key/value pair of an Object.
type Member struct {
	Key   string
	Value any
}

// NewObject builds an Object from members in the given order.
func NewObject(members ...Member) *Object {
	return &Object{Members: members}
}

// Get returns the value of the first member named key.
func (o *Object) Get(key string) (any, bool) {
	for _, m := range o.Members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Len returns the number of members.
func (o *Object) Len() int { return len(o.Members) }

// DecodeDocument decodes a response body into a JSON-like tree of *Object,
// []any, string, json.Number, bool and nil. Bodies that are not valid JSON are
// searched for an embedded object (XML or HTML wrappers around a JSON payload).
func DecodeDocument(body []byte) (any, error) {
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	if doc, err := decodeStrict(body); err == nil {
		return doc, nil
	}

	for _, start := range salvageStarts(body) {
		block, ok := balancedObject(body, start)
		if !ok {
			continue
		}
		if doc, err := decodeStrict(block); err == nil {
			return doc, nil
		}
	}
	return nil, ErrNotJSON
}

func salvageStarts(body []byte) []int {
	var starts []int
	if loc := flwMarkerRe.FindIndex(body); loc != nil {
		starts = append(starts, loc[0])
	}
	if i := bytes.IndexByte(body, '{'); i >= 0 && (len(starts) == 0 || starts[0] != i) {
		starts = append(starts, i)
	}
	return starts
}

// balancedObject returns the {...} block opening at start, skipping braces
// that appear inside string literals.
func balancedObject(body []byte, start int) ([]byte, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(body); i++ {
		c := body[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return body[start : i+1], true
			}
		}
	}
	return nil, false
}

func decodeStrict(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	doc, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON document")
	}
	return doc, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := &Object{}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("object key %v is not a string", keyTok)
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj.Members = append(obj.Members, Member{Key: key, Value: v})
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		items := make([]any, 0)
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", delim)
	}
}

// membersOf returns the members of a mapping node in iteration order.
// Plain map[string]any values (documents parsed elsewhere) have no source
// order, so their keys are visited sorted to keep the walk deterministic.
func membersOf(v any) ([]Member, bool) {
	switch m := v.(type) {
	case *Object:
		if m == nil {
			return nil, false
		}
		return m.Members, true
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		members := make([]Member, len(keys))
		for i, k := range keys {
			members[i] = Member{Key: k, Value: m[k]}
		}
		return members, true
	default:
		return nil, false
	}
}

// lookup returns the value of key in a mapping node.
func lookup(v any, key string) (any, bool) {
	switch m := v.(type) {
	case *Object:
		if m == nil {
			return nil, false
		}
		return m.Get(key)
	case map[string]any:
		val, ok := m[key]
		return val, ok
	default:
		return nil, false
	}
}
