package domain

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Shape
	}{
		{"date keyed with metadata", `{"meta":"x","20240101":{"A":1}}`, Shape{Kind: DateKeyedMap}},
		{"iso date keys", `{"2024-01-01":3,"2024-01-02":4}`, Shape{Kind: DateKeyedMap}},
		{"coincidental date key", `{"20240101":"generated","title":"Rainfall"}`, Shape{Kind: DateKeyedMap}},
		{"date only in values", `{"updated":"20240101","id":"x"}`, Shape{Kind: Opaque}},
		{"station keyed", `{"A":{"20240101":1},"B":{"20240102":"2"}}`, Shape{Kind: StationKeyedMap}},
		{"single wrapped series", `{"data":{"20240101":1}}`, Shape{Kind: Opaque}},
		{"station map values are not series", `{"A":{"20240101":{"x":1}},"B":{"20240102":{"y":2}}}`, Shape{Kind: Opaque}},
		{
			"record list",
			`[{"date":"20240101","station":"X","val":"3.2"}]`,
			Shape{Kind: RecordList, DateField: "date", ValueField: "val"},
		},
		{
			"date field found by value",
			`[{"when":"2024-01-01","rain":1}]`,
			Shape{Kind: RecordList, DateField: "when", ValueField: "rain"},
		},
		{
			"numeric date field",
			`[{"day":20240101,"rain":3}]`,
			Shape{Kind: RecordList, DateField: "day", ValueField: "rain"},
		},
		{
			"first numeric field wins",
			`[{"obsDate":"20240101","id":7,"rain":3}]`,
			Shape{Kind: RecordList, DateField: "obsDate", ValueField: "id"},
		},
		{
			"leading number counts as numeric",
			`[{"station":"X","val":" 12mm","date":"20240101"}]`,
			Shape{Kind: RecordList, DateField: "date", ValueField: "val"},
		},
		{"records without numeric field", `[{"date":"20240101","station":"X"}]`, Shape{Kind: Opaque}},
		{"records without date field", `[{"station":"X","val":1}]`, Shape{Kind: Opaque}},
		{"list of scalars", `[1,2,3]`, Shape{Kind: Opaque}},
		{"empty list", `[]`, Shape{Kind: Opaque}},
		{"empty object", `{}`, Shape{Kind: Opaque}},
		{"scalar", `"20240101"`, Shape{Kind: Opaque}},
		{"null", `null`, Shape{Kind: Opaque}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(mustDecode(t, tt.body)))
		})
	}
}

func TestClassify_OnlyFirst200KeysAreSniffed(t *testing.T) {
	obj := &Object{}
	for i := range maxSniffKeys {
		obj.Members = append(obj.Members, Member{Key: fmt.Sprintf("k%d", i), Value: json.Number("1")})
	}
	obj.Members = append(obj.Members, Member{Key: "20240101", Value: json.Number("1")})

	assert.Equal(t, Opaque, Classify(obj).Kind)

	obj.Members[maxSniffKeys-1].Key = "20240102"
	assert.Equal(t, DateKeyedMap, Classify(obj).Kind)
}

func TestClassify_PlainMap(t *testing.T) {
	doc := map[string]any{"20240101": map[string]any{"A": 1.0}}
	assert.Equal(t, DateKeyedMap, Classify(doc).Kind)
}

func TestShapeKindString(t *testing.T) {
	assert.Equal(t, "date_keyed_map", DateKeyedMap.String())
	assert.Equal(t, "station_keyed_map", StationKeyedMap.String())
	assert.Equal(t, "record_list", RecordList.String())
	assert.Equal(t, "opaque", Opaque.String())
}
