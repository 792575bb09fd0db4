package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDocument_PreservesKeyOrder(t *testing.T) {
	doc := mustDecode(t, `{"b": 1, "a": [true, null, "x"], "c": {"z": 1, "y": 2}}`)

	obj, ok := doc.(*Object)
	require.True(t, ok)
	require.Equal(t, 3, obj.Len())
	assert.Equal(t, "b", obj.Members[0].Key)
	assert.Equal(t, "a", obj.Members[1].Key)
	assert.Equal(t, "c", obj.Members[2].Key)
	assert.Equal(t, json.Number("1"), obj.Members[0].Value)
	assert.Equal(t, []any{true, nil, "x"}, obj.Members[1].Value)

	inner, ok := obj.Get("c")
	require.True(t, ok)
	assert.Equal(t, "z", inner.(*Object).Members[0].Key)

	_, ok = obj.Get("missing")
	assert.False(t, ok)
}

func TestDecodeDocument_Salvage(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantKey string
	}{
		{
			name:    "json inside xml",
			body:    `<?xml version="1.0"?><root><![CDATA[{"FLW": {"text": "a } b"}, "20240101": {"A": 1}}]]></root>`,
			wantKey: "FLW",
		},
		{
			name:    "jsonp callback",
			body:    `callback({"20240101": 5});`,
			wantKey: "20240101",
		},
		{
			name:    "trailing garbage",
			body:    `{"a": 1} <!-- cached -->`,
			wantKey: "a",
		},
		{
			name:    "byte order mark",
			body:    "\xef\xbb\xbf{\"a\": 1}",
			wantKey: "a",
		},
		{
			name:    "flw marker preferred over earlier braces",
			body:    `<script>var x = {bad js};</script>{ "FLW": {"x": "\"}"}}`,
			wantKey: "FLW",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := DecodeDocument([]byte(tt.body))
			require.NoError(t, err)
			obj, ok := doc.(*Object)
			require.True(t, ok)
			_, ok = obj.Get(tt.wantKey)
			assert.True(t, ok)
		})
	}
}

func TestDecodeDocument_NotJSON(t *testing.T) {
	for _, body := range []string{
		`<html><body>no data</body></html>`,
		`{"a": 1`,
		``,
		`{bad}`,
	} {
		_, err := DecodeDocument([]byte(body))
		assert.ErrorIs(t, err, ErrNotJSON, body)
	}
}

func TestDecodeDocument_TopLevelArray(t *testing.T) {
	doc := mustDecode(t, `[{"date": "20240101", "v": 1}]`)
	items, ok := doc.([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)
}
