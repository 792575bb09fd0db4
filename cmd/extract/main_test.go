package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/rainfall-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	rng, err := parseRange("", "")
	require.NoError(t, err)
	assert.Nil(t, rng)

	rng, err = parseRange("2024-04-01", "2024-04-03")
	require.NoError(t, err)
	assert.Len(t, rng.Days(), 3)

	_, err = parseRange("2024-04-01", "")
	assert.Error(t, err)

	_, err = parseRange("2024-04-03", "2024-04-01")
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = parseRange("April 1", "2024-04-03")
	assert.Error(t, err)
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "one_json_uc.xml")
	body := `<?xml version="1.0"?><root>{"FLW": {}, "20240501": {"Sha Tin": 4}}</root>`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	set, err := extractFile(path, domain.Date{})
	require.NoError(t, err)
	assert.Equal(t, path, set.Source())
	assert.Equal(t, []domain.Observation{
		{Date: domain.NewDate(2024, time.May, 1), Station: "Sha Tin", Value: 4},
	}, set.All())

	_, err = extractFile(filepath.Join(dir, "missing.json"), domain.Date{})
	assert.Error(t, err)
}
