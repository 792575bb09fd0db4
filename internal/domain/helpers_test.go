package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func fakeClockAt(t time.Time) clockwork.Clock {
	return clockwork.NewFakeClockAt(t)
}

func mustDecode(t *testing.T, body string) any {
	t.Helper()
	doc, err := DecodeDocument([]byte(body))
	require.NoError(t, err)
	return doc
}

func day(s string) Date {
	d, err := ParseISODate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func obs(date, station string, value float64) Observation {
	return Observation{Date: day(date), Station: station, Value: value}
}
