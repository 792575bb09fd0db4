package domain

import (
	"regexp"
	"time"
)

var (
	compactDateRe  = regexp.MustCompile(`^\d{8}$`)
	isoDateRe      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	embeddedDateRe = regexp.MustCompile(`20\d{6}`)
)

// ParseDateToken recognizes a date-like token and returns its calendar date.
// Shapes are tried in order:
//
//  1. exactly eight digits, YYYYMMDD
//  2. exactly YYYY-MM-DD
//  3. the first 20YYMMDD run embedded anywhere in the text, e.g. a
//     "202405011230" observation timestamp
//
// A token that fully matches shape 1 or 2 but names an impossible day
// (month 13, Feb 30) is rejected rather than retried against shape 3.
func ParseDateToken(text string) (Date, bool) {
	switch {
	case text == "":
		return Date{}, false
	case compactDateRe.MatchString(text):
		return parseLayout("20060102", text)
	case isoDateRe.MatchString(text):
		return parseLayout(isoLayout, text)
	}

	m := embeddedDateRe.FindString(text)
	if m == "" {
		return Date{}, false
	}
	return parseLayout("20060102", m)
}

func parseLayout(layout, s string) (Date, bool) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return Date{}, false
	}
	return DateOf(t), true
}
