package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBirthData_MonthNameDate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"with period", "Geboren am 26. August 1993 in Hamburg.", "1993-08-26"},
		{"without period", "Ich kam am 3 Oktober 1960 zur Welt.", "1960-10-03"},
		{"umlaut month", "Geboren am 1. März 2001.", "2001-03-01"},
		{"transcribed month", "geboren am 1. maerz 2001", "2001-03-01"},
		{"month name beats bare year", "Am 26. August 1993, also vor 1990 war das nicht.", "1993-08-26"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractBirthData(tt.text)
			assert.Equal(t, tt.want, got.BirthDate)
		})
	}
}

func TestExtractBirthData_NumericDate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"dotted day first", "Ich bin am 05.10.1990 geboren.", "1990-10-05"},
		{"slashes", "Geburtstag: 7/12/1955", "1955-12-07"},
		{"two digit year 1900s", "Geboren am 12.04.99.", "1999-04-12"},
		{"two digit year 2000s", "Mein Kind kam am 03.06.12 zur Welt.", "2012-06-03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractBirthData(tt.text)
			assert.Equal(t, tt.want, got.BirthDate)
		})
	}
}

func TestExtractBirthData_BareYear(t *testing.T) {
	got := ExtractBirthData("Ich bin 1993 geboren.")
	assert.Equal(t, "1993-01-01", got.BirthDate)

	got = ExtractBirthData("Jahrgang 2004.")
	assert.Equal(t, "2004-01-01", got.BirthDate)

	// Implausible numeric dates fall through to the year rule.
	got = ExtractBirthData("Geboren am 99.99.1990.")
	assert.Equal(t, "1990-01-01", got.BirthDate)
}

func TestExtractBirthData_NoDate(t *testing.T) {
	got := ExtractBirthData("Ich bin in Hamburg aufgewachsen.")
	assert.Equal(t, "", got.BirthDate)
}

func TestExtractBirthData_BirthPlace(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"place before geboren", "Ich bin in München geboren.", "München"},
		{"place after geboren", "Geboren am 26. August 1993 in Hamburg.", "Hamburg"},
		{"stopword clips clause", "Ich bin in München im Jahr 1980 geboren.", "München"},
		{"und clips clause", "Ich wurde geboren in Köln und zog dann weg.", "Köln"},
		{"multi word place", "Ich bin in Frankfurt am Main geboren.", "Frankfurt"},
		{"no place", "Ich bin 1993 geboren.", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractBirthData(tt.text)
			assert.Equal(t, tt.want, got.BirthPlace)
		})
	}
}

func TestExtractBirthData_FieldsIndependent(t *testing.T) {
	got := ExtractBirthData("Ich bin in Dresden geboren.")
	assert.Equal(t, "Dresden", got.BirthPlace)
	assert.Equal(t, "", got.BirthDate)
	assert.False(t, got.Empty())

	assert.True(t, ExtractBirthData("Dazu sage ich nichts.").Empty())
}
