package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/patabrava/nality-sub002/internal/model"
)

// germanMonths resolves full German month names to their numbers.
// "maerz" covers transcriptions that drop the umlaut.
var germanMonths = map[string]int{
	"januar":    1,
	"februar":   2,
	"märz":      3,
	"maerz":     3,
	"april":     4,
	"mai":       5,
	"juni":      6,
	"juli":      7,
	"august":    8,
	"september": 9,
	"oktober":   10,
	"november":  11,
	"dezember":  12,
}

var (
	// monthNameDate matches "26. August 1993" and "26 August 1993"; voice
	// transcription drops the period after the day.
	monthNameDate = regexp.MustCompile(`(?i)\b(\d{1,2})\.?\s+(januar|februar|märz|maerz|april|mai|juni|juli|august|september|oktober|november|dezember)\s+(\d{4})\b`)

	// numericDate matches DD.MM.YYYY and DD/MM/YY with 2- or 4-digit year.
	numericDate = regexp.MustCompile(`\b(\d{1,2})[./](\d{1,2})[./](\d{4}|\d{2})\b`)

	// bareYear matches a plausible 4-digit birth year on its own.
	bareYear = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)

	// placeAfterBirth matches "geboren ... in <place>"; periods between
	// are allowed because dates like "26. August" appear there.
	placeAfterBirth = regexp.MustCompile(`(?i)\bgeboren\b[^!?]*?\bin\s+([^.!?,;]+)`)

	// placeBeforeBirth matches "in <place> geboren".
	placeBeforeBirth = regexp.MustCompile(`(?i)\bin\s+([^.!?,;]+?)\s+geboren\b`)
)

// placeStopwords end a captured place: anything after them is a different
// clause ("geboren in München im Jahr 1980").
var placeStopwords = map[string]bool{
	"und": true, "im": true, "am": true, "als": true, "wo": true,
	"aber": true, "dann": true, "jahr": true, "bei": true, "mit": true,
}

// ExtractBirthData parses a birth date and birth place from one free-text
// answer. Date rules run in fixed priority order — month-name date,
// numeric date, bare year — and the first successful rule wins. Both
// fields are independent; either may be absent.
func ExtractBirthData(text string) model.ExtractedBirthData {
	return model.ExtractedBirthData{
		BirthDate:  extractBirthDate(text),
		BirthPlace: extractBirthPlace(text),
	}
}

func extractBirthDate(text string) string {
	if m := monthNameDate.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month := germanMonths[strings.ToLower(germanLower.String(m[2]))]
		year, _ := strconv.Atoi(m[3])
		if d := formatDate(year, month, day); d != "" {
			return d
		}
	}

	if m := numericDate.FindStringSubmatch(text); m != nil {
		// First group is the day, second the month (German convention).
		// Inputs like "05.10.1990" are ambiguous for month-first locales;
		// no locale heuristic is applied.
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			if year < 50 {
				year += 2000
			} else {
				year += 1900
			}
		}
		if d := formatDate(year, month, day); d != "" {
			return d
		}
	}

	if m := bareYear.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		return fmt.Sprintf("%04d-01-01", year)
	}

	return ""
}

// formatDate returns an ISO-8601 date string, or "" for implausible
// day/month values so the next rule can try.
func formatDate(year, month, day int) string {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// extractBirthPlace captures the place adjacent to a "geboren" cue. The
// captured tokens keep their original casing.
func extractBirthPlace(text string) string {
	if m := placeBeforeBirth.FindStringSubmatch(text); m != nil {
		if p := clipPlace(m[1]); p != "" {
			return p
		}
	}
	if m := placeAfterBirth.FindStringSubmatch(text); m != nil {
		if p := clipPlace(m[1]); p != "" {
			return p
		}
	}
	return ""
}

// clipPlace trims a raw place capture at the first stopword or numeric
// token and strips trailing punctuation.
func clipPlace(raw string) string {
	var kept []string
	for _, tok := range strings.Fields(raw) {
		low := germanLower.String(tok)
		if placeStopwords[low] {
			break
		}
		if tok[0] >= '0' && tok[0] <= '9' {
			break
		}
		kept = append(kept, tok)
	}
	return strings.TrimRight(strings.Join(kept, " "), ".,;:!?")
}
