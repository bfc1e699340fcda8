// Package extract implements the deterministic, rule-based parsing of
// German free-text answers into structured identity and birth fields.
// All functions are pure and synchronous: no network, no randomness.
package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/patabrava/nality-sub002/internal/model"
)

// germanLower folds German text for matching (handles ß and umlauts).
// Extraction never re-cases captured values; folding is matching-only.
var germanLower = cases.Lower(language.German)

var (
	duCue  = regexp.MustCompile(`\b(per du|duzen|geduzt|du)\b`)
	sieCue = regexp.MustCompile(`\b(per sie|siezen|gesiezt|sie)\b`)

	// namePattern captures the clause after "ich heiße" / "ich bin".
	namePattern = regexp.MustCompile(`(?i)\bich\s+(?:heiße|heisse|bin)\s+(.+)`)

	// nameBoundary ends a captured name at a sentence boundary.
	nameBoundary = regexp.MustCompile(`[.!?,;\n]`)
)

// styleTriggers lists the keyword triggers per language style in fixed
// priority order: the earliest-defined category with a hit wins.
var styleTriggers = []struct {
	style model.LanguageStyle
	words []string
}{
	{model.StyleProsa, []string{"prosa", "literarisch", "erzählerisch", "poetisch", "blumig", "bildhaft"}},
	{model.StyleFachlich, []string{"fachlich", "sachlich", "technisch", "strukturiert", "nüchtern", "präzise"}},
	{model.StyleLocker, []string{"locker", "lässig", "entspannt", "umgangssprachlich", "salopp", "casual"}},
}

// nameClauseStarters end a captured name when a trailing clause begins
// without punctuation, which voice transcription frequently drops.
var nameClauseStarters = []string{" kannst du", " können sie", " koennen sie", " bitte", " und "}

// ExtractUserData parses address preference, language style and full name
// from one free-text answer. Absent cues leave the field zero-valued.
func ExtractUserData(text string) model.ExtractedIdentity {
	lower := germanLower.String(text)
	return model.ExtractedIdentity{
		FormOfAddress: detectFormOfAddress(lower),
		LanguageStyle: detectLanguageStyle(lower),
		FullName:      extractFullName(text),
	}
}

// detectFormOfAddress picks du or sie by scan order: the cue appearing
// earliest in the text wins. "sie" as a plain pronoun can false-positive;
// that is the documented cost of a deterministic first-match rule.
func detectFormOfAddress(lower string) model.FormOfAddress {
	duIdx := matchIndex(duCue, lower)
	sieIdx := matchIndex(sieCue, lower)

	switch {
	case duIdx < 0 && sieIdx < 0:
		return ""
	case sieIdx < 0 || (duIdx >= 0 && duIdx < sieIdx):
		return model.AddressDu
	default:
		return model.AddressSie
	}
}

func matchIndex(re *regexp.Regexp, s string) int {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return -1
	}
	return loc[0]
}

// detectLanguageStyle matches trigger words case-insensitively; when
// several categories trigger, the fixed priority order decides.
func detectLanguageStyle(lower string) model.LanguageStyle {
	for _, t := range styleTriggers {
		for _, w := range t.words {
			if strings.Contains(lower, w) {
				return t.style
			}
		}
	}
	return ""
}

// extractFullName captures the remainder of the clause after "ich heiße"
// or "ich bin", clipped at a sentence boundary or a known trailing
// clause-starter. A capture leading with a digit is rejected: "ich bin
// 1993 geboren" states a birth year, not a name.
func extractFullName(text string) string {
	m := namePattern.FindStringSubmatchIndex(text)
	if m == nil {
		return ""
	}
	name := text[m[2]:m[3]]
	nameLower := germanLower.String(name)

	end := len(name)
	if loc := nameBoundary.FindStringIndex(name); loc != nil && loc[0] < end {
		end = loc[0]
	}
	for _, starter := range nameClauseStarters {
		if idx := strings.Index(nameLower, starter); idx >= 0 && idx < end {
			end = idx
		}
	}

	name = strings.TrimSpace(name[:end])
	if name == "" || name[0] >= '0' && name[0] <= '9' {
		return ""
	}
	return name
}
