package transcript

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	pronounIWordPattern        = regexp.MustCompile(`\bi\b`)
	pronounIContractionPattern = regexp.MustCompile(`\bi['’](?:m|d|ll|ve|re|s)\b`)
)

// nonTerminalAbbreviations are tokens whose trailing period rarely ends a
// sentence. Tokens are lowercase without the final period.
var nonTerminalAbbreviations = map[string]struct{}{
	"cf":   {},
	"dr":   {},
	"e.g":  {},
	"eq":   {},
	"fig":  {},
	"i.e":  {},
	"jr":   {},
	"mr":   {},
	"mrs":  {},
	"ms":   {},
	"prof": {},
	"ref":  {},
	"sr":   {},
	"st":   {},
	"vs":   {},
}

// sentenceCase upper-cases the first letter of every sentence and the
// standalone pronoun "i". atStart says whether text opens a new sentence;
// a line cut for length does not.
func sentenceCase(text string, atStart bool) string {
	runes := []rune(text)
	capNext := atStart
	for i, r := range runes {
		switch {
		case capNext && unicode.IsLetter(r):
			runes[i] = unicode.ToUpper(r)
			capNext = false
		case capNext && unicode.IsDigit(r):
			capNext = false
		case r == '!' || r == '?':
			capNext = true
		case r == '.':
			capNext = periodEndsSentence(runes, i)
		}
	}

	out := pronounIContractionPattern.ReplaceAllStringFunc(string(runes), func(match string) string {
		return "I" + match[1:]
	})
	return capitalizePronounI(out)
}

// periodEndsSentence rejects decimals, embedded periods like "e.g", and
// known abbreviations.
func periodEndsSentence(runes []rune, idx int) bool {
	if idx+1 < len(runes) {
		next := runes[idx+1]
		if unicode.IsLetter(next) || unicode.IsDigit(next) || next == '.' {
			return false
		}
	}

	start := idx
	for start > 0 && (unicode.IsLetter(runes[start-1]) || runes[start-1] == '.') {
		start--
	}
	token := strings.ToLower(strings.Trim(string(runes[start:idx]), "."))
	_, abbreviation := nonTerminalAbbreviations[token]
	return !abbreviation
}

func capitalizePronounI(text string) string {
	matches := pronounIWordPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))
	last := 0
	for _, match := range matches {
		start, end := match[0], match[1]
		out.WriteString(text[last:start])
		if partOfInitialism(text, start, end) {
			out.WriteString(text[start:end])
		} else {
			out.WriteString("I")
		}
		last = end
	}
	out.WriteString(text[last:])
	return out.String()
}

// partOfInitialism reports whether the "i" at text[start:end] belongs to a
// dotted token such as "i.e." or "a.i.".
func partOfInitialism(text string, start int, end int) bool {
	if end+1 < len(text) && text[end] == '.' {
		next, _ := utf8.DecodeRuneInString(text[end+1:])
		if unicode.IsLetter(next) {
			return true
		}
	}
	if start > 1 && text[start-1] == '.' {
		prev, _ := utf8.DecodeLastRuneInString(text[:start-1])
		if unicode.IsLetter(prev) {
			return true
		}
	}
	return false
}
