package weidu

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Language is one entry from weidu's --list-languages output.
type Language struct {
	Index int
	Name  string
}

var listLanguageLine = regexp.MustCompile(`^([0-9]+):(.*)$`)

// ParseLanguageList parses weidu's --list-languages stdout into an ordered
// list of Language.
func ParseLanguageList(output string) ([]Language, error) {
	var langs []Language
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := listLanguageLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		langs = append(langs, Language{Index: idx, Name: strings.TrimSpace(m[2])})
	}
	if len(langs) == 0 {
		return nil, fmt.Errorf("no languages parsed from weidu --list-languages output")
	}
	return langs, nil
}

// ResolveLanguage walks preferences in order and returns the index of the
// first weidu-reported language that matches — literally (case- and
// diacritic-insensitive) or, for a "#rx#<pattern>" preference, by regex.
func ResolveLanguage(preferences []string, available []Language) (int, error) {
	for _, pref := range preferences {
		if rx, ok := strings.CutPrefix(pref, "#rx#"); ok {
			re, err := regexp.Compile(rx)
			if err != nil {
				return 0, fmt.Errorf("invalid language regex %q: %w", rx, err)
			}
			for _, lang := range available {
				if re.MatchString(lang.Name) {
					return lang.Index, nil
				}
			}
			continue
		}

		folded := foldForCompare(pref)
		for _, lang := range available {
			if foldForCompare(lang.Name) == folded {
				return lang.Index, nil
			}
		}
	}
	return 0, fmt.Errorf("no language preference matched the weidu-reported languages")
}

// foldForCompare lowercases and strips combining diacritical marks so
// "français" matches "francais", accommodating weidu's localized names.
func foldForCompare(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
