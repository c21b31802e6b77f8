package document

import (
	"regexp"
	"strconv"
)

var (
	yearPattern    = regexp.MustCompile(`\d{4}`)
	quarterPattern = regexp.MustCompile(`(?i)([1-4])q`)
	urlYearPattern = regexp.MustCompile(`/(\d{4})/`)
)

// ExtractYearQuarter pulls the fiscal year and quarter out of a title.
//
// The year is the last four-digit run in the title: report series codes tend
// to come first and the fiscal year last. The quarter is the first "<n>Q"
// token with n in 1..4. Either value is nil when not found.
func ExtractYearQuarter(title string) (year, quarter *int) {
	if runs := yearPattern.FindAllString(title, -1); len(runs) > 0 {
		year = atoiPtr(runs[len(runs)-1])
	}
	if m := quarterPattern.FindStringSubmatch(title); m != nil {
		quarter = atoiPtr(m[1])
	}
	return year, quarter
}

// YearFromURL returns the first "/YYYY/" path segment of a document URL.
func YearFromURL(rawURL string) *int {
	m := urlYearPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return nil
	}
	return atoiPtr(m[1])
}

func atoiPtr(s string) *int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
