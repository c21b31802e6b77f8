package document

import "strings"

// Rule maps any of its keywords to a document type.
type Rule struct {
	Type     Type
	Keywords []string
}

// Rules is evaluated top to bottom and the first matching rule wins, so a
// title mentioning both "Q&A" and "financial statement" is a Q&A document.
var Rules = []Rule{
	{Type: TypeQnA, Keywords: []string{"q&a"}},
	{Type: TypeEarningsRelease, Keywords: []string{"earnings release", "earning release"}},
	{Type: TypeFinancialStatement, Keywords: []string{"financial statement"}},
}

// Classify returns the type of the first rule whose keyword appears in the
// title, ignoring case. Titles that match nothing are TypeOthers.
func Classify(title string) Type {
	return ClassifyWith(Rules, title)
}

// ClassifyWith runs an explicit rule table against title.
func ClassifyWith(rules []Rule, title string) Type {
	lower := strings.ToLower(title)
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Type
			}
		}
	}
	return TypeOthers
}
