package feedback

import (
	"sort"
	"strings"
)

// Issue tags derived from free-text explanations. The analysis is a plain
// keyword scan; anything unmatched lands in "other" so the record always
// carries at least one tag.
const (
	IssueWrongInformation = "wrong_information"
	IssueIncomplete       = "incomplete_answer"
	IssueOutdated         = "outdated_information"
	IssueUnclear          = "unclear_answer"
	IssueOffTopic         = "off_topic"
	IssueTooSlow          = "too_slow"
	IssueOther            = "other"
)

var issueKeywords = map[string][]string{
	IssueWrongInformation: {
		"wrong", "incorrect", "false", "not true", "error", "mistake",
		"falsch", "fehler", "stimmt nicht",
	},
	IssueIncomplete: {
		"incomplete", "missing", "not enough", "more detail", "partial",
		"unvollständig", "fehlt",
	},
	IssueOutdated: {
		"outdated", "old", "deprecated", "no longer", "stale",
		"veraltet", "nicht mehr aktuell",
	},
	IssueUnclear: {
		"unclear", "confusing", "hard to understand", "don't understand",
		"makes no sense", "unklar", "verwirrend", "unverständlich",
	},
	IssueOffTopic: {
		"off topic", "irrelevant", "didn't ask", "not my question",
		"unrelated", "andere frage", "nicht gefragt",
	},
	IssueTooSlow: {
		"slow", "too long", "waited", "took forever",
		"langsam", "zu lange", "gedauert",
	},
}

// AnalyzeExplanation tags a free-text "why was this unhelpful" reply. Tags
// are returned sorted and de-duplicated; no match yields ["other"].
func AnalyzeExplanation(text string) []string {
	lowered := strings.ToLower(text)
	var tags []string
	for tag, keywords := range issueKeywords {
		for _, kw := range keywords {
			if strings.Contains(lowered, kw) {
				tags = append(tags, tag)
				break
			}
		}
	}
	if len(tags) == 0 {
		return []string{IssueOther}
	}
	sort.Strings(tags)
	return tags
}
