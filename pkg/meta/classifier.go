package meta

import (
	"regexp"
	"strings"
)

// Category is the meta-question classification outcome.
type Category string

const (
	CategorySpecificWorkshop Category = "specific_workshop"
	CategorySpeakers         Category = "speakers"
	CategoryCourseStructure  Category = "course_structure"
	CategoryContent          Category = "content"
)

// Rule pairs a category with its trigger patterns. Rules are evaluated in
// slice order and the first match wins, so priority is an explicit,
// inspectable artifact rather than implicit code order.
type Rule struct {
	Category Category
	Patterns []*regexp.Regexp
}

// Classifier detects questions about course structure and personnel that
// should be answered from static metadata instead of content retrieval.
// It is a pure function over its input and the fixed rule table.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds the classifier with the default rule table.
//
// specific_workshop is checked before the generic speakers and
// course_structure rules so that "who gave the first workshop" resolves to
// the specific workshop rather than a generic listing answer.
func NewClassifier() *Classifier {
	return &Classifier{rules: defaultRules()}
}

// Rules exposes the ordered rule table.
func (c *Classifier) Rules() []Rule {
	return c.rules
}

// Classify returns the category for a question; CategoryContent when no
// meta pattern matches.
func (c *Classifier) Classify(question string) Category {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return CategoryContent
	}
	for _, rule := range c.rules {
		for _, pat := range rule.Patterns {
			if pat.MatchString(q) {
				return rule.Category
			}
		}
	}
	return CategoryContent
}

func defaultRules() []Rule {
	return []Rule{
		{
			Category: CategorySpecificWorkshop,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bworkshop\s*([1-8]|one|two|three|four|five|six|seven|eight)\b`),
				regexp.MustCompile(`\bws\s*[1-8]\b`),
				regexp.MustCompile(`\b(first|second|third|fourth|fifth|sixth|seventh|eighth)\s+workshop\b`),
				regexp.MustCompile(`\b(1st|2nd|3rd|[4-8]th)\s+workshop\b`),
				regexp.MustCompile(`\bwhat.*(workshop|session).*cover\b`),
				regexp.MustCompile(`tell me about.*workshop\b`),
				regexp.MustCompile(`information on.*workshop`),
			},
		},
		{
			Category: CategorySpeakers,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bwho\s+(gave|presents?|presented|taught|teaches|is|are)\b`),
				regexp.MustCompile(`\b(speakers?|instructors?|teachers?|presenters?|hosts?)\b`),
				regexp.MustCompile(`\bwho\b.*(workshop|session)`),
			},
		},
		{
			Category: CategoryCourseStructure,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b(what|which)\s+are\b.*(workshops?|course|sessions?)`),
				regexp.MustCompile(`\blist\b.*(workshops?|course|sessions?)`),
				regexp.MustCompile(`\b(how many|number of)\s+workshops?\b`),
				regexp.MustCompile(`\bcourse\s+(structure|overview|topics|summary)\b`),
				regexp.MustCompile(`tell me about the course`),
			},
		},
	}
}
