package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestClassify_LabeledQuestions pins the classification of representative
// question phrasings. Ambiguous questions like "who gave the first workshop"
// must resolve to the more specific category.
func TestClassify_LabeledQuestions(t *testing.T) {
	cases := []struct {
		question string
		want     Category
	}{
		// specific workshop references
		{"who gave the first workshop?", CategorySpecificWorkshop},
		{"tell me about workshop 3", CategorySpecificWorkshop},
		{"what does workshop 5 cover?", CategorySpecificWorkshop},
		{"what is covered in ws2?", CategorySpecificWorkshop},
		{"information on the fourth workshop please", CategorySpecificWorkshop},
		{"who taught the 3rd workshop?", CategorySpecificWorkshop},
		{"Tell me about the second workshop", CategorySpecificWorkshop},
		{"what did workshop eight cover", CategorySpecificWorkshop},

		// speakers and instructors
		{"who is Hugo Bowne-Anderson?", CategorySpeakers},
		{"who are the speakers?", CategorySpeakers},
		{"which instructors teach this course?", CategorySpeakers},
		{"who presented the session on observability?", CategorySpeakers},
		{"who teaches here", CategorySpeakers},
		{"list of presenters", CategorySpeakers},

		// course structure
		{"What are the workshops of this course?", CategoryCourseStructure},
		{"how many workshops are there?", CategoryCourseStructure},
		{"give me a course overview", CategoryCourseStructure},
		{"tell me about the course", CategoryCourseStructure},
		{"which are the sessions I can attend?", CategoryCourseStructure},

		// content questions fall through to retrieval
		{"what is prompt engineering?", CategoryContent},
		{"how do I evaluate RAG outputs?", CategoryContent},
		{"explain embeddings and vector stores", CategoryContent},
		{"what temperature should I use for deterministic output?", CategoryContent},
		{"how does fine-tuning differ from prompting?", CategoryContent},
		{"", CategoryContent},
	}

	c := NewClassifier()
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Classify(tc.question), "question: %q", tc.question)
	}
}

// TestRules_Order pins the rule priority: a question matching several rules
// must resolve by table order, most specific first.
func TestRules_Order(t *testing.T) {
	rules := NewClassifier().Rules()

	want := []Category{CategorySpecificWorkshop, CategorySpeakers, CategoryCourseStructure}
	if len(rules) != len(want) {
		t.Fatalf("rule table has %d entries, want %d", len(rules), len(want))
	}
	for i, rule := range rules {
		if rule.Category != want[i] {
			t.Fatalf("rule %d category = %s, want %s", i, rule.Category, want[i])
		}
		if len(rule.Patterns) == 0 {
			t.Fatalf("rule %s has no patterns", rule.Category)
		}
	}
}
