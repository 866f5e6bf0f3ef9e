package meta

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hugoworkshops/workshopbot/pkg/course"
)

// Answerer renders meta-question answers from the static course catalog.
// Content correctness comes from the catalog only; no model call is involved.
type Answerer struct {
	catalog *course.Catalog
}

// NewAnswerer builds an answerer over an immutable catalog.
func NewAnswerer(catalog *course.Catalog) *Answerer {
	return &Answerer{catalog: catalog}
}

// Answer produces a catalog-backed answer for a classified meta-question.
// The boolean reports whether an answer could be produced.
func (a *Answerer) Answer(question string, category Category) (string, bool) {
	switch category {
	case CategorySpeakers:
		return a.answerSpeakers(question), true
	case CategoryCourseStructure:
		return a.answerCourseStructure(), true
	case CategorySpecificWorkshop:
		return a.answerSpecificWorkshop(question)
	default:
		return "", false
	}
}

func (a *Answerer) answerSpeakers(question string) string {
	if strings.Contains(strings.ToLower(question), "first") {
		if ws, ok := a.catalog.Workshop("WS1"); ok {
			return fmt.Sprintf("The first workshop '%s' was given by **%s**, the main instructor and course creator.",
				ws.Title, ws.Instructor)
		}
	}

	var sb strings.Builder
	sb.WriteString("**Course Speakers and Instructors:**\n")
	for _, sp := range a.catalog.Speakers {
		fmt.Fprintf(&sb, "\n**%s** - %s\n", sp.Name, sp.Role)
		if sp.Specialty != "" {
			fmt.Fprintf(&sb, "  • Specialty: %s\n", sp.Specialty)
		}
		if len(sp.Workshops) > 0 {
			fmt.Fprintf(&sb, "  • Workshops: %s\n", strings.Join(sp.Workshops, ", "))
		}
	}
	return sb.String()
}

func (a *Answerer) answerCourseStructure() string {
	info := a.catalog.Course

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n\n", info.Title)
	fmt.Fprintf(&sb, "This course contains **%d workshops** covering %s.\n\n", info.TotalWorkshops, info.Description)
	sb.WriteString("**Complete Workshop List:**\n")
	for _, ws := range a.catalog.Workshops {
		instructor := ws.Instructor
		if ws.GuestSpeaker != "" {
			instructor += fmt.Sprintf(" (with guest %s)", ws.GuestSpeaker)
		}
		fmt.Fprintf(&sb, "\n**%s**: %s\n  • Instructor: %s\n", ws.ID, ws.Title, instructor)
	}
	return sb.String()
}

var (
	workshopNumberPattern = regexp.MustCompile(`\b(?:workshop|ws)\s*([1-8])\b`)
	ordinalWorkshops      = map[string]string{
		"first": "WS1", "1st": "WS1", "one": "WS1",
		"second": "WS2", "2nd": "WS2", "two": "WS2",
		"third": "WS3", "3rd": "WS3", "three": "WS3",
		"fourth": "WS4", "4th": "WS4", "four": "WS4",
		"fifth": "WS5", "5th": "WS5", "five": "WS5",
		"sixth": "WS6", "6th": "WS6", "six": "WS6",
		"seventh": "WS7", "7th": "WS7", "seven": "WS7",
		"eighth": "WS8", "8th": "WS8", "eight": "WS8",
	}
)

// ExtractWorkshopID resolves a workshop reference from a question: "workshop 5",
// "ws5", ordinal words, and "1st".."8th" forms. The first reference in
// reading order wins.
func ExtractWorkshopID(question string) (string, bool) {
	q := strings.ToLower(question)

	if m := workshopNumberPattern.FindStringSubmatch(q); m != nil {
		return "WS" + m[1], true
	}
	for _, field := range strings.Fields(q) {
		word := strings.Trim(field, ".,!?;:'\"()")
		if id, ok := ordinalWorkshops[word]; ok {
			return id, true
		}
	}
	return "", false
}

func (a *Answerer) answerSpecificWorkshop(question string) (string, bool) {
	id, ok := ExtractWorkshopID(question)
	if !ok {
		return "I couldn't identify which workshop you're asking about. Please specify a workshop number (1-8) or say 'first workshop'.", false
	}
	ws, ok := a.catalog.Workshop(id)
	if !ok {
		return fmt.Sprintf("I don't have metadata for %s.", id), false
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s: %s**\n\n", ws.ID, ws.Title)
	fmt.Fprintf(&sb, "**Instructor**: %s\n", ws.Instructor)
	if ws.GuestSpeaker != "" {
		fmt.Fprintf(&sb, "**Guest Speaker**: %s\n", ws.GuestSpeaker)
	}
	sb.WriteString("\n**Topics Covered:**\n")
	for _, topic := range ws.Topics {
		fmt.Fprintf(&sb, "• %s\n", topic)
	}
	return sb.String(), true
}
