package course

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// CourseInfo describes the course as a whole.
type CourseInfo struct {
	Title          string `json:"title"`
	TotalWorkshops int    `json:"total_workshops"`
	MainInstructor string `json:"main_instructor"`
	Description    string `json:"description"`
}

// WorkshopInfo is the structured metadata record for one workshop.
type WorkshopInfo struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Instructor   string   `json:"instructor"`
	GuestSpeaker string   `json:"guest_speaker,omitempty"`
	Topics       []string `json:"topics"`
}

// SpeakerInfo is the structured metadata record for one speaker.
type SpeakerInfo struct {
	Name      string   `json:"name"`
	Role      string   `json:"role"`
	Specialty string   `json:"specialty,omitempty"`
	Workshops []string `json:"workshops"`
}

// Catalog is the structured metadata table the meta-question path answers
// from. Loaded once at startup, immutable thereafter.
type Catalog struct {
	Course    CourseInfo     `json:"course"`
	Workshops []WorkshopInfo `json:"workshops"`
	Speakers  []SpeakerInfo  `json:"speakers"`

	workshopByID  map[string]WorkshopInfo
	speakerByName map[string]SpeakerInfo
}

// NewCatalog validates and indexes catalog data.
func NewCatalog(course CourseInfo, workshops []WorkshopInfo, speakers []SpeakerInfo) (*Catalog, error) {
	c := &Catalog{
		Course:        course,
		Workshops:     workshops,
		Speakers:      speakers,
		workshopByID:  make(map[string]WorkshopInfo, len(workshops)),
		speakerByName: make(map[string]SpeakerInfo, len(speakers)),
	}
	for _, ws := range workshops {
		if ws.ID == "" {
			return nil, fmt.Errorf("catalog workshop with empty id")
		}
		if _, exists := c.workshopByID[ws.ID]; exists {
			return nil, fmt.Errorf("duplicate catalog workshop id %q", ws.ID)
		}
		c.workshopByID[ws.ID] = ws
	}
	for _, sp := range speakers {
		if sp.Name == "" {
			return nil, fmt.Errorf("catalog speaker with empty name")
		}
		c.speakerByName[sp.Name] = sp
	}
	sort.SliceStable(c.Workshops, func(i, j int) bool { return c.Workshops[i].ID < c.Workshops[j].ID })
	return c, nil
}

// LoadCatalog reads structured course metadata from a JSON file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read course metadata: %w", err)
	}
	var raw Catalog
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse course metadata: %w", err)
	}
	return NewCatalog(raw.Course, raw.Workshops, raw.Speakers)
}

// Workshop returns metadata for a workshop id.
func (c *Catalog) Workshop(id string) (WorkshopInfo, bool) {
	ws, ok := c.workshopByID[id]
	return ws, ok
}

// Speaker returns metadata for a speaker name.
func (c *Catalog) Speaker(name string) (SpeakerInfo, bool) {
	sp, ok := c.speakerByName[name]
	return sp, ok
}

// DefaultCatalog returns the built-in metadata for the eight-workshop course.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(
		CourseInfo{
			Title:          "Generative AI and SDLC for LLMs Course",
			TotalWorkshops: 8,
			MainInstructor: "Hugo Bowne-Anderson",
			Description:    "a comprehensive course covering the software development lifecycle for LLM-powered applications",
		},
		[]WorkshopInfo{
			{ID: "WS1", Title: "Generative AI and SDLC for LLMs", Instructor: "Hugo Bowne-Anderson",
				Topics: []string{"What is Generative AI?", "SDLC for LLM applications", "Non-deterministic systems", "Tools and frameworks"}},
			{ID: "WS2", Title: "Prompt Engineering in the LLM SDLC", Instructor: "Hugo Bowne-Anderson",
				Topics: []string{"API parameters", "Prompt engineering basics", "Iterative refinement"}},
			{ID: "WS3", Title: "Evaluation and Iteration", Instructor: "Hugo Bowne-Anderson",
				Topics: []string{"LLM output evaluation", "Metrics for success", "Feedback loops"}},
			{ID: "WS4", Title: "Observability and Debugging", Instructor: "Stefan",
				Topics: []string{"Logging and tracing", "Debugging LLM issues", "Production monitoring"}},
			{ID: "WS5", Title: "Information Retrieval -> Agents", Instructor: "Hugo Bowne-Anderson", GuestSpeaker: "William Horton",
				Topics: []string{"Embeddings", "Vector stores", "RAG systems", "Production ML"}},
			{ID: "WS6", Title: "Structured Outputs, Function Calling, and Agentic Workflows", Instructor: "Hugo Bowne-Anderson",
				Topics: []string{"Structured outputs", "Function calling", "Agentic workflows"}},
			{ID: "WS7", Title: "Multi-Agentic Workflows", Instructor: "Hugo Bowne-Anderson",
				Topics: []string{"Advanced prompt optimization", "Multi-agent collaboration"}},
			{ID: "WS8", Title: "Fine-tuning and Production LLM Applications", Instructor: "Hugo Bowne-Anderson",
				Topics: []string{"Fine-tuning basics", "Dataset preparation", "Production deployment"}},
		},
		[]SpeakerInfo{
			{Name: "Hugo Bowne-Anderson", Role: "Main Instructor & Course Creator",
				Workshops: []string{"WS1", "WS2", "WS3", "WS5", "WS6", "WS7", "WS8"}},
			{Name: "Stefan", Role: "Guest Expert - Testing & Development",
				Specialty: "Testing, development loops, and production practices", Workshops: []string{"WS4"}},
			{Name: "William Horton", Role: "Guest Expert - Production ML",
				Specialty: "Production machine learning systems and deployment", Workshops: []string{"WS5"}},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}
