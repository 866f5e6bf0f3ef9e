package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/hugoworkshops/workshopbot/pkg/course"
)

const maxKeywordsInPrompt = 5

// WorkshopClassifier routes questions with a cheap single-call classification
// when lexical scoring finds nothing. It satisfies router.Classifier.
type WorkshopClassifier struct {
	client *Client
	model  string
}

// NewWorkshopClassifier builds the fallback classifier. model should be a
// cheap routing model, not the answering model.
func NewWorkshopClassifier(client *Client, model string) *WorkshopClassifier {
	return &WorkshopClassifier{client: client, model: model}
}

// ClassifyWorkshops asks the model to pick up to max workshop ids for the
// question. Returns nil when the model answers NONE.
func (wc *WorkshopClassifier) ClassifyWorkshops(ctx context.Context, question string, workshops []course.Workshop, max int) ([]string, error) {
	var descriptions []string
	for _, ws := range workshops {
		keywords := ws.Keywords
		if len(keywords) > maxKeywordsInPrompt {
			keywords = keywords[:maxKeywordsInPrompt]
		}
		descriptions = append(descriptions, fmt.Sprintf("%s: %s (Covers: %s)", ws.ID, ws.Title, strings.Join(keywords, ", ")))
	}

	prompt := fmt.Sprintf(`You are a course assistant. Your job is to find the most relevant workshop(s) for a user's question.

User's Question: %q

Here are the available workshops and their topics:
%s

Based on the user's question, which %d workshops are the most likely to contain the answer?
Respond with only the workshop IDs (e.g., WS1, WS3) separated by commas. If no workshop seems relevant, respond with the single word "NONE".`,
		question, strings.Join(descriptions, "\n"), max)

	temperature := 0.0
	resp, err := wc.client.Chat(ctx, wc.model, []Message{{Role: "user", Content: prompt}}, ChatOptions{
		MaxTokens:   50,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("classify workshops: %w", err)
	}

	answer := strings.TrimSpace(resp.Content)
	if strings.Contains(strings.ToUpper(answer), "NONE") {
		return nil, nil
	}

	var ids []string
	for _, part := range strings.Split(answer, ",") {
		id := strings.ToUpper(strings.TrimSpace(part))
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
