package router

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/hugoworkshops/workshopbot/pkg/course"
)

type fakeClassifier struct {
	ids   []string
	err   error
	calls int
}

func (f *fakeClassifier) ClassifyWorkshops(ctx context.Context, question string, workshops []course.Workshop, max int) ([]string, error) {
	f.calls++
	return f.ids, f.err
}

func testIndex(t *testing.T, workshops []course.Workshop) *course.Index {
	t.Helper()
	idx, err := course.NewIndex(workshops)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestRoute_EmptyQuestion(t *testing.T) {
	r := New(course.DefaultIndex(), nil)
	_, err := r.Route(context.Background(), "   ", Options{})
	if !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
}

func TestRoute_KeywordMatch(t *testing.T) {
	r := New(course.DefaultIndex(), nil)

	result, err := r.Route(context.Background(), "what is prompt engineering?", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if result.UsedFallback {
		t.Fatal("keyword match must not use fallback")
	}
	ids := result.IDs()
	if len(ids) == 0 || ids[0] != "WS2" {
		t.Fatalf("expected WS2 ranked first, got %v", ids)
	}
	if result.Workshops[0].Score < 2.0 {
		t.Fatalf("phrase match should score at least 2.0, got %v", result.Workshops[0].Score)
	}
}

func TestRoute_Deterministic(t *testing.T) {
	r := New(course.DefaultIndex(), nil)

	var first []string
	for i := 0; i < 20; i++ {
		result, err := r.Route(context.Background(), "how do I evaluate rag outputs?", Options{})
		if err != nil {
			t.Fatal(err)
		}
		if first == nil {
			first = result.IDs()
			continue
		}
		if !reflect.DeepEqual(first, result.IDs()) {
			t.Fatalf("routing not deterministic: %v vs %v", first, result.IDs())
		}
	}
}

func TestRoute_TieBreaksOnIDAscending(t *testing.T) {
	idx := testIndex(t, []course.Workshop{
		{ID: "WSB", Keywords: []string{"shared topic"}},
		{ID: "WSA", Keywords: []string{"shared topic"}},
		{ID: "WSC", Keywords: []string{"shared topic"}},
	})
	r := New(idx, nil)

	result, err := r.Route(context.Background(), "tell me about the shared topic", Options{MaxWorkshops: 3})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"WSA", "WSB", "WSC"}
	if !reflect.DeepEqual(result.IDs(), want) {
		t.Fatalf("tie-break order = %v, want %v", result.IDs(), want)
	}
}

func TestRoute_CapsShortlist(t *testing.T) {
	r := New(course.DefaultIndex(), nil)

	result, err := r.Route(context.Background(), "prompt engineering evaluation observability rag fine-tuning", Options{MaxWorkshops: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Workshops) != 2 {
		t.Fatalf("shortlist length = %d, want 2", len(result.Workshops))
	}
}

func TestRoute_ZeroScoreExcluded(t *testing.T) {
	fallback := &fakeClassifier{ids: []string{"WS1"}}
	r := New(course.DefaultIndex(), fallback)

	// One strong WS5 match; unrelated workshops must not be backfilled.
	result, err := r.Route(context.Background(), "how do embeddings work?", Options{MaxWorkshops: 3})
	if err != nil {
		t.Fatal(err)
	}
	for _, ws := range result.Workshops {
		if ws.Score <= 0 {
			t.Fatalf("zero-score workshop %s included without filter", ws.ID)
		}
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback called %d times despite keyword match", fallback.calls)
	}
}

func TestRoute_FilterOverridesScoring(t *testing.T) {
	fallback := &fakeClassifier{ids: []string{"WS1"}}
	r := New(course.DefaultIndex(), fallback)

	// No WS4 keyword matches this question; the filter keeps it anyway.
	result, err := r.Route(context.Background(), "what did the guest say about kubernetes?", Options{
		Filter: []string{"WS4"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(result.IDs(), []string{"WS4"}) {
		t.Fatalf("filtered routing = %v, want [WS4]", result.IDs())
	}
	if result.UsedFallback {
		t.Fatal("filter path must not use fallback")
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback called %d times under filter", fallback.calls)
	}
}

func TestRoute_FilterUnknownID(t *testing.T) {
	r := New(course.DefaultIndex(), nil)
	_, err := r.Route(context.Background(), "anything", Options{Filter: []string{"WS99"}})
	if err == nil {
		t.Fatal("expected error for unknown filter id")
	}
}

func TestRoute_FallbackUsed(t *testing.T) {
	fallback := &fakeClassifier{ids: []string{"WS3", "WS99", "WS3", "WS4"}}
	r := New(course.DefaultIndex(), fallback)

	result, err := r.Route(context.Background(), "is the thing from session two useful?", Options{MaxWorkshops: 2})
	if err != nil {
		t.Fatal(err)
	}
	if !result.UsedFallback {
		t.Fatal("expected UsedFallback to be set")
	}
	// Unknown ids dropped, duplicates collapsed, capped at max.
	if !reflect.DeepEqual(result.IDs(), []string{"WS3", "WS4"}) {
		t.Fatalf("fallback routing = %v, want [WS3 WS4]", result.IDs())
	}
}

func TestRoute_FallbackErrorWrapped(t *testing.T) {
	fallback := &fakeClassifier{err: fmt.Errorf("api unreachable")}
	r := New(course.DefaultIndex(), fallback)

	_, err := r.Route(context.Background(), "completely unrelated gibberish zzz", Options{})
	if !errors.Is(err, ErrNoRelevantWorkshop) {
		t.Fatalf("expected ErrNoRelevantWorkshop, got %v", err)
	}
}

func TestRoute_NoFallbackConfigured(t *testing.T) {
	r := New(course.DefaultIndex(), nil)
	_, err := r.Route(context.Background(), "completely unrelated gibberish zzz", Options{})
	if !errors.Is(err, ErrNoRelevantWorkshop) {
		t.Fatalf("expected ErrNoRelevantWorkshop, got %v", err)
	}
}
