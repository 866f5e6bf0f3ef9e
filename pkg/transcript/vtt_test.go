package transcript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hugoworkshops/workshopbot/pkg/tokens"
)

const sampleVTT = `WEBVTT

NOTE this transcript was auto-generated

1
00:00:01.000 --> 00:00:05.500
Hugo Bowne-Anderson: Welcome everyone to the workshop.

2
00:00:05.500 --> 00:00:12.000
Today we're going to talk about prompt engineering
and how it fits into the development lifecycle.

3
00:00:12.000 --> 00:00:18.250
<v William Horton>Thanks Hugo, happy to be here.
`

func writeVTT(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.vtt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseFile_CuesAndSpeakers(t *testing.T) {
	cues, err := ParseFile(writeVTT(t, sampleVTT))
	if err != nil {
		t.Fatal(err)
	}
	if len(cues) != 3 {
		t.Fatalf("parsed %d cues, want 3", len(cues))
	}

	if cues[0].Speaker != "Hugo Bowne-Anderson" {
		t.Fatalf("cue 0 speaker = %q, want Hugo Bowne-Anderson", cues[0].Speaker)
	}
	if cues[0].Text != "Welcome everyone to the workshop." {
		t.Fatalf("cue 0 text = %q (speaker prefix must be stripped)", cues[0].Text)
	}
	if cues[0].Start != "00:00:01.000" {
		t.Fatalf("cue 0 start = %q", cues[0].Start)
	}

	// Multi-line cue text is joined.
	if cues[1].Speaker != "" {
		t.Fatalf("cue 1 speaker = %q, want none", cues[1].Speaker)
	}
	if want := "Today we're going to talk about prompt engineering and how it fits into the development lifecycle."; cues[1].Text != want {
		t.Fatalf("cue 1 text = %q, want %q", cues[1].Text, want)
	}

	// Voice tags carry the speaker and are stripped from the text.
	if cues[2].Speaker != "William Horton" {
		t.Fatalf("cue 2 speaker = %q, want William Horton", cues[2].Speaker)
	}
	if cues[2].Text != "Thanks Hugo, happy to be here." {
		t.Fatalf("cue 2 text = %q", cues[2].Text)
	}
}

func TestParseFile_MissingFile(t *testing.T) {
	if _, err := ParseFile(filepath.Join(t.TempDir(), "nope.vtt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestChunker_MergesToTargetSize(t *testing.T) {
	est := tokens.NewEstimator()

	var cues []Cue
	for i := 0; i < 40; i++ {
		cues = append(cues, Cue{
			Start:   "00:00:01.000",
			Speaker: "Hugo Bowne-Anderson",
			Text:    "This sentence is about twenty tokens of transcript content for chunking in tests of the pipeline.",
		})
	}

	chunker := NewChunker(est, 100)
	chunks := chunker.Chunk("WS2", cues)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.WorkshopID != "WS2" {
			t.Fatalf("chunk %d workshop = %q", i, c.WorkshopID)
		}
		if c.Position != i {
			t.Fatalf("chunk %d position = %d", i, c.Position)
		}
		// Stored counts must come from the estimator so budget accounting
		// at query time matches.
		if c.TokenCount != est.Count(c.Text) {
			t.Fatalf("chunk %d token count %d != estimator count %d", i, c.TokenCount, est.Count(c.Text))
		}
		if c.Speaker == "" || c.Timestamp == "" {
			t.Fatalf("chunk %d missing speaker/timestamp provenance", i)
		}
	}
}

func TestChunker_OversizedCueBecomesOwnChunk(t *testing.T) {
	est := tokens.NewEstimator()
	chunker := NewChunker(est, 50)

	big := ""
	for i := 0; i < 60; i++ {
		big += "longwords fill transcripts "
	}
	chunks := chunker.Chunk("WS1", []Cue{
		{Start: "00:00:01.000", Text: "short intro"},
		{Start: "00:00:05.000", Text: big},
		{Start: "00:09:00.000", Text: "short outro"},
	})

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks (oversized cue isolated), got %d", len(chunks))
	}
}
