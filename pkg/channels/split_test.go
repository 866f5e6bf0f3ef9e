package channels

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/hugoworkshops/workshopbot/pkg/assembler"
	"github.com/hugoworkshops/workshopbot/pkg/qa"
)

func TestSplitMessage_ShortContentSinglePart(t *testing.T) {
	parts := splitMessage("a short answer", 1500)
	if len(parts) != 1 || parts[0] != "a short answer" {
		t.Fatalf("parts = %v", parts)
	}
}

func TestSplitMessage_SplitsAtNewlines(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("a reasonably long line of answer text about workshops\n")
	}
	parts := splitMessage(sb.String(), 1500)

	if len(parts) < 2 {
		t.Fatalf("expected multiple parts, got %d", len(parts))
	}
	for i, part := range parts {
		if len(part) > 2000 {
			t.Fatalf("part %d is %d chars, exceeds the discord limit", i, len(part))
		}
	}
}

func TestSplitMessage_KeepsCodeBlocksIntact(t *testing.T) {
	content := strings.Repeat("intro text line\n", 85) + // ~1360 chars
		"```python\nprint('hello')\nprint('world')\n```\n" +
		strings.Repeat("closing text line\n", 30)

	parts := splitMessage(content, 1500)
	for i, part := range parts {
		if strings.Count(part, "```")%2 != 0 {
			t.Fatalf("part %d has an unclosed code block:\n%s", i, part)
		}
	}
}

func TestFormatAnswer_DeduplicatesSources(t *testing.T) {
	ans := qa.Answer{
		Text: "the answer",
		Sources: []assembler.Provenance{
			{WorkshopID: "WS2", Position: 3},
			{WorkshopID: "WS2", Position: 3},
			{WorkshopID: "WS5", Position: 0},
		},
	}
	text := formatAnswer(ans)
	if strings.Count(text, "WS2 §4") != 1 {
		t.Fatalf("duplicate source refs not collapsed:\n%s", text)
	}
	if !strings.Contains(text, "WS5 §1") {
		t.Fatalf("missing source ref:\n%s", text)
	}
}

func TestFormatAnswer_NoSources(t *testing.T) {
	if got := formatAnswer(qa.Answer{Text: "plain"}); got != "plain" {
		t.Fatalf("answer without sources = %q", got)
	}
}

func TestIsAllowed(t *testing.T) {
	c := &DiscordChannel{allowFrom: []string{"12345", "@hugo"}}

	if !c.IsAllowed("12345", "someone") {
		t.Fatal("allowlisted id rejected")
	}
	if !c.IsAllowed("99", "hugo") {
		t.Fatal("allowlisted username rejected")
	}
	if c.IsAllowed("99", "stranger") {
		t.Fatal("non-allowlisted user accepted")
	}

	open := &DiscordChannel{}
	if !open.IsAllowed("anyone", "at all") {
		t.Fatal("empty allowlist must allow everyone")
	}
}

func TestSend_RequiresRunning(t *testing.T) {
	c := &DiscordChannel{}
	if err := c.send(context.Background(), "channel", "an answer", ""); err == nil {
		t.Fatal("send on a stopped channel must error")
	}
}

// The running flag is written by Start/Stop and read from handler
// goroutines; this only has teeth under the race detector.
func TestRunningFlag_ConcurrentAccess(t *testing.T) {
	c := &DiscordChannel{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if i%2 == 0 {
					c.running.Store(j%2 == 0)
				} else {
					_ = c.IsRunning()
				}
			}
		}(i)
	}
	wg.Wait()
}
