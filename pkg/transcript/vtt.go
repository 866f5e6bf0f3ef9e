package transcript

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Cue is one WebVTT caption: a timestamp range with text and an optional
// speaker extracted from a "Name:" prefix or <v Name> voice tag.
type Cue struct {
	Start   string
	End     string
	Speaker string
	Text    string
}

var (
	timestampPattern = regexp.MustCompile(`^(\d{2}:)?\d{2}:\d{2}[.,]\d{3}\s+-->\s+(\d{2}:)?\d{2}:\d{2}[.,]\d{3}`)
	voiceTagPattern  = regexp.MustCompile(`^<v\s+([^>]+)>`)
	speakerPattern   = regexp.MustCompile(`^([A-Z][A-Za-z .'-]{1,40}):\s+`)
	tagPattern       = regexp.MustCompile(`</?[^>]+>`)
)

// ParseFile reads a WebVTT transcript file into cues.
func ParseFile(path string) ([]Cue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var cues []Cue
	var current *Cue

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "" || line == "WEBVTT":
			if current != nil && current.Text != "" {
				cues = append(cues, *current)
			}
			current = nil
		case strings.HasPrefix(line, "NOTE") || strings.HasPrefix(line, "STYLE") || strings.HasPrefix(line, "REGION"):
			current = nil
		case timestampPattern.MatchString(line):
			if current != nil && current.Text != "" {
				cues = append(cues, *current)
			}
			parts := strings.SplitN(line, "-->", 2)
			current = &Cue{
				Start: strings.TrimSpace(parts[0]),
				End:   strings.TrimSpace(strings.Fields(parts[1])[0]),
			}
		default:
			if current == nil {
				// Cue identifiers and stray metadata before a timestamp.
				continue
			}
			text, speaker := extractSpeaker(line)
			if speaker != "" && current.Speaker == "" {
				current.Speaker = speaker
			}
			if current.Text != "" {
				current.Text += " "
			}
			current.Text += text
		}
	}
	if current != nil && current.Text != "" {
		cues = append(cues, *current)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return cues, nil
}

func extractSpeaker(line string) (text, speaker string) {
	if m := voiceTagPattern.FindStringSubmatch(line); m != nil {
		speaker = strings.TrimSpace(m[1])
		line = voiceTagPattern.ReplaceAllString(line, "")
	} else if m := speakerPattern.FindStringSubmatch(line); m != nil {
		speaker = strings.TrimSpace(m[1])
		line = speakerPattern.ReplaceAllString(line, "")
	}
	return strings.TrimSpace(tagPattern.ReplaceAllString(line, "")), speaker
}
