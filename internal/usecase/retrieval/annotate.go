package retrieval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/ai"
)

// AnnotatedTranscript is a transcript rendered with timestamps and speaker names
type AnnotatedTranscript struct {
	Text          string
	TokenEstimate int
	Paragraphs    []ParagraphEntry
}

// ParagraphEntry indexes one annotated line for citation checks
type ParagraphEntry struct {
	Index     int
	StartTime float64
	EndTime   float64
	Speaker   string
	Text      string
}

// Annotate renders one line per paragraph: "[MM:SS → MM:SS] Name: text".
// Unnamed speakers become "Speaker N" counting from 1.
func Annotate(t *entities.TimedTranscript, speakers entities.SpeakerMap) AnnotatedTranscript {
	paragraphs := t.ParagraphList()
	if len(paragraphs) == 0 {
		return AnnotatedTranscript{}
	}

	entries := make([]ParagraphEntry, 0, len(paragraphs))
	lines := make([]string, 0, len(paragraphs))
	for i, p := range paragraphs {
		raw := p.Speaker
		if raw == entities.NoSpeaker {
			raw = i
		}
		name := speakers[strconv.Itoa(raw)]
		if name == "" {
			name = fmt.Sprintf("Speaker %d", raw+1)
		}
		text := p.Text()

		entries = append(entries, ParagraphEntry{
			Index:     i,
			StartTime: p.Start,
			EndTime:   p.End,
			Speaker:   name,
			Text:      text,
		})
		lines = append(lines, fmt.Sprintf("[%s → %s] %s: %s", FormatTime(p.Start), FormatTime(p.End), name, text))
	}

	text := strings.Join(lines, "\n")
	return AnnotatedTranscript{
		Text:          text,
		TokenEstimate: ai.TokenEstimate(text),
		Paragraphs:    entries,
	}
}

// FormatTime renders seconds as MM:SS, or HH:MM:SS past the first hour
func FormatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
