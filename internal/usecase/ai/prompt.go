package ai

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
)

// MaxTokens bounds every structured extraction and summary call
const MaxTokens = 1024

// TokenLen is the rough token estimate used everywhere: four characters per token
func TokenLen(text string) float64 {
	return float64(len(text)) / 4
}

// TokenEstimate rounds TokenLen up
func TokenEstimate(text string) int {
	return int(math.Ceil(TokenLen(text)))
}

// TruncateTokens cuts text to at most maxTokens estimated tokens
func TruncateTokens(text string, maxTokens int) string {
	if maxTokens <= 0 || TokenLen(text) <= float64(maxTokens) {
		return text
	}
	return TruncateBytes(text, maxTokens*4)
}

// TruncateBytes returns the longest prefix of text within n bytes that ends on a
// rune boundary. When n > 0 at least one rune is kept, so split loops always advance.
func TruncateBytes(text string, n int) string {
	if n >= len(text) {
		return text
	}
	if n <= 0 {
		return ""
	}
	i := n
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	if i == 0 {
		_, size := utf8.DecodeRuneInString(text)
		return text[:size]
	}
	return text[:i]
}

// SystemPrompt appends the podcast and episode framing to an instruction
func SystemPrompt(instruction string, podcast *entities.Podcast, episode *entities.Episode) string {
	var sb strings.Builder
	sb.WriteString(instruction)
	sb.WriteString("\n")
	if podcast != nil && podcast.Title != "" {
		sb.WriteString("The name of the podcast is: " + podcast.Title + "\n")
	}
	if episode != nil && episode.Title != "" {
		sb.WriteString("The title of the episode is: " + episode.Title + "\n")
	}
	if episode != nil && episode.Description != "" {
		sb.WriteString("The provided description of the episode is: " + episode.Description + "\n")
	}
	return sb.String()
}

// SpeakerTranscript renders paragraphs as "Speaker N: text" lines
func SpeakerTranscript(t *entities.TimedTranscript) string {
	paragraphs := t.ParagraphList()
	lines := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p.Speaker == entities.NoSpeaker {
			lines = append(lines, p.Text())
			continue
		}
		lines = append(lines, "Speaker "+strconv.Itoa(p.Speaker)+": "+p.Text())
	}
	return strings.Join(lines, "\n")
}
