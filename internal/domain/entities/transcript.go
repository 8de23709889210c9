package entities

import (
	"strings"
)

// Segment is one time-coded span of speech from any transcript source.
// Speaker is -1 when the source carries no diarization.
type Segment struct {
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker int     `json:"speaker"`
}

// NoSpeaker marks a segment without speaker information
const NoSpeaker = -1

// Sentence is a timed sentence inside a paragraph
type Sentence struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Paragraph is a contiguous same-speaker run of sentences
type Paragraph struct {
	Sentences []Sentence `json:"sentences"`
	Speaker   int        `json:"speaker"`
	Start     float64    `json:"start"`
	End       float64    `json:"end"`
	NumWords  int        `json:"num_words"`
}

// Text joins the sentences of the paragraph
func (p Paragraph) Text() string {
	parts := make([]string, 0, len(p.Sentences))
	for _, s := range p.Sentences {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}

// Paragraphs wraps the paragraph list with its flattened transcript
type Paragraphs struct {
	Transcript string      `json:"transcript"`
	Paragraphs []Paragraph `json:"paragraphs"`
}

// Alternative is a single transcription hypothesis
type Alternative struct {
	Transcript string     `json:"transcript"`
	Paragraphs Paragraphs `json:"paragraphs"`
}

// Channel holds the alternatives for one audio channel
type Channel struct {
	Alternatives []Alternative `json:"alternatives"`
}

// TranscriptResults is the results envelope
type TranscriptResults struct {
	Channels []Channel `json:"channels"`
}

// TimedTranscript is the stored time-coded transcript artifact
type TimedTranscript struct {
	Results TranscriptResults `json:"results"`
	Source  string            `json:"source,omitempty"`
}

// ParagraphList returns the paragraphs of the first alternative
func (t *TimedTranscript) ParagraphList() []Paragraph {
	if t == nil || len(t.Results.Channels) == 0 || len(t.Results.Channels[0].Alternatives) == 0 {
		return nil
	}
	return t.Results.Channels[0].Alternatives[0].Paragraphs.Paragraphs
}

// Text returns the plain transcript text of the first alternative
func (t *TimedTranscript) Text() string {
	if t == nil || len(t.Results.Channels) == 0 || len(t.Results.Channels[0].Alternatives) == 0 {
		return ""
	}
	return t.Results.Channels[0].Alternatives[0].Transcript
}

// HasSpeakers reports whether any paragraph carries a speaker index
func (t *TimedTranscript) HasSpeakers() bool {
	for _, p := range t.ParagraphList() {
		if p.Speaker != NoSpeaker {
			return true
		}
	}
	return false
}

// Segments flattens the transcript back into sentence segments
func (t *TimedTranscript) Segments() []Segment {
	var out []Segment
	for _, p := range t.ParagraphList() {
		for _, s := range p.Sentences {
			out = append(out, Segment{Text: s.Text, Start: s.Start, End: s.End, Speaker: p.Speaker})
		}
	}
	return out
}

// Candidate is a normalized transcript produced by one transcription strategy
type Candidate struct {
	Source   string
	Text     string
	Segments []Segment
}

// MaxEnd returns the largest segment end time
func (c *Candidate) MaxEnd() float64 {
	var max float64
	for _, s := range c.Segments {
		if s.End > max {
			max = s.End
		}
	}
	return max
}

// GroupingOptions control how segments are folded into paragraphs
type GroupingOptions struct {
	// MaxGapSeconds starts a new paragraph when the silence between sentences exceeds it
	MaxGapSeconds float64
	// SentencesWithoutSpeakers caps paragraph size when no diarization exists
	SentencesWithoutSpeakers int
}

// DefaultGrouping returns the standard paragraph grouping
func DefaultGrouping() GroupingOptions {
	return GroupingOptions{MaxGapSeconds: 8, SentencesWithoutSpeakers: 10}
}

// BuildTimedTranscript folds ordered segments into speaker-run paragraphs.
// A paragraph boundary never splits a segment.
func BuildTimedTranscript(source string, segments []Segment, opts GroupingOptions) *TimedTranscript {
	hasSpeakers := false
	for _, s := range segments {
		if s.Speaker != NoSpeaker {
			hasSpeakers = true
			break
		}
	}

	var (
		paragraphs []Paragraph
		current    *Paragraph
		texts      = make([]string, 0, len(segments))
	)
	flush := func() {
		if current != nil && len(current.Sentences) > 0 {
			paragraphs = append(paragraphs, *current)
		}
		current = nil
	}

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		end := seg.End
		if end < seg.Start {
			end = seg.Start
		}
		texts = append(texts, text)

		if current != nil {
			last := current.Sentences[len(current.Sentences)-1]
			switch {
			case hasSpeakers && seg.Speaker != current.Speaker:
				flush()
			case opts.MaxGapSeconds > 0 && seg.Start-last.End > opts.MaxGapSeconds:
				flush()
			case !hasSpeakers && opts.SentencesWithoutSpeakers > 0 && len(current.Sentences) >= opts.SentencesWithoutSpeakers:
				flush()
			}
		}
		if current == nil {
			speaker := seg.Speaker
			if !hasSpeakers {
				speaker = NoSpeaker
			}
			current = &Paragraph{Speaker: speaker, Start: seg.Start}
		}
		current.Sentences = append(current.Sentences, Sentence{Text: text, Start: seg.Start, End: end})
		current.End = end
		current.NumWords += len(strings.Fields(text))
	}
	flush()

	paraTexts := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		paraTexts = append(paraTexts, p.Text())
	}

	return &TimedTranscript{
		Source: source,
		Results: TranscriptResults{Channels: []Channel{{Alternatives: []Alternative{{
			Transcript: strings.Join(texts, " "),
			Paragraphs: Paragraphs{
				Transcript: strings.Join(paraTexts, "\n\n"),
				Paragraphs: paragraphs,
			},
		}}}}},
	}
}
