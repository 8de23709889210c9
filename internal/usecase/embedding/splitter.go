package embedding

import (
	"strings"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/ai"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/transcription"
)

// DefaultChunkSize is the chunk budget in characters
const DefaultChunkSize = 1000

// TextChunk is one span ready for embedding
type TextChunk struct {
	Text string
	Meta map[string]interface{}
}

type span struct {
	text       string
	start, end float64
	timed      bool
}

// SplitText merges sentences of untimed text into chunks of at most size characters
func SplitText(text string, size int) []TextChunk {
	var spans []span
	for _, s := range transcription.SplitSentences(text) {
		spans = append(spans, span{text: s})
	}
	return merge(spans, size)
}

// SplitTranscript merges transcript sentences into chunks, keeping the audio
// time range each chunk covers. Chunks never cross a speaker change.
func SplitTranscript(t *entities.TimedTranscript, size int) []TextChunk {
	var (
		out     []TextChunk
		spans   []span
		speaker = entities.NoSpeaker
	)
	flush := func() {
		chunks := merge(spans, size)
		for i := range chunks {
			if speaker != entities.NoSpeaker {
				chunks[i].Meta["speaker"] = speaker
			}
		}
		out = append(out, chunks...)
		spans = nil
	}

	for _, p := range t.ParagraphList() {
		if p.Speaker != speaker {
			flush()
			speaker = p.Speaker
		}
		for _, s := range p.Sentences {
			spans = append(spans, span{text: s.Text, start: s.Start, end: s.End, timed: true})
		}
	}
	flush()

	for i := range out {
		out[i].Meta[entities.MetaIndex] = i
	}
	return out
}

func merge(spans []span, size int) []TextChunk {
	if size <= 0 {
		size = DefaultChunkSize
	}

	var (
		out     []TextChunk
		parts   []string
		length  int
		current span
	)
	flush := func() {
		if len(parts) == 0 {
			return
		}
		meta := map[string]interface{}{entities.MetaIndex: len(out)}
		if current.timed {
			meta[entities.MetaStartTime] = current.start
			meta[entities.MetaEndTime] = current.end
		}
		out = append(out, TextChunk{Text: strings.Join(parts, " "), Meta: meta})
		parts, length = nil, 0
	}

	for _, sp := range spans {
		text := strings.TrimSpace(sp.text)
		if text == "" {
			continue
		}
		for _, piece := range splitLong(text, size) {
			if length > 0 && length+1+len(piece) > size {
				flush()
			}
			if len(parts) == 0 {
				current = span{start: sp.start, end: sp.end, timed: sp.timed}
			}
			parts = append(parts, piece)
			if length > 0 {
				length++
			}
			length += len(piece)
			if sp.end > current.end {
				current.end = sp.end
			}
		}
	}
	flush()
	return out
}

// splitLong breaks a sentence longer than size at word boundaries, hard-cutting single oversized words
func splitLong(text string, size int) []string {
	if len(text) <= size {
		return []string{text}
	}
	var (
		out []string
		sb  strings.Builder
	)
	for _, word := range strings.Fields(text) {
		for len(word) > size {
			if sb.Len() > 0 {
				out = append(out, sb.String())
				sb.Reset()
			}
			head := ai.TruncateBytes(word, size)
			out = append(out, head)
			word = word[len(head):]
		}
		if word == "" {
			continue
		}
		if sb.Len() > 0 && sb.Len()+1+len(word) > size {
			out = append(out, sb.String())
			sb.Reset()
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(word)
	}
	if sb.Len() > 0 {
		out = append(out, sb.String())
	}
	return out
}
