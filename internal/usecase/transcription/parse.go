package transcription

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/quality"
)

// ParsePayload turns a downloaded transcript body into time-coded segments.
// JSON and cue parsing are attempted first; a body neither of them understands is read as prose.
func ParsePayload(body []byte, contentType string) ([]entities.Segment, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty transcript payload")
	}
	ct := strings.ToLower(contentType)

	if strings.Contains(ct, "pdf") || bytes.HasPrefix(trimmed, []byte("%PDF")) {
		text, err := pdfText(body)
		if err != nil {
			return nil, err
		}
		return ApproximateSegments(text), nil
	}

	if strings.Contains(ct, "json") || trimmed[0] == '{' || trimmed[0] == '[' {
		if segments := parseJSONTranscript(trimmed); len(segments) > 0 {
			return segments, nil
		}
	}

	if segments := ParseCues(string(trimmed)); len(segments) > 0 {
		return segments, nil
	}

	text := string(trimmed)
	if strings.Contains(ct, "html") || trimmed[0] == '<' {
		extracted, err := htmlText(text)
		if err != nil {
			return nil, err
		}
		text = extracted
	}

	segments := ApproximateSegments(text)
	if len(segments) == 0 {
		return nil, fmt.Errorf("no transcript text in payload")
	}
	return segments, nil
}

// ---- JSON ----

// parseJSONTranscript returns nil when the body is not JSON or has no known transcript shape
func parseJSONTranscript(body []byte) []entities.Segment {
	var timed entities.TimedTranscript
	if err := json.Unmarshal(body, &timed); err == nil {
		if segments := timed.Segments(); len(segments) > 0 {
			return segments
		}
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}

	speakers := newSpeakerIndex()
	switch v := raw.(type) {
	case []interface{}:
		return segmentsFromArray(v, speakers)
	case map[string]interface{}:
		if arr, ok := v["segments"].([]interface{}); ok {
			if segments := segmentsFromArray(arr, speakers); len(segments) > 0 {
				return segments
			}
		}
		for _, key := range []string{"text", "transcript"} {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				return ApproximateSegments(s)
			}
		}
	}
	return nil
}

func segmentsFromArray(items []interface{}, speakers *speakerIndex) []entities.Segment {
	var out []entities.Segment
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		text := firstString(obj, "text", "transcript", "body")
		text = quality.CleanText(text)
		if text == "" {
			continue
		}
		start, hasStart := firstNumber(obj, "start", "startTime", "start_time")
		end, hasEnd := firstNumber(obj, "end", "endTime", "end_time")
		if !hasEnd {
			if d, ok := firstNumber(obj, "duration"); ok {
				end, hasEnd = start+d, true
			}
		}
		if !hasStart {
			continue
		}
		if !hasEnd || end < start {
			end = start
		}
		speaker := entities.NoSpeaker
		switch s := obj["speaker"].(type) {
		case float64:
			speaker = int(s)
		case string:
			speaker = speakers.lookup(s)
		}
		out = append(out, entities.Segment{Text: text, Start: start, End: end, Speaker: speaker})
	}
	return out
}

func firstString(obj map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstNumber(obj map[string]interface{}, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case float64:
			return v, true
		case string:
			if t, err := ParseTimestamp(v); err == nil {
				return t, true
			}
		}
	}
	return 0, false
}

// speakerIndex assigns stable indices to speaker labels in order of appearance
type speakerIndex struct {
	ids map[string]int
}

func newSpeakerIndex() *speakerIndex {
	return &speakerIndex{ids: make(map[string]int)}
}

func (s *speakerIndex) lookup(label string) int {
	label = strings.TrimSpace(label)
	if label == "" {
		return entities.NoSpeaker
	}
	if id, ok := s.ids[label]; ok {
		return id
	}
	id := len(s.ids)
	s.ids[label] = id
	return id
}

// ---- WebVTT / SRT ----

var (
	voiceTag  = regexp.MustCompile(`<v(?:\.[^\s>]*)?\s+([^>]+)>`)
	cueTagAny = regexp.MustCompile(`<[^>]*>`)
)

// ParseCues parses WebVTT or SRT. Malformed cues are skipped.
func ParseCues(body string) []entities.Segment {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")

	speakers := newSpeakerIndex()
	var out []entities.Segment

	for _, block := range strings.Split(body, "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) == 0 || lines[0] == "" {
			continue
		}
		head := strings.TrimSpace(lines[0])
		if strings.HasPrefix(head, "WEBVTT") || strings.HasPrefix(head, "NOTE") ||
			strings.HasPrefix(head, "STYLE") || strings.HasPrefix(head, "REGION") {
			continue
		}

		timing := -1
		for i, l := range lines {
			if strings.Contains(l, "-->") {
				timing = i
				break
			}
		}
		// timing line comes first or after a single cue identifier
		if timing < 0 || timing > 1 {
			continue
		}

		parts := strings.SplitN(lines[timing], "-->", 2)
		start, err := ParseTimestamp(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		endFields := strings.Fields(parts[1])
		if len(endFields) == 0 {
			continue
		}
		end, err := ParseTimestamp(endFields[0])
		if err != nil || end < start {
			continue
		}

		raw := strings.Join(lines[timing+1:], " ")
		speaker := entities.NoSpeaker
		if m := voiceTag.FindStringSubmatch(raw); m != nil {
			speaker = speakers.lookup(m[1])
		}
		text := html.UnescapeString(cueTagAny.ReplaceAllString(raw, ""))
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			continue
		}
		out = append(out, entities.Segment{Text: text, Start: start, End: end, Speaker: speaker})
	}
	return out
}

// ParseTimestamp accepts hh:mm:ss.mmm, mm:ss.mmm or plain seconds; comma is accepted as the decimal mark
func ParseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	var total float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		if i < len(parts)-1 && strings.Contains(p, ".") {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}

// ---- HTML / plain text ----

func htmlText(body string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse html transcript: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	var paras []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		if t := strings.Join(strings.Fields(sel.Text()), " "); t != "" {
			paras = append(paras, t)
		}
	})
	if len(paras) > 0 {
		return strings.Join(paras, "\n"), nil
	}

	// no paragraph markup, fall back to main-content extraction
	if article, err := readability.FromReader(strings.NewReader(body), nil); err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text, nil
		}
	}
	return strings.Join(strings.Fields(doc.Find("body").Text()), " "), nil
}

func pdfText(body []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf transcript: %w", err)
	}
	textReader, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf transcript: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return "", err
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", fmt.Errorf("pdf transcript has no text")
	}
	return text, nil
}

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+["')\]]*|[^.!?]+$`)

// SplitSentences splits prose on terminal punctuation
func SplitSentences(text string) []string {
	var out []string
	for _, m := range sentencePattern.FindAllString(text, -1) {
		if s := strings.Join(strings.Fields(m), " "); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ApproximateSegments assigns synthetic timing to untimed prose at 2.5 words per second
func ApproximateSegments(text string) []entities.Segment {
	text = quality.CleanText(text)
	var (
		out    []entities.Segment
		cursor float64
	)
	for _, s := range SplitSentences(text) {
		words := float64(len(strings.Fields(s)))
		dur := math.Max(1.5, words/2.5)
		out = append(out, entities.Segment{Text: s, Start: cursor, End: cursor + dur, Speaker: entities.NoSpeaker})
		cursor += dur
	}
	return out
}

// JoinSegments returns the plain text of segments
func JoinSegments(segments []entities.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}
