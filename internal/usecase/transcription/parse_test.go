package transcription

import (
	"math"
	"testing"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"00:01:02.500", 62.5, true},
		{"01:02.5", 62.5, true},
		{"00:00:03,250", 3.25, true},
		{"12.75", 12.75, true},
		{"1:2:3:4", 0, false},
		{"aa:bb", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("%q: unexpected error state %v", tt.in, err)
		}
		if tt.ok && math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("%q: expected %v got %v", tt.in, tt.want, got)
		}
	}
}

func TestParseCues_SkipsMalformed(t *testing.T) {
	body := "WEBVTT\n\nNOTE a comment\n\n" +
		"00:00:00.000 --> 00:00:02.000\n<v Host>Welcome &amp; hello.\n\n" +
		"00:00:05.000 --> 00:00:03.000\nEnds before it starts.\n\n" +
		"garbage --> 00:00:09.000\nBad start.\n\n" +
		"intro\n00:00:04.000 --> 00:00:06.000 align:start\n<v Guest><i>Thanks</i> for having me.\n"

	segments := ParseCues(body)
	if len(segments) != 2 {
		t.Fatalf("expected 2 cues got %d: %+v", len(segments), segments)
	}
	if segments[0].Text != "Welcome & hello." || segments[0].Speaker != 0 {
		t.Fatalf("unexpected first cue %+v", segments[0])
	}
	if segments[1].Text != "Thanks for having me." || segments[1].Speaker != 1 || segments[1].End != 6 {
		t.Fatalf("unexpected second cue %+v", segments[1])
	}
}

func TestParsePayload_SRT(t *testing.T) {
	body := "1\r\n00:00:01,000 --> 00:00:03,500\r\nFirst line\r\nsecond line\r\n\r\n2\r\n00:00:04,000 --> 00:00:05,000\r\nNext.\r\n"
	segments, err := ParsePayload([]byte(body), "application/x-subrip")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(segments) != 2 || segments[0].Text != "First line second line" || segments[0].Start != 1 || segments[0].End != 3.5 {
		t.Fatalf("unexpected segments %+v", segments)
	}
	if segments[0].Speaker != entities.NoSpeaker {
		t.Fatal("srt carries no speakers")
	}
}

func TestParsePayload_JSONShapes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		segments int
		speaker  int
	}{
		{
			name:     "timed transcript",
			body:     `{"results":{"channels":[{"alternatives":[{"transcript":"a b","paragraphs":{"paragraphs":[{"speaker":1,"sentences":[{"text":"a","start":0,"end":1},{"text":"b","start":1,"end":2}]}]}}]}]}}`,
			segments: 2,
			speaker:  1,
		},
		{
			name:     "bare array with durations",
			body:     `[{"text":"one","start":0,"duration":2},{"text":"two","start":"00:00:02.0","duration":1}]`,
			segments: 2,
			speaker:  entities.NoSpeaker,
		},
		{
			name:     "text only",
			body:     `{"text":"Just words. More words."}`,
			segments: 2,
			speaker:  entities.NoSpeaker,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments, err := ParsePayload([]byte(tt.body), "application/json")
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if len(segments) != tt.segments {
				t.Fatalf("expected %d segments got %d", tt.segments, len(segments))
			}
			if segments[0].Speaker != tt.speaker {
				t.Fatalf("expected speaker %d got %d", tt.speaker, segments[0].Speaker)
			}
		})
	}

	if segments, err := ParsePayload([]byte(`{"foo":1}`), "application/json"); err != nil || len(segments) != 1 {
		t.Fatalf("expected unknown shape to be read as text, got %d segments err=%v", len(segments), err)
	}
}

func TestParsePayload_FallsBackToProse(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		segments    int
		first       string
	}{
		{
			name:        "bracketed sound cue",
			body:        "[Music] Welcome to the show. Today we talk about compilers!",
			contentType: "text/plain",
			segments:    2,
			first:       "[Music] Welcome to the show.",
		},
		{
			name:        "arrow in prose",
			body:        "Input --> output is the whole idea. Nothing else matters?",
			contentType: "text/plain",
			segments:    2,
			first:       "Input --> output is the whole idea.",
		},
		{
			name:        "malformed json",
			body:        "{not json at all. Still words here.",
			contentType: "application/json",
			segments:    2,
			first:       "{not json at all.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments, err := ParsePayload([]byte(tt.body), tt.contentType)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if len(segments) != tt.segments {
				t.Fatalf("expected %d segments got %d: %+v", tt.segments, len(segments), segments)
			}
			if segments[0].Text != tt.first {
				t.Fatalf("expected first segment %q got %q", tt.first, segments[0].Text)
			}
			if segments[0].Start != 0 || segments[0].End < 1.5 {
				t.Fatalf("unexpected timing %+v", segments[0])
			}
		})
	}
}

func TestParsePayload_HTML(t *testing.T) {
	body := `<html><body><script>var x = 1;</script><p>Hello there.</p><p>General <b>Kenobi</b>!</p></body></html>`
	segments, err := ParsePayload([]byte(body), "text/html; charset=utf-8")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(segments) != 2 || segments[1].Text != "General Kenobi!" {
		t.Fatalf("unexpected segments %+v", segments)
	}
}

func TestApproximateSegments(t *testing.T) {
	segments := ApproximateSegments("One two three four five. Hi.")
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments got %d", len(segments))
	}
	if segments[0].Start != 0 || segments[0].End != 2 {
		t.Fatalf("five words should last two seconds: %+v", segments[0])
	}
	if segments[1].Start != 2 || segments[1].End != 3.5 {
		t.Fatalf("short sentence should last the minimum: %+v", segments[1])
	}
}

func TestExtractVideoID(t *testing.T) {
	tests := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10": "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ":                    "dQw4w9WgXcQ",
		"https://m.youtube.com/shorts/dQw4w9WgXcQ":        "dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ":       "dQw4w9WgXcQ",
		"dQw4w9WgXcQ":                  "dQw4w9WgXcQ",
		"https://vimeo.com/12345":      "",
		"https://youtube.com/watch?v=": "",
		"":                             "",
	}
	for in, want := range tests {
		if got := ExtractVideoID(in); got != want {
			t.Fatalf("%q: expected %q got %q", in, want, got)
		}
	}
}

func TestParseTimedTextXML(t *testing.T) {
	body := `<?xml version="1.0" encoding="utf-8" ?><transcript><text start="0.5" dur="1.5">it&amp;#39;s here</text><text start="2" dur="1"></text></transcript>`
	segments, err := parseTimedTextXML([]byte(body))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(segments) != 1 || segments[0].Text != "it's here" || segments[0].End != 2 {
		t.Fatalf("unexpected segments %+v", segments)
	}
}
