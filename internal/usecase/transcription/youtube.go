package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
)

const defaultWatchURL = "https://www.youtube.com/watch?v="

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// YouTubeStrategy reads published captions for episodes that link a YouTube video
type YouTubeStrategy struct {
	fetcher  Fetcher
	watchURL string
	language string
	logger   *zap.Logger
}

// NewYouTubeStrategy creates the caption source. language is the preferred track language.
func NewYouTubeStrategy(fetcher Fetcher, language string, logger *zap.Logger) *YouTubeStrategy {
	if language == "" {
		language = "en"
	}
	return &YouTubeStrategy{fetcher: fetcher, watchURL: defaultWatchURL, language: language, logger: logger}
}

func (s *YouTubeStrategy) Name() string { return SourceYouTube }

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

func (s *YouTubeStrategy) Fetch(ctx context.Context, episode *entities.Episode, _ *entities.Podcast) (*entities.Candidate, error) {
	videoID := ExtractVideoID(episode.URL)
	if videoID == "" {
		return nil, entities.ErrNoTranscript
	}

	page, _, err := s.fetcher.Fetch(ctx, s.watchURL+videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to load watch page: %w", err)
	}
	tracks, err := captionTracks(page)
	if err != nil {
		return nil, err
	}
	track := s.pickTrack(tracks)
	if track == nil {
		return nil, entities.ErrNoTranscript
	}

	segments, err := s.download(ctx, track.BaseURL)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, entities.ErrNoTranscript
	}
	return &entities.Candidate{Source: SourceYouTube, Text: JoinSegments(segments), Segments: segments}, nil
}

// pickTrack prefers a manual track in the wanted language, then an automatic one, then anything
func (s *YouTubeStrategy) pickTrack(tracks []captionTrack) *captionTrack {
	var auto, first *captionTrack
	for i := range tracks {
		t := &tracks[i]
		if t.BaseURL == "" {
			continue
		}
		if first == nil {
			first = t
		}
		if !strings.HasPrefix(t.LanguageCode, s.language) {
			continue
		}
		if t.Kind != "asr" {
			return t
		}
		if auto == nil {
			auto = t
		}
	}
	if auto != nil {
		return auto
	}
	return first
}

func (s *YouTubeStrategy) download(ctx context.Context, baseURL string) ([]entities.Segment, error) {
	body, _, err := s.fetcher.Fetch(ctx, withQuery(baseURL, "fmt", "json3"))
	if err == nil {
		if segments, perr := parseJSON3(body); perr == nil && len(segments) > 0 {
			return segments, nil
		}
	} else if s.logger != nil {
		s.logger.Debug("json3 captions unavailable, falling back to xml", zap.Error(err))
	}

	body, _, err = s.fetcher.Fetch(ctx, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download captions: %w", err)
	}
	return parseTimedTextXML(body)
}

// ExtractVideoID returns the YouTube video id referenced by raw, or ""
func ExtractVideoID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if videoIDPattern.MatchString(raw) {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch {
	case host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	case host == "youtube.com" || host == "music.youtube.com" || host == "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
			break
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 && (parts[0] == "embed" || parts[0] == "shorts" || parts[0] == "live" || parts[0] == "v") {
			id = parts[1]
		}
	}
	if !videoIDPattern.MatchString(id) {
		return ""
	}
	return id
}

// captionTracks scans the watch page scripts for the captionTracks array
func captionTracks(page []byte) ([]captionTrack, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse watch page: %w", err)
	}

	const marker = `"captionTracks":`
	var raw string
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		idx := strings.Index(text, marker)
		if idx < 0 {
			return true
		}
		raw = matchBrackets(text[idx+len(marker):])
		return raw == ""
	})
	if raw == "" {
		return nil, entities.ErrNoTranscript
	}

	var tracks []captionTrack
	if err := json.Unmarshal([]byte(raw), &tracks); err != nil {
		return nil, fmt.Errorf("failed to decode caption tracks: %w", err)
	}
	return tracks, nil
}

// matchBrackets returns the balanced JSON array at the start of s, ignoring brackets inside strings
func matchBrackets(s string) string {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func withQuery(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

type json3Captions struct {
	Events []struct {
		StartMs    float64 `json:"tStartMs"`
		DurationMs float64 `json:"dDurationMs"`
		Segs       []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

func parseJSON3(body []byte) ([]entities.Segment, error) {
	var captions json3Captions
	if err := json.Unmarshal(body, &captions); err != nil {
		return nil, err
	}
	var out []entities.Segment
	for _, ev := range captions.Events {
		var sb strings.Builder
		for _, seg := range ev.Segs {
			sb.WriteString(seg.UTF8)
		}
		text := strings.Join(strings.Fields(sb.String()), " ")
		if text == "" {
			continue
		}
		start := ev.StartMs / 1000
		out = append(out, entities.Segment{
			Text:    text,
			Start:   start,
			End:     start + ev.DurationMs/1000,
			Speaker: entities.NoSpeaker,
		})
	}
	return out, nil
}

type timedTextXML struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

func parseTimedTextXML(body []byte) ([]entities.Segment, error) {
	var doc timedTextXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode timed text: %w", err)
	}
	var out []entities.Segment
	for _, t := range doc.Texts {
		start, err := strconv.ParseFloat(t.Start, 64)
		if err != nil {
			continue
		}
		dur, _ := strconv.ParseFloat(t.Dur, 64)
		// timed text bodies are entity-encoded twice
		text := strings.Join(strings.Fields(html.UnescapeString(t.Body)), " ")
		if text == "" {
			continue
		}
		out = append(out, entities.Segment{Text: text, Start: start, End: start + dur, Speaker: entities.NoSpeaker})
	}
	return out, nil
}
