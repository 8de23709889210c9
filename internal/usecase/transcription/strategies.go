package transcription

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	pkgai "github.com/johnquangdev/podcast-assistant/pkg/ai"
)

// Source names recorded on candidates
const (
	SourceFeed       = "feed"
	SourceYouTube    = "youtube"
	SourceAssemblyAI = "assemblyai"
)

// Fetcher downloads a URL and reports its content type
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// TranscriptResolver finds a publisher transcript link for an episode, or "" if none
type TranscriptResolver interface {
	ResolveTranscriptURL(ctx context.Context, podcast *entities.Podcast, episode *entities.Episode) (string, error)
}

// FeedStrategy downloads the transcript the publisher links from the feed
type FeedStrategy struct {
	fetcher  Fetcher
	resolver TranscriptResolver
	logger   *zap.Logger
}

// NewFeedStrategy creates the publisher transcript source. resolver may be nil.
func NewFeedStrategy(fetcher Fetcher, resolver TranscriptResolver, logger *zap.Logger) *FeedStrategy {
	return &FeedStrategy{fetcher: fetcher, resolver: resolver, logger: logger}
}

func (s *FeedStrategy) Name() string { return SourceFeed }

func (s *FeedStrategy) Fetch(ctx context.Context, episode *entities.Episode, podcast *entities.Podcast) (*entities.Candidate, error) {
	url := episode.FeedTranscriptURL
	if url == "" && s.resolver != nil && podcast != nil {
		resolved, err := s.resolver.ResolveTranscriptURL(ctx, podcast, episode)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("⚠️ Failed to resolve feed transcript", zap.String("episode_id", episode.ID.String()), zap.Error(err))
			}
		}
		url = resolved
	}
	if url == "" {
		return nil, entities.ErrNoTranscript
	}

	body, contentType, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to download feed transcript: %w", err)
	}
	segments, err := ParsePayload(body, contentType)
	if err != nil {
		return nil, err
	}
	return &entities.Candidate{Source: SourceFeed, Text: JoinSegments(segments), Segments: segments}, nil
}

// MachineStrategy transcribes the episode audio with diarization
type MachineStrategy struct {
	stt pkgai.SpeechToText
}

// NewMachineStrategy creates the speech-to-text source
func NewMachineStrategy(stt pkgai.SpeechToText) *MachineStrategy {
	return &MachineStrategy{stt: stt}
}

func (s *MachineStrategy) Name() string { return SourceAssemblyAI }

func (s *MachineStrategy) Fetch(ctx context.Context, episode *entities.Episode, _ *entities.Podcast) (*entities.Candidate, error) {
	if episode.AudioURL == "" {
		return nil, entities.ErrNoTranscript
	}

	result, err := s.stt.Transcribe(ctx, episode.AudioURL)
	if err != nil {
		return nil, err
	}

	segments := UtteranceSegments(result.Utterances)
	if len(segments) == 0 && strings.TrimSpace(result.Text) != "" {
		segments = ApproximateSegments(result.Text)
	}
	text := result.Text
	if text == "" {
		text = JoinSegments(segments)
	}
	return &entities.Candidate{Source: SourceAssemblyAI, Text: text, Segments: segments}, nil
}

// UtteranceSegments maps diarized utterances to segments, numbering speakers by first appearance
func UtteranceSegments(utterances []pkgai.Utterance) []entities.Segment {
	speakers := newSpeakerIndex()
	out := make([]entities.Segment, 0, len(utterances))
	for _, u := range utterances {
		text := strings.TrimSpace(u.Text)
		if text == "" {
			continue
		}
		end := u.End
		if end < u.Start {
			end = u.Start
		}
		out = append(out, entities.Segment{Text: text, Start: u.Start, End: end, Speaker: speakers.lookup(u.Speaker)})
	}
	return out
}
