package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
	backoff "github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	apperrors "github.com/johnquangdev/podcast-assistant/errors"
	"github.com/johnquangdev/podcast-assistant/pkg/config"
)

var (
	// ErrTranscriptionTimeout is returned when polling exceeds the configured ceiling
	ErrTranscriptionTimeout = errors.New("transcription did not finish before the poll ceiling")
	// ErrTranscriptionFailed is returned when the service reports a terminal error
	ErrTranscriptionFailed = errors.New("transcription failed")
)

// Utterance is a diarized span with times in seconds
type Utterance struct {
	Text    string
	Start   float64
	End     float64
	Speaker string
}

// TranscriptionResult is a completed machine transcript
type TranscriptionResult struct {
	ID              string
	Text            string
	Utterances      []Utterance
	DurationSeconds float64
}

// SpeechToText transcribes remote audio with diarization
type SpeechToText interface {
	Transcribe(ctx context.Context, audioURL string) (*TranscriptionResult, error)
}

// AssemblyAIClient submits audio to AssemblyAI and polls until a terminal state
type AssemblyAIClient struct {
	sdk          *aai.Client
	apiKey       string
	languageCode string
	pollInterval time.Duration
	maxPolls     int
	logger       *zap.Logger
}

// NewAssemblyAIClient creates an AssemblyAI client using the provided config.
func NewAssemblyAIClient(cfg *config.AssemblyAIConfig, logger *zap.Logger) *AssemblyAIClient {
	opts := []aai.ClientOption{aai.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, aai.WithBaseURL(cfg.BaseURL))
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	maxPolls := cfg.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 360
	}

	return &AssemblyAIClient{
		sdk:          aai.NewClientWithOptions(opts...),
		apiKey:       cfg.APIKey,
		languageCode: cfg.LanguageCode,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
		logger:       logger,
	}
}

// Transcribe submits audioURL and blocks until the transcript completes, fails or times out
func (c *AssemblyAIClient) Transcribe(ctx context.Context, audioURL string) (*TranscriptionResult, error) {
	if c.apiKey == "" {
		return nil, apperrors.ErrMissingCredential("ASSEMBLYAI_API_KEY")
	}

	transcriptID, err := c.submit(ctx, strings.TrimSpace(audioURL))
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < c.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		transcript, err := c.sdk.Transcripts.Get(ctx, transcriptID)
		if err != nil {
			return nil, fmt.Errorf("failed to poll transcript %s: %w", transcriptID, err)
		}

		switch transcript.Status {
		case aai.TranscriptStatusCompleted:
			if c.logger != nil {
				c.logger.Info("✅ AssemblyAI transcript completed",
					zap.String("transcript_id", transcriptID),
					zap.Int("polls", attempt+1),
				)
			}
			return toResult(transcriptID, transcript), nil
		case aai.TranscriptStatusError:
			msg := "unknown error"
			if transcript.Error != nil {
				msg = *transcript.Error
			}
			return nil, apperrors.ErrAITranscriptionFailed(fmt.Errorf("%w: %s", ErrTranscriptionFailed, msg))
		}
	}

	return nil, fmt.Errorf("%w: %s after %d polls", ErrTranscriptionTimeout, transcriptID, c.maxPolls)
}

// submit creates the transcript job, retrying transient submission errors
func (c *AssemblyAIClient) submit(ctx context.Context, audioURL string) (string, error) {
	params := &aai.TranscriptOptionalParams{
		SpeakerLabels: aai.Bool(true),
		Punctuate:     aai.Bool(true),
		FormatText:    aai.Bool(true),
	}
	if c.languageCode != "" {
		params.LanguageCode = aai.TranscriptLanguageCode(c.languageCode)
	}

	var transcriptID string
	submitFn := func() error {
		transcript, err := c.sdk.Transcripts.SubmitFromURL(ctx, audioURL, params)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if transcript.ID == nil || *transcript.ID == "" {
			return backoff.Permanent(fmt.Errorf("assemblyai returned no transcript id"))
		}
		transcriptID = *transcript.ID
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxElapsedTime = 30 * time.Second
	bo.MaxInterval = 10 * time.Second

	if err := backoff.Retry(submitFn, backoff.WithContext(bo, ctx)); err != nil {
		return "", fmt.Errorf("failed to submit to AssemblyAI: %w", err)
	}

	if c.logger != nil {
		c.logger.Info("🎙️ Submitted audio to AssemblyAI",
			zap.String("transcript_id", transcriptID),
			zap.String("audio_url", audioURL),
		)
	}
	return transcriptID, nil
}

func toResult(id string, transcript aai.Transcript) *TranscriptionResult {
	result := &TranscriptionResult{ID: id}
	if transcript.Text != nil {
		result.Text = *transcript.Text
	}
	if transcript.AudioDuration != nil {
		result.DurationSeconds = float64(*transcript.AudioDuration)
	}
	for _, utt := range transcript.Utterances {
		u := Utterance{}
		if utt.Text != nil {
			u.Text = *utt.Text
		}
		if utt.Start != nil {
			u.Start = float64(*utt.Start) / 1000.0 // ms to seconds
		}
		if utt.End != nil {
			u.End = float64(*utt.End) / 1000.0
		}
		if utt.Speaker != nil {
			u.Speaker = *utt.Speaker
		}
		result.Utterances = append(result.Utterances, u)
	}
	return result
}
