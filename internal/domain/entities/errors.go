package entities

import "errors"

// Domain errors
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")

	// Transcription
	ErrNoTranscript         = errors.New("no transcript from this source")
	ErrTranscriptNotAvail   = errors.New("no transcript available")
	ErrQualityRejected      = errors.New("transcript rejected by quality gate")
	ErrTranscriptionTimeout = errors.New("transcription timed out")

	// Pipeline
	ErrRunInProgress = errors.New("episode run already in progress")
)
