package errors

// ErrorCode is the stable numeric code returned to API clients
type ErrorCode int

const (
	ErrorCode_HTTP_OK ErrorCode = 0

	// General
	ErrorCode_INTERNAL         ErrorCode = 1000
	ErrorCode_INVALID_ARGUMENT ErrorCode = 1001
	ErrorCode_NOT_FOUND        ErrorCode = 1002
	ErrorCode_INVALID_PAYLOAD  ErrorCode = 1004
	ErrorCode_CONFIGURATION    ErrorCode = 1005

	// Catalog
	ErrorCode_PODCAST_NOT_FOUND ErrorCode = 2000
	ErrorCode_EPISODE_NOT_FOUND ErrorCode = 2001
	ErrorCode_TOPIC_NOT_FOUND   ErrorCode = 2002

	// Pipeline
	ErrorCode_TRANSCRIPT_UNAVAILABLE ErrorCode = 3000
	ErrorCode_PROCESSING_FAILED      ErrorCode = 3001
	ErrorCode_RUN_IN_PROGRESS        ErrorCode = 3002
	ErrorCode_QUEUE_FULL             ErrorCode = 3003

	// AI
	ErrorCode_AI_TRANSCRIPTION_FAILED ErrorCode = 4000
	ErrorCode_AI_SUMMARY_FAILED       ErrorCode = 4001
	ErrorCode_AI_SPEAKER_ID_FAILED    ErrorCode = 4002
	ErrorCode_AI_TOPICS_FAILED        ErrorCode = 4003
	ErrorCode_AI_EMBEDDING_FAILED     ErrorCode = 4004
	ErrorCode_AI_CHAT_FAILED          ErrorCode = 4005

	// Integration
	ErrorCode_INTEGRATION_STORAGE_FAILED      ErrorCode = 5000
	ErrorCode_INTEGRATION_CACHE_FAILED        ErrorCode = 5001
	ErrorCode_INTEGRATION_EXTERNAL_API_FAILED ErrorCode = 5002

	// Database
	ErrorCode_DB_CONNECTION_FAILED ErrorCode = 6000
	ErrorCode_DB_QUERY_FAILED      ErrorCode = 6001
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCode_HTTP_OK:                         "HTTP_OK",
	ErrorCode_INTERNAL:                        "INTERNAL",
	ErrorCode_INVALID_ARGUMENT:                "INVALID_ARGUMENT",
	ErrorCode_NOT_FOUND:                       "NOT_FOUND",
	ErrorCode_INVALID_PAYLOAD:                 "INVALID_PAYLOAD",
	ErrorCode_CONFIGURATION:                   "CONFIGURATION",
	ErrorCode_PODCAST_NOT_FOUND:               "PODCAST_NOT_FOUND",
	ErrorCode_EPISODE_NOT_FOUND:               "EPISODE_NOT_FOUND",
	ErrorCode_TOPIC_NOT_FOUND:                 "TOPIC_NOT_FOUND",
	ErrorCode_TRANSCRIPT_UNAVAILABLE:          "TRANSCRIPT_UNAVAILABLE",
	ErrorCode_PROCESSING_FAILED:               "PROCESSING_FAILED",
	ErrorCode_RUN_IN_PROGRESS:                 "RUN_IN_PROGRESS",
	ErrorCode_QUEUE_FULL:                      "QUEUE_FULL",
	ErrorCode_AI_TRANSCRIPTION_FAILED:         "AI_TRANSCRIPTION_FAILED",
	ErrorCode_AI_SUMMARY_FAILED:               "AI_SUMMARY_FAILED",
	ErrorCode_AI_SPEAKER_ID_FAILED:            "AI_SPEAKER_ID_FAILED",
	ErrorCode_AI_TOPICS_FAILED:                "AI_TOPICS_FAILED",
	ErrorCode_AI_EMBEDDING_FAILED:             "AI_EMBEDDING_FAILED",
	ErrorCode_AI_CHAT_FAILED:                  "AI_CHAT_FAILED",
	ErrorCode_INTEGRATION_STORAGE_FAILED:      "INTEGRATION_STORAGE_FAILED",
	ErrorCode_INTEGRATION_CACHE_FAILED:        "INTEGRATION_CACHE_FAILED",
	ErrorCode_INTEGRATION_EXTERNAL_API_FAILED: "INTEGRATION_EXTERNAL_API_FAILED",
	ErrorCode_DB_CONNECTION_FAILED:            "DB_CONNECTION_FAILED",
	ErrorCode_DB_QUERY_FAILED:                 "DB_QUERY_FAILED",
}

// String returns the symbolic name of the code
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}
