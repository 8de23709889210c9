package repositories

import "context"

// ArtifactStore is durable storage for transcript and summary artifacts
type ArtifactStore interface {
	// PutText stores content under key and returns its addressable URL
	PutText(ctx context.Context, key, content, contentType string) (string, error)
	// ReadText loads an artifact previously returned by PutText
	ReadText(ctx context.Context, url string) (string, error)
}

// RunLock guards a single in-flight pipeline run per key
type RunLock interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
