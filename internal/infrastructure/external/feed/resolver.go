// Package feed locates publisher transcripts declared in podcast RSS feeds.
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	"github.com/johnquangdev/podcast-assistant/internal/infrastructure/cache"
)

// DefaultCacheTTL is how long a downloaded feed is reused
const DefaultCacheTTL = 10 * time.Minute

// Fetcher downloads a URL and reports its content type
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// transcript types in order of preference
var typeRank = []string{"json", "vtt", "srt", "subrip", "html", "text/plain", "pdf"}

// Resolver reads podcast:transcript tags of an episode's feed item
type Resolver struct {
	fetcher Fetcher
	cache   *cache.MemoryStore
	ttl     time.Duration
	parser  *gofeed.Parser
	logger  *zap.Logger
}

// NewResolver creates a resolver. cache may be nil to disable feed caching.
func NewResolver(fetcher Fetcher, store *cache.MemoryStore, ttl time.Duration, logger *zap.Logger) *Resolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Resolver{
		fetcher: fetcher,
		cache:   store,
		ttl:     ttl,
		parser:  gofeed.NewParser(),
		logger:  logger,
	}
}

// ResolveTranscriptURL returns the preferred transcript URL for the episode, or "" if the feed declares none
func (r *Resolver) ResolveTranscriptURL(ctx context.Context, podcast *entities.Podcast, episode *entities.Episode) (string, error) {
	if episode.FeedTranscriptURL != "" {
		return episode.FeedTranscriptURL, nil
	}
	if podcast == nil || podcast.FeedURL == "" {
		return "", nil
	}

	raw, err := r.feedXML(ctx, podcast.FeedURL)
	if err != nil {
		return "", err
	}
	parsed, err := r.parser.ParseString(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse feed: %w", err)
	}

	item := FindItem(parsed.Items, episode)
	if item == nil {
		if r.logger != nil {
			r.logger.Debug("🔎 Episode not found in feed",
				zap.String("episode_id", episode.ID.String()),
				zap.String("feed_url", podcast.FeedURL),
			)
		}
		return "", nil
	}
	return BestTranscript(item), nil
}

func (r *Resolver) feedXML(ctx context.Context, url string) (string, error) {
	key := "feed:" + url
	if r.cache != nil {
		if v, ok := r.cache.Get(key); ok {
			return v, nil
		}
	}

	body, _, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to download feed: %w", err)
	}
	if r.cache != nil {
		r.cache.Set(key, string(body), r.ttl)
	}
	return string(body), nil
}

// FindItem matches the episode by GUID, then enclosure URL, then title
func FindItem(items []*gofeed.Item, episode *entities.Episode) *gofeed.Item {
	if episode.GUID != "" {
		for _, it := range items {
			if it.GUID == episode.GUID {
				return it
			}
		}
	}
	if episode.AudioURL != "" {
		for _, it := range items {
			for _, enc := range it.Enclosures {
				if enc != nil && enc.URL == episode.AudioURL {
					return it
				}
			}
		}
	}
	if title := strings.TrimSpace(episode.Title); title != "" {
		for _, it := range items {
			if strings.EqualFold(strings.TrimSpace(it.Title), title) {
				return it
			}
		}
	}
	return nil
}

// BestTranscript picks the highest ranked podcast:transcript URL of an item
func BestTranscript(item *gofeed.Item) string {
	ns, ok := item.Extensions["podcast"]
	if !ok {
		return ""
	}

	best, bestRank := "", len(typeRank)+1
	for _, tag := range ns["transcript"] {
		url := strings.TrimSpace(tag.Attrs["url"])
		if url == "" {
			continue
		}
		rank := rankOf(tag.Attrs["type"])
		if rank < bestRank {
			best, bestRank = url, rank
		}
	}
	return best
}

func rankOf(mimeType string) int {
	t := strings.ToLower(mimeType)
	for i, want := range typeRank {
		if strings.Contains(t, want) {
			return i
		}
	}
	return len(typeRank)
}
