// Package quality decides whether a candidate transcript is complete enough to keep.
package quality

import (
	"fmt"
	"html"
	"math"
	"regexp"
	"strings"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	"github.com/johnquangdev/podcast-assistant/pkg/config"
)

// Policy holds the heuristic thresholds of the quality gate
type Policy struct {
	MinChars           int
	MinWords           int
	RepetitionMinWords int
	MinUniqueRatio     float64
	LongEpisodeSeconds float64
	WordsPerSecond     float64
	MinCoverage        float64
}

// DefaultPolicy returns the standard thresholds
func DefaultPolicy() Policy {
	return Policy{
		MinChars:           600,
		MinWords:           120,
		RepetitionMinWords: 200,
		MinUniqueRatio:     0.12,
		LongEpisodeSeconds: 480,
		WordsPerSecond:     0.22,
		MinCoverage:        0.2,
	}
}

// PolicyFromConfig maps pipeline config onto a Policy
func PolicyFromConfig(cfg config.QualityConfig) Policy {
	return Policy{
		MinChars:           cfg.MinChars,
		MinWords:           cfg.MinWords,
		RepetitionMinWords: cfg.RepetitionMinWords,
		MinUniqueRatio:     cfg.MinUniqueRatio,
		LongEpisodeSeconds: cfg.LongEpisodeSeconds,
		WordsPerSecond:     cfg.WordsPerSecond,
		MinCoverage:        cfg.MinCoverage,
	}
}

// Verdict is the outcome of an evaluation
type Verdict struct {
	Accepted bool
	Reason   string
	Chars    int
	Words    int
}

// Evaluator applies a Policy. It is pure and safe for concurrent use.
type Evaluator struct {
	policy Policy
}

// NewEvaluator creates an evaluator
func NewEvaluator(policy Policy) *Evaluator {
	return &Evaluator{policy: policy}
}

// Evaluate scores text and its segments against the episode duration in seconds
func (e *Evaluator) Evaluate(text string, segments []entities.Segment, durationSeconds float64) Verdict {
	p := e.policy
	clean := CleanText(text)
	words := strings.Fields(clean)
	v := Verdict{Chars: len([]rune(clean)), Words: len(words)}

	if v.Chars < p.MinChars || v.Words < p.MinWords {
		v.Reason = fmt.Sprintf("too short (chars=%d,words=%d)", v.Chars, v.Words)
		return v
	}

	if v.Words >= p.RepetitionMinWords {
		ratio := uniqueRatio(words)
		if ratio < p.MinUniqueRatio {
			v.Reason = fmt.Sprintf("too repetitive (unique_ratio=%.3f)", ratio)
			return v
		}
	}

	if durationSeconds >= p.LongEpisodeSeconds {
		floor := int(math.Max(float64(p.MinWords), math.Floor(p.WordsPerSecond*durationSeconds)))
		if v.Words < floor {
			v.Reason = fmt.Sprintf("too few words for duration (words=%d,min=%d,duration=%.0fs)", v.Words, floor, durationSeconds)
			return v
		}

		var maxEnd float64
		for _, s := range segments {
			if s.End > maxEnd {
				maxEnd = s.End
			}
		}
		if len(segments) > 0 {
			coverage := maxEnd / durationSeconds
			if coverage < p.MinCoverage {
				v.Reason = fmt.Sprintf("truncated (coverage=%.2f,max_end=%.0fs,duration=%.0fs)", coverage, maxEnd, durationSeconds)
				return v
			}
		}
	}

	v.Accepted = true
	return v
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanText strips markup, decodes entities and collapses whitespace
func CleanText(text string) string {
	s := tagPattern.ReplaceAllString(text, " ")
	s = html.UnescapeString(s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func uniqueRatio(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[strings.ToLower(w)] = struct{}{}
	}
	return float64(len(seen)) / float64(len(words))
}
