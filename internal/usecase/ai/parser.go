package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Parser handles parsing and validation of completion responses
type Parser struct{}

// NewParser creates a new Parser instance
func NewParser() *Parser {
	return &Parser{}
}

// ParseSpeakerMap parses a speaker identification reply. When the reply is not
// pure JSON the first balanced {...} block is parsed instead.
// Keys have their "Speaker " prefix removed.
func (p *Parser) ParseSpeakerMap(content string) (map[string]string, error) {
	content = extractJSON(content)

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		block := firstObject(content)
		if block == "" {
			return nil, fmt.Errorf("failed to parse JSON response: %w", err)
		}
		if err := json.Unmarshal([]byte(block), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON response: %w", err)
		}
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		name, ok := v.(string)
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		key := strings.TrimSpace(strings.Replace(k, "Speaker ", "", 1))
		out[key] = strings.TrimSpace(name)
	}
	return out, nil
}

// ParseTopics parses {"topics": [...]} or a bare array. Non-string entries are dropped.
func (p *Parser) ParseTopics(content string, limit int) ([]string, error) {
	content = extractJSON(content)

	var raw interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		block := firstObject(content)
		if block == "" {
			return nil, fmt.Errorf("failed to parse JSON response: %w", err)
		}
		if err := json.Unmarshal([]byte(block), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON response: %w", err)
		}
	}

	if obj, ok := raw.(map[string]interface{}); ok {
		raw = obj["topics"]
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("missing topics array in response")
	}
	return stringItems(items, limit), nil
}

// ParseQueries parses a JSON array of query strings
func (p *Parser) ParseQueries(content string, limit int) ([]string, error) {
	content = extractJSON(content)

	var items []interface{}
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		start, end := strings.Index(content, "["), strings.LastIndex(content, "]")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("expected JSON array as response: %w", err)
		}
		if err := json.Unmarshal([]byte(content[start:end+1]), &items); err != nil {
			return nil, fmt.Errorf("expected JSON array as response: %w", err)
		}
	}
	return stringItems(items, limit), nil
}

func stringItems(items []interface{}, limit int) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// extractJSON strips a markdown code fence around the reply
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
	}

	return strings.TrimSpace(content)
}

// firstObject returns the first balanced {...} block in s, or ""
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
