package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hirewise/resume-matcher/internal/domain"
)

// CleanJSONResponse strips markdown fences and extracts the outermost
// {...} block from an LLM completion. Models routinely wrap JSON in
// ``` fences or prepend prose; never trust the raw string.
func CleanJSONResponse(response string) string {
	s := strings.TrimSpace(response)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

// DecodeJSON cleans the completion and unmarshals it into v.
func DecodeJSON(response string, v any) error {
	cleaned := CleanJSONResponse(response)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("op=ai.decode_json: %w: %v", domain.ErrSchemaInvalid, err)
	}
	return nil
}

// ClampScore bounds an LLM-reported score to [0,100].
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
