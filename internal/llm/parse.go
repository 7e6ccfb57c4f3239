package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// extractJSON strips markdown fences and any prose around the JSON value in
// raw. openers lists the brackets the caller accepts; prose is cut at the
// first of them, so brackets of another kind in the prose are skipped.
func extractJSON(raw, openers string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```JSON")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.TrimSpace(strings.Trim(raw, "`"))
	if raw == "" || strings.IndexByte(openers, raw[0]) != -1 {
		return raw
	}

	start := strings.IndexAny(raw, openers)
	if start == -1 {
		return raw
	}
	closer := "}"
	if raw[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(raw, closer)
	if end <= start {
		return raw[start:]
	}
	return raw[start : end+1]
}

// parseQuestions accepts either a JSON array of strings or an object with a
// "questions" array. Non-string and blank entries are dropped.
func parseQuestions(raw string) ([]string, error) {
	cleaned := extractJSON(raw, "[{")

	var data any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	var list []any
	switch v := data.(type) {
	case []any:
		list = v
	case map[string]any:
		l, ok := v["questions"].([]any)
		if !ok {
			return nil, fmt.Errorf("%w: object without a questions array", ErrMalformedResponse)
		}
		list = l
	default:
		return nil, fmt.Errorf("%w: expected array, got %T", ErrMalformedResponse, data)
	}

	questions := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			questions = append(questions, s)
		}
	}
	return questions, nil
}

// parseBatch decodes the batch evaluation object. A missing or non-array
// "evaluations" field is a malformed response; individual entries without a
// usable q_index are skipped.
func parseBatch(raw string) (*BatchEvaluation, error) {
	cleaned := extractJSON(raw, "{")

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	list, ok := data["evaluations"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing evaluations array", ErrMalformedResponse)
	}

	result := &BatchEvaluation{
		Strengths:    coerceString(data["overall_strengths"]),
		Improvements: coerceString(data["overall_improvements"]),
	}
	if topics, ok := data["recommended_topics"].([]any); ok {
		for _, t := range topics {
			if s := coerceString(t); s != "" {
				result.RecommendedTopics = append(result.RecommendedTopics, s)
			}
		}
	}

	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		idx := coerceFloat(entry["q_index"])
		if math.IsNaN(idx) || idx < 1 || idx != math.Trunc(idx) {
			continue
		}
		result.Evaluations = append(result.Evaluations, ItemEvaluation{
			Index:              int(idx),
			TechnicalScore:     zeroNaN(coerceFloat(entry["technical_score"])),
			CommunicationScore: zeroNaN(coerceFloat(entry["communication_score"])),
			Feedback:           coerceString(entry["question_feedback"]),
		})
	}
	return result, nil
}

func zeroNaN(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "%")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
