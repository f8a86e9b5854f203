package scorer

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/zombar/aidetector/internal/llm"
	"github.com/zombar/aidetector/internal/models"
)

// parseCompletion validates the structured completion payload field by field.
// Every field must be present with the expected type; otherwise a
// MalformedResponseError naming the field is returned.
func parseCompletion(response, model string) (models.RemoteScore, error) {
	// Models sometimes wrap the object in prose or code fences
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return models.RemoteScore{}, &llm.MalformedResponseError{Reason: "no JSON object found in response"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(response[start:end+1]), &fields); err != nil {
		return models.RemoteScore{}, &llm.MalformedResponseError{Reason: "invalid JSON: " + err.Error()}
	}

	var (
		score models.RemoteScore
		err   error
	)

	if score.AIProbability, err = decodeField[float64](fields, "aiProbability", "must be a number"); err != nil {
		return models.RemoteScore{}, err
	}
	if score.Confidence, err = decodeField[float64](fields, "confidence", "must be a number"); err != nil {
		return models.RemoteScore{}, err
	}
	if score.Factors, err = decodeField[[]string](fields, "factors", "must be an array of strings"); err != nil {
		return models.RemoteScore{}, err
	}
	if score.Reasoning, err = decodeField[string](fields, "reasoning", "must be a string"); err != nil {
		return models.RemoteScore{}, err
	}

	source, err := decodeField[string](fields, "likelySource", "must be a string")
	if err != nil {
		return models.RemoteScore{}, err
	}
	source = strings.ToLower(strings.TrimSpace(source))
	if source != models.SourceHuman && source != models.SourceAI {
		return models.RemoteScore{}, &llm.MalformedResponseError{Field: "likelySource", Reason: `must be "human" or "ai"`}
	}
	score.LikelySource = source

	score.AIProbability = clamp(score.AIProbability)
	score.Confidence = clamp(score.Confidence)
	score.Model = model

	return score, nil
}

func decodeField[T any](fields map[string]json.RawMessage, name, reason string) (T, error) {
	var value T

	raw, ok := fields[name]
	if !ok {
		return value, &llm.MalformedResponseError{Field: name, Reason: "is missing"}
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return value, &llm.MalformedResponseError{Field: name, Reason: "is null"}
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, &llm.MalformedResponseError{Field: name, Reason: reason}
	}

	return value, nil
}
