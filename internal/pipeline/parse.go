package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// structuredEnvelope is the JSON shape the model is instructed to emit for
// structured answers.
type structuredEnvelope struct {
	// Summary is the generated answer text.
	Summary string `json:"summary"`

	// Citations lists the source identifiers the summary is grounded in.
	Citations []string `json:"citations"`
}

// parseStructuredAnswer extracts the structured envelope from raw model
// output. Models frequently wrap JSON in markdown fences or pad it with
// commentary, so the object is isolated between the first '{' and the last
// '}' before unmarshalling.
func parseStructuredAnswer(raw string) (structuredEnvelope, error) {
	var env structuredEnvelope

	text := stripFences(strings.TrimSpace(raw))

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return env, fmt.Errorf("no JSON object found in output")
	}

	if err := json.Unmarshal([]byte(text[start:end+1]), &env); err != nil {
		return env, fmt.Errorf("unmarshal structured answer: %w", err)
	}

	if env.Summary == "" {
		return env, fmt.Errorf("structured answer has an empty summary")
	}

	return env, nil
}

// stripFences removes a leading/trailing markdown code fence if present.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
