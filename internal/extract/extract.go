// Package extract pulls structured drug–target–disease relations out of
// evidence passages using the chat model. Extracted triples are persisted in
// the relational store so they can be queried without re-running the model.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/mkumar/biorag-go/internal/pipeline"
	"github.com/mkumar/biorag-go/internal/store"
)

// extractPromptTmpl asks the model for a strict JSON array of relations found
// in a single passage. The passage identifier is echoed back by us, not the
// model, so a confused model cannot misattribute a relation.
var extractPromptTmpl = template.Must(template.New("extract").Parse(`Extract every drug-target-disease relation stated in the following biomedical abstract.

Abstract:
{{.Text}}

Respond ONLY with a JSON array. Each element must be an object with exactly these keys:
  "drug"      - the therapeutic compound name
  "target"    - the molecular target (gene or protein symbol)
  "disease"   - the condition the relation applies to
  "mechanism" - a short phrase describing the interaction (may be "")

Only include relations explicitly supported by the abstract text. If the
abstract states no such relation, respond with [].
`))

// tripleEnvelope mirrors the JSON shape the model is asked to produce.
type tripleEnvelope struct {
	Drug      string `json:"drug"`
	Target    string `json:"target"`
	Disease   string `json:"disease"`
	Mechanism string `json:"mechanism"`
}

// Extractor runs relation extraction over evidence passages.
type Extractor struct {
	generator pipeline.Generator
}

// NewExtractor constructs an Extractor. The generator must not be nil.
func NewExtractor(generator pipeline.Generator) (*Extractor, error) {
	if generator == nil {
		return nil, fmt.Errorf("extract: generator must not be nil")
	}
	return &Extractor{generator: generator}, nil
}

// FromContext extracts triples from every item in an assembled context block.
// Passages that yield unparseable model output are skipped rather than
// failing the whole batch; the number of skipped passages is returned.
func (e *Extractor) FromContext(ctx context.Context, block *pipeline.ContextBlock) ([]store.Triple, int, error) {
	var triples []store.Triple
	skipped := 0

	for _, item := range block.Items {
		if err := ctx.Err(); err != nil {
			return triples, skipped, fmt.Errorf("extract: cancelled: %w", err)
		}

		found, err := e.fromPassage(ctx, item.SourceID, item.Text)
		if err != nil {
			if isParseFailure(err) {
				skipped++
				continue
			}
			return triples, skipped, err
		}
		triples = append(triples, found...)
	}

	return triples, skipped, nil
}

// fromPassage runs one extraction call for a single passage.
func (e *Extractor) fromPassage(ctx context.Context, sourceID, text string) ([]store.Triple, error) {
	var sb strings.Builder
	if err := extractPromptTmpl.Execute(&sb, struct{ Text string }{Text: text}); err != nil {
		return nil, fmt.Errorf("extract: render prompt: %w", err)
	}

	raw, err := e.generator.Generate(ctx, sb.String())
	if err != nil {
		return nil, fmt.Errorf("extract: generation failed for %s: %w", sourceID, err)
	}

	envelopes, err := parseTripleArray(raw)
	if err != nil {
		return nil, &parseError{sourceID: sourceID, err: err}
	}

	triples := make([]store.Triple, 0, len(envelopes))
	for _, env := range envelopes {
		if strings.TrimSpace(env.Drug) == "" || strings.TrimSpace(env.Target) == "" {
			continue
		}
		triples = append(triples, store.Triple{
			Drug:      strings.TrimSpace(env.Drug),
			Target:    strings.TrimSpace(env.Target),
			Disease:   strings.TrimSpace(env.Disease),
			Mechanism: strings.TrimSpace(env.Mechanism),
			SourceID:  sourceID,
		})
	}
	return triples, nil
}

// parseError marks output that could not be parsed as a triple array.
type parseError struct {
	sourceID string
	err      error
}

func (e *parseError) Error() string {
	return fmt.Sprintf("extract: unparseable output for %s: %v", e.sourceID, e.err)
}

func (e *parseError) Unwrap() error { return e.err }

// isParseFailure reports whether err is a per-passage parse failure.
func isParseFailure(err error) bool {
	var pe *parseError
	return errors.As(err, &pe)
}

// parseTripleArray extracts the first JSON array from raw model output.
// Models frequently wrap the array in markdown fences or commentary; the
// text between the first '[' and the last ']' is isolated before decoding.
func parseTripleArray(raw string) ([]tripleEnvelope, error) {
	trimmed := strings.TrimSpace(raw)

	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array found in output")
	}

	var envelopes []tripleEnvelope
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &envelopes); err != nil {
		return nil, fmt.Errorf("decode JSON array: %w", err)
	}
	return envelopes, nil
}
