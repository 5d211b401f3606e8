package pipeline

import (
	"fmt"
	"strings"
	"text/template"
)

// answerPromptTmpl is the generation prompt for a query with retrieved
// evidence. Each passage carries its source identifier so the model can
// ground claims in specific records.
var answerPromptTmpl = template.Must(template.New("answer").Parse(`You are a biomedical research assistant. Answer the question using ONLY the evidence passages provided below. If the evidence does not contain the answer, state that you cannot answer based on the provided passages.

Each passage is labelled with its source identifier (a PubMed ID or annotation accession). Ground every claim in the passages and refer to them by their identifiers.

Evidence:
{{range .Items}}
[{{.SourceID}}]{{if .Title}} {{.Title}}{{end}}{{if .Partial}} (truncated){{end}}
{{.Text}}
{{end}}
Question: {{.Question}}
`))

// noEvidencePromptTmpl is used when retrieval produced no usable evidence.
// The model is told explicitly so it does not hallucinate citations.
var noEvidencePromptTmpl = template.Must(template.New("noevidence").Parse(`You are a biomedical research assistant. No relevant evidence passages were found for the question below. Answer from general knowledge if you can, state your uncertainty clearly, and do not cite any source identifiers.

Question: {{.Question}}
`))

// structuredInstruction asks for the machine-parseable answer envelope.
const structuredInstruction = `
Format your ENTIRE response as a single JSON object in this exact shape, with no additional text, commentary, or markdown formatting outside the JSON:

{"summary": "<the answer text>", "citations": ["<source id>", "<source id>"]}

The citations array must list only identifiers of passages that support the summary.`

// strictStructuredInstruction is appended on the single retry after a parse
// failure. Same envelope, harder wording.
const strictStructuredInstruction = `
IMPORTANT: your previous response could not be parsed. Respond with ONLY the JSON object — no markdown fences, no preamble, no trailing text. The first character of your response must be '{' and the last must be '}'.

{"summary": "<the answer text>", "citations": ["<source id>", "<source id>"]}`

// promptData is the input to the answer prompt templates.
type promptData struct {
	// Question is the user's query text.
	Question string

	// Items are the context passages in rank order.
	Items []ContextItem
}

// buildPrompt renders the generation prompt for the query and context.
// strict selects the harder formatting instruction used on the retry.
func buildPrompt(query Query, context ContextBlock, strict bool) (string, error) {
	var sb strings.Builder

	tmpl := answerPromptTmpl
	if context.Empty() {
		tmpl = noEvidencePromptTmpl
	}

	data := promptData{Question: query.Text, Items: context.Items}
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("pipeline: rendering prompt: %w", err)
	}

	if query.Structured {
		if strict {
			sb.WriteString(strictStructuredInstruction)
		} else {
			sb.WriteString(structuredInstruction)
		}
	}

	return sb.String(), nil
}
