// Package budget provides token cost estimation for the context assembler.
// Because the pipeline supports multiple LLM backends with different
// tokenizers, it uses a conservative character-based heuristic:
// 1 token ≈ 4 characters (English prose). This deliberately under-estimates
// token counts to leave headroom for model-specific overhead.
package budget

const (
	// CharsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English text; using 3
	// would be more aggressive but risks overflowing context windows.
	CharsPerToken = 4

	// DefaultContextTokens is the default evidence context budget in
	// tokens. Conservative enough that fifteen typical PubMed abstracts
	// (~250 words each) do not all fit, forcing rank-ordered selection,
	// while leaving room in an 8k-context model for the question, the
	// instructions, and the response.
	DefaultContextTokens = 4000

	// itemOverheadTokens is the fixed per-passage cost of the prompt
	// scaffolding around each passage (source header, separators).
	itemOverheadTokens = 8
)

// Estimate returns a rough token count for s using the character heuristic.
// Non-empty strings always cost at least one token.
func Estimate(s string) int {
	n := len(s) / CharsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// PassageCost returns the estimated token cost of including one passage in
// the generation prompt: title plus text plus the fixed prompt scaffolding.
func PassageCost(title, text string) int {
	return itemOverheadTokens + Estimate(title) + Estimate(text)
}

// TruncateToTokens cuts s so its estimated cost is at most maxTokens.
// Used only for the single-item overflow case in the context assembler.
// The cut lands on a byte boundary; a partial trailing rune is acceptable
// because the truncated text is flagged and never cited as a whole passage.
func TruncateToTokens(s string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	maxChars := maxTokens * CharsPerToken
	if len(s) <= maxChars {
		return s
	}
	return s[:maxChars]
}
