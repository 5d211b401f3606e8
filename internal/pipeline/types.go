// Package pipeline implements the retrieval-augmented generation core:
// evidence retrieval, context assembly under a token budget, and answer
// synthesis with citation binding. Each pipeline run is a single linear
// sequence of calls to the embedding gateway, the vector index, and the
// generation gateway; independent runs share no mutable state and may
// execute concurrently.
package pipeline

import (
	"time"

	"github.com/mkumar/biorag-go/internal/rag"
)

// Query is the immutable input to one pipeline run.
type Query struct {
	// Text is the raw natural-language question.
	Text string

	// Structured requests that the generated answer be parsed into a
	// summary plus an explicit citation list.
	Structured bool
}

// EvidenceItem is a retrieved passage with its similarity score.
// It is immutable once the retriever returns it.
type EvidenceItem struct {
	rag.Passage
}

// EvidenceSet is an ordered sequence of evidence items, deduplicated by
// source identifier and sorted by descending score (ties broken by source
// identifier ascending).
type EvidenceSet struct {
	// Items holds the deduplicated, rank-ordered evidence.
	Items []EvidenceItem
}

// Empty reports whether the retrieval produced no usable evidence.
func (s EvidenceSet) Empty() bool {
	return len(s.Items) == 0
}

// SourceIDs returns the source identifiers in rank order.
func (s EvidenceSet) SourceIDs() []string {
	ids := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		ids = append(ids, it.SourceID)
	}
	return ids
}

// ContextItem is an evidence item selected for prompting. Partial is set
// only on a first item that alone exceeded the budget and was truncated —
// the single exception to whole-item inclusion.
type ContextItem struct {
	EvidenceItem

	// Partial marks an item whose text was truncated to fit the budget.
	Partial bool

	// Tokens is the estimated token cost of this item as included.
	Tokens int
}

// ContextBlock is the ordered evidence selected for the generation prompt.
// Selection preserves the rank order of the EvidenceSet it was built from,
// and TotalTokens never exceeds the budget it was assembled under.
type ContextBlock struct {
	// Items holds the selected context items in rank order.
	Items []ContextItem

	// TotalTokens is the estimated token cost of all included items.
	TotalTokens int

	// Budget is the token budget the block was assembled under.
	Budget int
}

// Empty reports whether no evidence fit (or none was retrieved).
func (b ContextBlock) Empty() bool {
	return len(b.Items) == 0
}

// HasSource reports whether the block contains a passage with the given
// source identifier.
func (b ContextBlock) HasSource(id string) bool {
	for _, it := range b.Items {
		if it.SourceID == id {
			return true
		}
	}
	return false
}

// Flag marks a degraded-but-usable answer. Flags never accompany an error:
// a flagged answer is returned normally so the caller can decide what to do.
type Flag string

const (
	// FlagNoEvidence marks an answer generated without any retrieved
	// evidence (empty context block).
	FlagNoEvidence Flag = "no_evidence"

	// FlagUncited marks a structured answer whose citations were all
	// invalid and had to be dropped.
	FlagUncited Flag = "uncited"
)

// GeneratedAnswer is the parsed output of the generation gateway.
// Every citation references a source identifier present in the context
// block that produced the answer; citations the model invented are dropped
// before the answer is returned.
type GeneratedAnswer struct {
	// Summary is the generated answer text.
	Summary string

	// Citations is the ordered list of source identifiers the answer is
	// grounded in.
	Citations []string

	// Flags holds degradation markers, if any.
	Flags []Flag
}

// Flagged reports whether the answer carries the given degradation flag.
func (a GeneratedAnswer) Flagged(f Flag) bool {
	for _, g := range a.Flags {
		if g == f {
			return true
		}
	}
	return false
}

// PipelineResult is the unit returned to the caller for one run. It is
// read-only after construction; persistence is the caller's concern.
type PipelineResult struct {
	// Query is the input that produced this result.
	Query Query

	// Evidence is the deduplicated evidence set used for the run.
	Evidence EvidenceSet

	// Context is the budgeted context block the answer was generated from.
	Context ContextBlock

	// Answer is the generated, citation-validated answer.
	Answer GeneratedAnswer

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}
