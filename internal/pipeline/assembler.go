package pipeline

import (
	"fmt"

	"github.com/mkumar/biorag-go/internal/budget"
)

// Assemble selects evidence for the generation prompt under a token budget.
// Selection is greedy in rank order: an item is included only if it fits
// whole, so a citation always references a complete passage. The single
// exception is a first item that alone exceeds the budget — it is included
// truncated and flagged Partial so a non-empty context is produced even
// under a very small budget.
//
// Assemble is deterministic: the same evidence set and budget always yield
// an identical context block.
func Assemble(evidence EvidenceSet, budgetTokens int) (ContextBlock, error) {
	if budgetTokens < 1 {
		return ContextBlock{}, fmt.Errorf("pipeline: context budget must be >= 1 token, got %d", budgetTokens)
	}

	block := ContextBlock{Budget: budgetTokens}

	for i, item := range evidence.Items {
		cost := budget.PassageCost(item.Title, item.Text)

		if block.TotalTokens+cost <= budgetTokens {
			block.Items = append(block.Items, ContextItem{
				EvidenceItem: item,
				Tokens:       cost,
			})
			block.TotalTokens += cost
			continue
		}

		// First item alone over budget: include it truncated rather than
		// returning an empty context. The title and scaffolding are kept
		// whole; only the passage text is cut.
		if i == 0 {
			avail := budgetTokens - budget.PassageCost(item.Title, "")
			if avail < 1 {
				avail = 1
			}
			truncated := item
			truncated.Text = budget.TruncateToTokens(item.Text, avail)
			cost = budget.PassageCost(truncated.Title, truncated.Text)
			if cost > budgetTokens {
				cost = budgetTokens
			}
			block.Items = append(block.Items, ContextItem{
				EvidenceItem: truncated,
				Partial:      true,
				Tokens:       cost,
			})
			block.TotalTokens += cost
		}

		// Stop at the first item that would overflow; later (smaller)
		// items are not back-filled, preserving rank order semantics.
		break
	}

	return block, nil
}
