package service

import (
	"fmt"
	"strings"

	"github.com/candorhq/tacit/internal/domain"
)

const (
	// historyTurns bounds how many past turns the prompt carries
	historyTurns = 6

	noSourcesPlaceholder = "No relevant sources were found in the knowledge base for this question."
)

// Composer builds the grounded system prompt for one conversation turn.
// Source numbering in the prompt is 1-based and matches, in order, the
// sources array emitted to the client, so [Source N] citations line up.
type Composer struct{}

func NewComposer() *Composer {
	return &Composer{}
}

// Compose renders retrieved chunks, truncated history, and the user query
// into a single prompt with citation instructions.
func (c *Composer) Compose(query string, results []*domain.SearchResult, history []domain.Message) string {
	var sb strings.Builder

	sb.WriteString("You are an assistant that answers questions using an organization's captured knowledge: ")
	sb.WriteString("interview transcripts, derived insights, knowledge graph entries, and uploaded documents.\n\n")

	if len(results) == 0 {
		sb.WriteString(noSourcesPlaceholder)
		sb.WriteString("\n")
	} else {
		for i, r := range results {
			fmt.Fprintf(&sb, "[Source %d - %s]\n%s\n\n", i+1, r.Type, r.Content)
		}
	}

	if turns := lastTurns(history, historyTurns); len(turns) > 0 {
		sb.WriteString("\nConversation so far:\n")
		for _, m := range turns {
			switch m.Role {
			case domain.RoleAssistant:
				sb.WriteString("Assistant: ")
			default:
				sb.WriteString("User: ")
			}
			sb.WriteString(m.Content)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nQuestion: ")
	sb.WriteString(query)
	sb.WriteString("\n\nInstructions:\n")
	sb.WriteString("- Answer using only the numbered sources above.\n")
	sb.WriteString("- Cite every source you rely on as [Source N].\n")
	sb.WriteString("- If the sources do not contain enough information, say so honestly instead of guessing.\n")
	sb.WriteString("- Keep the answer concise.\n")
	sb.WriteString("- If you draw an inference that goes beyond the sources, say that it is an inference.\n")

	return sb.String()
}

// lastTurns trims history to the trailing n turns (2n messages), keeping
// the original order with the most recent message last.
func lastTurns(history []domain.Message, n int) []domain.Message {
	max := n * 2
	if len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}
