// Package remix builds the prompts that merge several answers into one and
// that turn an answer into social media posts.
package remix

import (
	"fmt"
	"strings"
)

// Answer is one slot's finished output offered to the remix.
type Answer struct {
	Index   int
	ModelID string
	Text    string
}

const remixInstructions = `You are given a question and %d answers written independently by AI models.
Merge them into one refined answer. Keep what is correct and well supported, resolve
contradictions in favour of the best reasoning, remove repetition and fill gaps that
another answer covers. Answer the question directly and do not refer to the individual
answers or their models.`

// BuildRemixPrompt renders the synthesis prompt. Blank answers are left out.
func BuildRemixPrompt(question string, answers []Answer) string {
	usable := make([]Answer, 0, len(answers))
	for _, a := range answers {
		if strings.TrimSpace(a.Text) != "" {
			usable = append(usable, a)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, remixInstructions, len(usable))
	sb.WriteString("\n\nQuestion:\n")
	sb.WriteString(strings.TrimSpace(question))
	for i, a := range usable {
		fmt.Fprintf(&sb, "\n\n--- Answer %d", i+1)
		if a.ModelID != "" {
			fmt.Fprintf(&sb, " (%s)", a.ModelID)
		}
		sb.WriteString(" ---\n")
		sb.WriteString(strings.TrimSpace(a.Text))
	}
	sb.WriteString("\n\n--- End of answers ---\n\nRefined answer:")
	return sb.String()
}
