package ai

import (
	"fmt"
	"strings"
)

var categoryFocus = map[string]string{
	"Performance": "Only comment on performance: algorithmic complexity, unnecessary work, allocations and I/O.",
	"Readability": "Only comment on readability: naming, structure, duplication and clarity for the next reader.",
	"Advanced":    "Only comment on advanced improvements: idioms, language features and design patterns an experienced developer would reach for.",
	"Bug":         "Only comment on bugs: incorrect behaviour, unhandled edge cases and crashes.",
}

func feedbackSystemPrompt(category string) string {
	focus, ok := categoryFocus[category]
	if !ok {
		focus = fmt.Sprintf("Only comment on %s.", strings.ToLower(category))
	}

	return "You are a coding coach. Your task is to provide constructive feedback on the code provided by the user. " +
		focus + "\n\n" +
		"The code is given with a line number prefix on every line. Cite those numbers in line_numbers. " +
		fmt.Sprintf("Every feedback point must have type %q. ", category) +
		"Rate severity from 5 (critical) to 1 (informational). Return an empty list when there is nothing to say."
}

func conversationSystemPrompt() string {
	return "You are a coding coach. Your task is to provide constructive feedback on the code provided by the user. " +
		"Focus on best practices, potential improvements, and any errors or issues you notice.\n\n" +
		"You will know the codebase, the previous feedback given and then you will be answering questions and queries the trainee has about the feedback.\n\n" +
		"Keep responses fairly short and conversational. Format replies as markdown."
}

// NumberLines prefixes every line of code with its 1-based line number.
func NumberLines(code string) string {
	lines := strings.Split(code, "\n")
	builder := strings.Builder{}
	for i, line := range lines {
		if i > 0 {
			builder.WriteByte('\n')
		}
		builder.WriteString(fmt.Sprintf("%d: %s", i+1, line))
	}
	return builder.String()
}
