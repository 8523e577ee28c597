package extract

import (
	"fmt"
	"strings"
)

const factConstraints = "Your output should only be a bulleted list of concise, single-sentence facts. " +
	"Do not provide reasons or context behind the facts. " +
	"I just only want the facts based on the question and nothing else. " +
	"You must extract at least 1 fact and at most 10 facts"

// FirstPrompt asks for facts from the first call log
func FirstPrompt(question, text string) string {
	return fmt.Sprintf(
		"Answer this question = %s, by extracting relevant and single-sentence facts from this call log = %s. %s.",
		question, text, factConstraints,
	)
}

// FollowUpPrompt asks the model to revise the known facts against the next call log.
// Known facts are joined with a single space.
func FollowUpPrompt(question string, known []string, text string) string {
	return fmt.Sprintf(
		"Answer this question = %s, these are the known facts = %s. "+
			"Generate a new bulleted list of concise, single-sentence facts from the call log = %s. "+
			"You can generate this new list by performing the following operations based on this call log : "+
			"(1) changing or extending the known facts with new facts you extract from the call log "+
			"(2) Adding new facts extracted from the call log to the known facts "+
			"(3) Removing the known facts that are no longer true based on this call log.%s",
		question, strings.Join(known, " "), text, factConstraints,
	)
}
