package rag

import (
	"strings"

	"github.com/erikprakoso/rag-axel-backend/internal/conversation"
)

// enhanceQuery rewrites a follow-up question into a self-contained
// retrieval query by folding in the user's recent questions. The history
// is scanned for user-authored turns; up to the two most recent are kept,
// and all but the latest of those are appended as bracketed context:
//
//	"what about the limits? [Context: how does authentication work?]"
//
// With fewer than two prior user turns the question passes through
// unchanged. Assistant turns never contribute to the rewrite, so the
// model's own phrasing cannot drift the search.
func enhanceQuery(question string, history []conversation.Message) string {
	var userTurns []string
	for _, m := range history {
		if m.Role == conversation.RoleUser && strings.TrimSpace(m.Content) != "" {
			userTurns = append(userTurns, m.Content)
		}
	}
	if len(userTurns) > 2 {
		userTurns = userTurns[len(userTurns)-2:]
	}
	if len(userTurns) < 2 {
		return question
	}

	context := strings.Join(userTurns[:len(userTurns)-1], " ")
	return question + " [Context: " + context + "]"
}
