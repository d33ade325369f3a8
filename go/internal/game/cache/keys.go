package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func RosterKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("players:%s", sessionID)
}

func QuestionBankKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("questions:%s", sessionID)
}

func QueueKey(sessionID, questionID uuid.UUID) string {
	return fmt.Sprintf("queue:%s:%s", sessionID, questionID)
}

func SessionKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("game:%s:session", sessionID)
}

// Invalidation patterns, one per family of keys scoped to a session.

func GamePattern(sessionID uuid.UUID) string {
	return fmt.Sprintf("game:%s:*", sessionID)
}

func RosterPattern(sessionID uuid.UUID) string {
	return fmt.Sprintf("players:%s*", sessionID)
}

func QuestionBankPattern(sessionID uuid.UUID) string {
	return fmt.Sprintf("questions:%s*", sessionID)
}

func QueuePattern(sessionID uuid.UUID) string {
	return fmt.Sprintf("queue:%s:*", sessionID)
}
