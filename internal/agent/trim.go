package agent

import (
	"encoding/json"

	"github.com/floydai/floyd/internal/logging"
	"github.com/floydai/floyd/pkg/types"
)

// estimateTokens gives a cheap length-based estimate over messages:
// approximately four characters per token (§4.6.2).
func estimateTokens(messages []types.Message) int {
	chars := 0
	for _, m := range messages {
		data, err := json.Marshal(m)
		if err != nil {
			continue
		}
		chars += len(data)
	}
	return chars / 4
}

// trimHistory removes the oldest non-system message while the
// estimated token count exceeds ContextTokenThreshold, stopping once
// only MinRetainedNonSystem non-system messages remain. The system
// message (if present as the first message) is never removed (§4.6.2,
// §3).
func (e *Engine) trimHistory() {
	removed := 0
	removedChars := 0

	for estimateTokens(e.session.Messages) > ContextTokenThreshold {
		idx := firstNonSystemIndex(e.session.Messages)
		if idx < 0 {
			break
		}
		if countNonSystem(e.session.Messages) <= MinRetainedNonSystem {
			break
		}

		data, _ := json.Marshal(e.session.Messages[idx])
		removedChars += len(data)
		e.session.Messages = append(e.session.Messages[:idx], e.session.Messages[idx+1:]...)
		removed++
	}

	if removed > 0 {
		// Log but don't fail, grounded on the teacher's compact.go
		// comment for the same tradeoff.
		logging.Logger.Info().
			Str("component", "agent").
			Int("messages_removed", removed).
			Int("estimated_tokens_removed", removedChars/4).
			Msg("context trimming removed oldest messages")
	}
}

func firstNonSystemIndex(messages []types.Message) int {
	for i, m := range messages {
		if m.Role != types.RoleSystem {
			return i
		}
	}
	return -1
}

func countNonSystem(messages []types.Message) int {
	n := 0
	for _, m := range messages {
		if m.Role != types.RoleSystem {
			n++
		}
	}
	return n
}
