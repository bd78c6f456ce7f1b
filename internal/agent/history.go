package agent

import (
	"github.com/cloudwego/eino/schema"

	"github.com/memory-service/memoryd/internal/logging"
)

// truncateHistory enforces the conversation length bounds from
// settings.json's truncation config, per spec.md §4.C/§8: the system
// message (index 0) is always preserved, and truncation keeps the most
// recent maxMessages entries, dropping everything else from the middle.
// Per spec.md §4.C, "truncation is logged but silent to the LLM" — the
// drop is reported through logging.*, never spliced into the history
// sent back to the model.
func truncateHistory(history []*schema.Message, maxMessages, maxTokens int) []*schema.Message {
	if maxMessages <= 0 {
		maxMessages = 40
	}

	if len(history) > maxMessages {
		history = truncateByCount(history, maxMessages)
	}

	if maxTokens > 0 {
		dropped := 0
		for estimateTokens(history) > maxTokens && len(history) > 2 {
			// Drop the oldest non-system message; index 1 is the oldest
			// message after the preserved system message at index 0.
			history = append(history[:1], history[2:]...)
			dropped++
		}
		if dropped > 0 {
			logging.Info().Int("dropped", dropped).Msg("truncated conversation history to stay within token budget")
		}
	}

	return history
}

// truncateByCount keeps the system message plus the tail of the
// conversation, dropping everything in between and logging the count.
func truncateByCount(history []*schema.Message, maxMessages int) []*schema.Message {
	if len(history) <= maxMessages {
		return history
	}

	sys := history[0]
	keepFrom := len(history) - (maxMessages - 1)
	if keepFrom < 1 {
		keepFrom = 1
	}
	dropped := keepFrom - 1

	out := make([]*schema.Message, 0, maxMessages)
	out = append(out, sys)
	out = append(out, history[keepFrom:]...)

	logging.Warn().Int("dropped", dropped).Int("kept", len(out)).Msg("truncated conversation history to stay within message-count budget")

	return out
}

// estimateTokens applies the project-wide ceil(chars/4) approximation (per
// SPEC_FULL.md's discovery_tokens accounting) summed across the whole
// conversation.
func estimateTokens(history []*schema.Message) int {
	total := 0
	for _, m := range history {
		total += estimateTokensForText(m.Content)
	}
	return total
}

func estimateTokensForText(s string) int {
	if len(s) == 0 {
		return 0
	}
	return (len(s) + 3) / 4
}
