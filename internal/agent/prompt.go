package agent

import (
	"fmt"

	"github.com/memory-service/memoryd/pkg/types"
)

// truncateBlobChars is the per-field byte budget for tool_input/tool_output
// embedded in an observation prompt, per spec.md §4.C.
const truncateBlobChars = 4000

// buildObservationPrompt renders one pending observation message into the
// user turn the extractor sees.
func buildObservationPrompt(msg *types.PendingMessage) string {
	return fmt.Sprintf(`<tool_invocation>
<tool_name>%s</tool_name>
<cwd>%s</cwd>
<prompt_number>%d</prompt_number>
<tool_input>%s</tool_input>
<tool_output>%s</tool_output>
</tool_invocation>

Emit zero or more <observation> elements for anything in this tool
invocation worth remembering. If nothing is worth recording, respond with
no <observation> elements.`,
		msg.ToolName, msg.Cwd, msg.PromptNumber,
		truncateBlob(string(msg.ToolInput)),
		truncateBlob(string(msg.ToolResponse)))
}

// buildSummaryPrompt renders a session-stop pending message into the
// summary-extraction user turn.
func buildSummaryPrompt(session *types.Session, msg *types.PendingMessage) string {
	return fmt.Sprintf(`<session_stop>
<user_prompt>%s</user_prompt>
<last_assistant_message>%s</last_assistant_message>
</session_stop>

The session is ending. Emit a single <summary> element rolling up what was
requested, investigated, learned, and completed, plus any next steps and
notes. If there is genuinely nothing to summarize, respond with no
<summary> element.`,
		session.UserPrompt, truncateBlob(msg.LastAssistantMessage))
}

// truncateBlob bounds a tool_input/tool_output blob to truncateBlobChars,
// preserving the prefix (where the structurally interesting fields usually
// sit for JSON payloads) and recording how much was cut.
func truncateBlob(s string) string {
	if len(s) <= truncateBlobChars {
		return s
	}
	cut := len(s) - truncateBlobChars
	return s[:truncateBlobChars] + fmt.Sprintf("[TRUNCATED %d chars]", cut)
}
