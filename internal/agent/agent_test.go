package agent

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func TestTruncateHistoryPreservesSystemMessage(t *testing.T) {
	history := []*schema.Message{{Role: schema.System, Content: "policy"}}
	for i := 0; i < 10; i++ {
		history = append(history,
			&schema.Message{Role: schema.User, Content: "turn"},
			&schema.Message{Role: schema.Assistant, Content: "reply"},
		)
	}

	out := truncateHistory(history, 7, 0)

	if out[0].Role != schema.System || out[0].Content != "policy" {
		t.Fatalf("system message not preserved: %+v", out[0])
	}
	if len(out) > 7 {
		t.Fatalf("expected at most 7 messages, got %d", len(out))
	}
	for _, m := range out {
		if strings.Contains(m.Content, "TRUNCATED") {
			t.Fatalf("truncation must be silent to the LLM, but found a marker: %q", m.Content)
		}
	}
}

func TestTruncateHistoryNoopUnderLimit(t *testing.T) {
	history := []*schema.Message{
		{Role: schema.System, Content: "policy"},
		{Role: schema.User, Content: "hi"},
	}
	out := truncateHistory(history, 40, 0)
	if len(out) != 2 {
		t.Fatalf("expected no truncation, got %d messages", len(out))
	}
}

func TestTruncateHistoryRespectsTokenBudget(t *testing.T) {
	big := strings.Repeat("x", 4000)
	history := []*schema.Message{{Role: schema.System, Content: "policy"}}
	for i := 0; i < 5; i++ {
		history = append(history, &schema.Message{Role: schema.User, Content: big})
	}

	out := truncateHistory(history, 100, 1500)

	if estimateTokens(out) > 1500+estimateTokensForText(out[len(out)-1].Content) {
		t.Fatalf("token budget not approximately respected: %d tokens across %d messages", estimateTokens(out), len(out))
	}
	if out[0].Content != "policy" {
		t.Fatalf("system message dropped")
	}
}

func TestParseObservationsMultiple(t *testing.T) {
	reply := `Here is what I found:
<observation>
<type>bugfix</type>
<title>Fixed race in writer</title>
<narrative>The writer lacked a mutex.</narrative>
<fact>mutex added around flush</fact>
<fact>tests now pass</fact>
<file_modified>internal/store/store.go</file_modified>
</observation>
<observation>
<title>Untitled thought</title>
</observation>`

	obs := parseObservations(reply)
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	if obs[0].Type != "bugfix" {
		t.Fatalf("expected type bugfix, got %q", obs[0].Type)
	}
	if len(obs[0].Facts) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(obs[0].Facts))
	}
	if len(obs[0].FilesModified) != 1 || obs[0].FilesModified[0] != "internal/store/store.go" {
		t.Fatalf("unexpected files modified: %v", obs[0].FilesModified)
	}
	if obs[1].Type != "change" {
		t.Fatalf("expected default type 'change' for second observation, got %q", obs[1].Type)
	}
}

func TestParseObservationsEmptyReplyIsNotAnError(t *testing.T) {
	obs := parseObservations("Nothing worth recording here.")
	if len(obs) != 0 {
		t.Fatalf("expected zero observations, got %d", len(obs))
	}
}

func TestParseSummary(t *testing.T) {
	reply := `<summary>
<request>Add retry logic</request>
<investigated>existing backoff helper</investigated>
<learned>provider errors need classification</learned>
<completed>wired ClassifyError</completed>
<next_steps>add tests</next_steps>
</summary>`

	s := parseSummary(reply)
	if s == nil {
		t.Fatal("expected a parsed summary")
	}
	if s.Request != "Add retry logic" || s.NextSteps != "add tests" {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestParseSummaryNilWhenAbsent(t *testing.T) {
	if s := parseSummary("no summary tag at all"); s != nil {
		t.Fatalf("expected nil summary, got %+v", s)
	}
}

func TestTruncateBlobMarksDroppedChars(t *testing.T) {
	in := strings.Repeat("a", truncateBlobChars+500)
	out := truncateBlob(in)
	if !strings.Contains(out, "TRUNCATED 500 chars") {
		t.Fatalf("expected truncation marker with dropped count, got suffix %q", out[len(out)-40:])
	}
}

func TestEnrichFromBashCommandResolvesRelativePaths(t *testing.T) {
	paths := enrichFromBashCommand("rm -f build/out.tmp && touch build/.stamp", "/home/user/project")
	want := []string{"/home/user/project/build/out.tmp", "/home/user/project/build/.stamp"}
	if len(paths) != len(want) {
		t.Fatalf("expected %v, got %v", want, paths)
	}
	for i, p := range want {
		if paths[i] != p {
			t.Fatalf("expected %q at index %d, got %q", p, i, paths[i])
		}
	}
}

func TestEnrichFromBashCommandSkipsNonWriteCommands(t *testing.T) {
	paths := enrichFromBashCommand("cat README.md | grep foo", "/repo")
	if len(paths) != 0 {
		t.Fatalf("expected no paths for a read-only pipeline, got %v", paths)
	}
}

func TestEnrichFromBashCommandSkipsDynamicArgs(t *testing.T) {
	paths := enrichFromBashCommand("rm -rf $(mktemp -d)", "/repo")
	if len(paths) != 0 {
		t.Fatalf("expected dynamic command substitution to be skipped, got %v", paths)
	}
}
