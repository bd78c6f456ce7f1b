package agent

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/memory-service/memoryd/internal/store"
	"github.com/memory-service/memoryd/internal/vector"
	"github.com/memory-service/memoryd/pkg/types"
)

// scriptedProvider replays one canned reply per call, in order, simulating
// the extractor's init turn followed by an observation turn and a summary
// turn.
type scriptedProvider struct {
	replies   []string
	sessionID string
	call      int
}

func (p *scriptedProvider) ID() string        { return "scripted" }
func (p *scriptedProvider) SessionID() string { return p.sessionID }

func (p *scriptedProvider) Generate(ctx context.Context, history []*schema.Message) (*schema.Message, error) {
	content := p.replies[p.call]
	p.call++
	return &schema.Message{Role: schema.Assistant, Content: content}, nil
}

func TestStartSession_InitObservationAndSummary(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	vec, err := vector.NewEmbeddedBackend(st.DB(), constEmbedder{}, "", "")
	require.NoError(t, err)

	p := &scriptedProvider{
		sessionID: "scripted-mem-session",
		replies: []string{
			"", // init turn: no observation expected
			`<observation>
<type>discovery</type>
<title>Read the config loader</title>
<narrative>Looked at how settings.json is parsed.</narrative>
<fact>JSONC comments are stripped before unmarshal</fact>
<file_read>/tmp/a.ts</file_read>
</observation>`,
			`<summary>
<request>Understand settings loading</request>
<investigated>the JSONC parser</investigated>
<learned>comments are stripped via tidwall/jsonc</learned>
<completed>confirmed the precedence chain</completed>
<next_steps>none</next_steps>
<notes>straightforward</notes>
</summary>`,
		},
	}

	session, err := st.CreateSession("content-1", "memoryd", "understand settings loading")
	require.NoError(t, err)

	obsMsg, err := st.EnqueueObservationMessage(session.ID, "Read", nil, nil, 1, "/tmp")
	require.NoError(t, err)
	sumMsg, err := st.EnqueueSummaryMessage(session.ID, 2, "/tmp", "done")
	require.NoError(t, err)

	messages := make(chan *types.PendingMessage, 2)
	messages <- obsMsg
	messages <- sumMsg
	close(messages)

	ag := New(st, vec, p, nil, types.TruncationConfig{})
	require.NoError(t, ag.StartSession(context.Background(), session, messages))

	require.Equal(t, StateDone, ag.State())

	got, err := st.GetSession(session.ID)
	require.NoError(t, err)
	require.Equal(t, types.SessionCompleted, got.Status)
	require.NotNil(t, got.MemorySessionID)
	require.Equal(t, "scripted-mem-session", *got.MemorySessionID)

	obsRows, err := st.SearchByText("config loader", "memoryd", 10)
	require.NoError(t, err)
	require.Len(t, obsRows, 1)
	require.Equal(t, types.ObsDiscovery, obsRows[0].Type)
	require.Contains(t, obsRows[0].FilesRead, "/tmp/a.ts")

	stats, err := vec.GetStats(context.Background())
	require.NoError(t, err)
	// narrative + fact_0 from the observation, plus up to six summary fields.
	require.GreaterOrEqual(t, stats.DocCount, 2)
}

// constEmbedder returns a fixed-size zero vector; the test only checks that
// documents were created, not their ranking.
type constEmbedder struct{}

func (constEmbedder) Dimensions() int               { return 4 }
func (constEmbedder) Embed(string) ([]float32, error) { return []float32{0, 0, 0, 0}, nil }
