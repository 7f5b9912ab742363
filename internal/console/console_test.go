package console

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LocalChat/internal/backend"
	"LocalChat/internal/catalog"
	"LocalChat/internal/chatbot"
	"LocalChat/internal/render"
	"LocalChat/internal/session"
	"LocalChat/internal/store"
)

// scriptedReader replays lines and then reports end of input
type scriptedReader struct {
	lines   []string
	prompts int
}

func (r *scriptedReader) Prompt(string) (string, error) {
	r.prompts++
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

type fixture struct {
	bot   *chatbot.ChatBot
	store *store.Store
	out   *bytes.Buffer
	con   *Console
}

func newFixture(t *testing.T, chat http.HandlerFunc, lines ...string) *fixture {
	t.Helper()
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			io.WriteString(w, `{"models":[{"name":"m1"},{"name":"m2"}]}`)
		case "/api/chat":
			chat(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "chat.db"), "default", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return newFixtureWithStore(t, srv.URL, st, lines...)
}

func newFixtureWithStore(t *testing.T, url string, st *store.Store, lines ...string) *fixture {
	t.Helper()
	client := backend.NewClient(url, nil, nil)
	bot := chatbot.New(st, client, chatbot.Options{Model: "m1"})
	_, err := bot.Initialize(context.Background())
	require.NoError(t, err)

	r, err := render.New(render.DefaultOptions().WithStyle(render.StyleNoTTY))
	require.NoError(t, err)

	out := &bytes.Buffer{}
	con := New(bot, catalog.New(client, nil, nil), r, &scriptedReader{lines: lines}, out, nil)
	return &fixture{bot: bot, store: st, out: out, con: con}
}

func answer(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": content},
			"done":    true,
		})
	}
}

func TestRunConversation(t *testing.T) {
	f := newFixture(t, answer("<think>hmm</think>hello there"), "hi", "/quit", "never read")

	require.NoError(t, f.con.Run(context.Background()))

	out := f.out.String()
	assert.Contains(t, out, "Model: m1")
	assert.Contains(t, out, ThinkingIndicator)
	assert.Contains(t, out, "Bot: hello there")
	assert.NotContains(t, out, "hmm")
	assert.Contains(t, out, "Goodbye!")

	turns, err := f.store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "hello there", turns[1].Content)
}

func TestReasoningOnlyReplyShowsPlaceholder(t *testing.T) {
	f := newFixture(t, answer("<think>nothing to say</think>"), "hi")

	require.NoError(t, f.con.Run(context.Background()))

	out := f.out.String()
	assert.Contains(t, out, ThinkingIndicator+"\nBot: "+EmptyReply)
	assert.NotContains(t, out, "nothing to say")

	turns, err := f.store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Empty(t, turns[1].Content)
}

func TestRichReplyIsRendered(t *testing.T) {
	f := newFixture(t, answer("# Plan\n\n- **one**\n- two"), "go")

	require.NoError(t, f.con.Run(context.Background()))

	out := f.out.String()
	assert.Contains(t, out, "Plan")
	assert.Contains(t, out, "one")
	assert.NotContains(t, out, "Bot: # Plan\n\n- **one**")
}

func TestModelCommands(t *testing.T) {
	var got atomic.Value
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		var req backend.OllamaRequest
		json.NewDecoder(r.Body).Decode(&req)
		got.Store(req.Model)
		answer("ok")(w, r)
	}, "/models", "/model m2", "/model mystery", "/model m2", "hi")

	require.NoError(t, f.con.Run(context.Background()))

	out := f.out.String()
	assert.Contains(t, out, "Available models:")
	assert.Contains(t, out, "1. m1 (current)")
	assert.Contains(t, out, "2. m2")
	assert.Contains(t, out, "Model set to: m2")
	assert.Contains(t, out, "Warning: mystery is not in the model list")
	assert.Equal(t, "m2", f.bot.Model())
	assert.Equal(t, "m2", got.Load())
}

func TestErrorsAreShown(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"model not found"}`)
	}, "hi", "/bogus")

	require.NoError(t, f.con.Run(context.Background()))

	out := f.out.String()
	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "model not found")
	assert.Contains(t, out, "unknown command: /bogus")
	assert.Equal(t, session.StateIdle, f.bot.State())
}

func TestBlankInputIgnored(t *testing.T) {
	f := newFixture(t, answer("unused"), "", "   ", "\t")

	require.NoError(t, f.con.Run(context.Background()))

	assert.NotContains(t, f.out.String(), ThinkingIndicator)
	turns, err := f.store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestHistoryShownOnStart(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "chat.db"), "default", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Append(ctx, session.NewTurn(session.RoleUser, "what is 2+2")))
	require.NoError(t, st.Append(ctx, session.NewTurn(session.RoleAssistant, "4")))

	f := newFixtureWithStore(t, "http://127.0.0.1:1", st, "/history")
	require.NoError(t, f.con.Run(ctx))

	out := f.out.String()
	assert.Contains(t, out, "You: what is 2+2")
	assert.Contains(t, out, "Bot: 4")
	assert.Contains(t, out, "2 turns in history")
}

func TestHelp(t *testing.T) {
	f := newFixture(t, answer("unused"), "/help", "/exit")

	require.NoError(t, f.con.Run(context.Background()))

	out := f.out.String()
	for _, cmd := range []string{"/models", "/model <id>", "/history", "/quit"} {
		assert.Contains(t, out, cmd)
	}
}
