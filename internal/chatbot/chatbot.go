package chatbot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"LocalChat/internal/backend"
	"LocalChat/internal/sanitize"
	"LocalChat/internal/session"
	"LocalChat/internal/telemetry"
)

// NoResponse replaces a reply whose envelope carried no content
const NoResponse = "[No response]"

// DefaultTimeout bounds a single inference call when Options.Timeout is zero
const DefaultTimeout = 300 * time.Second

// Store is the durable turn log
type Store interface {
	Append(ctx context.Context, turn session.Turn) error
	LoadAll(ctx context.Context) ([]session.Turn, error)
}

// Inference sends a conversation to a model and returns its reply
type Inference interface {
	Chat(ctx context.Context, model string, messages []backend.OllamaMessage) (*backend.ChatReply, error)
}

// Options configures a ChatBot
type Options struct {
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Meter   metric.Meter
}

// Reply is the outcome of a successful inference call
type Reply struct {
	Turn      session.Turn
	Format    session.Format
	Reasoning []string // segments stripped from the raw reply
}

// ChatBot owns the live conversation. It runs one submit at a time; a second
// submit while a call is in flight is rejected with KindBusy.
type ChatBot struct {
	store   Store
	llm     Inference
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer

	duration metric.Float64Histogram
	outcomes metric.Int64Counter

	mu      sync.Mutex
	turns   []session.Turn
	state   session.State
	model   string
	lastErr error
}

// New creates a ChatBot. Call Initialize before the first Submit to load
// the stored history.
func New(store Store, llm Inference, opts Options) *ChatBot {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	cb := &ChatBot{
		store:   store,
		llm:     llm,
		timeout: opts.Timeout,
		logger:  telemetry.Logger(opts.Logger),
		tracer:  telemetry.Tracer(opts.Tracer),
		model:   opts.Model,
		turns:   []session.Turn{},
		state:   session.StateIdle,
	}

	meter := telemetry.Meter(opts.Meter)
	var err error
	cb.duration, err = meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err != nil {
		cb.logger.Warn("failed to create histogram", "error", err)
	}
	cb.outcomes, err = meter.Int64Counter(
		"chat.submit.outcome",
		metric.WithDescription("Submit results by outcome kind"),
	)
	if err != nil {
		cb.logger.Warn("failed to create counter", "error", err)
	}

	return cb
}

// Initialize replaces the in-memory conversation with the stored history
func (cb *ChatBot) Initialize(ctx context.Context) (session.Snapshot, error) {
	turns, err := cb.store.LoadAll(ctx)
	if err != nil {
		cb.logger.Error("failed to load history", "error", err)
		return cb.Snapshot(), fmt.Errorf("failed to load history: %w", err)
	}

	cb.mu.Lock()
	cb.turns = turns
	cb.state = session.StateIdle
	cb.mu.Unlock()

	cb.logger.Info("loaded history", "turns", len(turns))
	return cb.Snapshot(), nil
}

// SetModel selects the model for the next submit. The id is not checked
// against the catalog; an unknown model fails at the server.
func (cb *ChatBot) SetModel(id string) {
	cb.mu.Lock()
	cb.model = id
	cb.mu.Unlock()
	cb.logger.Info("model selected", "model", id)
}

// Model returns the selected model
func (cb *ChatBot) Model() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.model
}

// State returns the current state
func (cb *ChatBot) State() session.State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// LastError returns the error of the most recent failed submit cycle
func (cb *ChatBot) LastError() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.lastErr
}

// Snapshot returns a copy of the conversation and its state
func (cb *ChatBot) Snapshot() session.Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return session.Snapshot{
		Turns: slices.Clone(cb.turns),
		State: cb.state,
		Model: cb.model,
	}
}

// Submit records userText as a user turn and starts the inference call in
// the background. Validation, busy and user-turn storage failures are
// returned directly; everything after that is delivered through the Pending.
//
// The call is detached from ctx cancellation and bounded only by the
// configured timeout.
func (cb *ChatBot) Submit(ctx context.Context, userText string) (*Pending, error) {
	if strings.TrimSpace(userText) == "" {
		cb.record(ctx, KindInvalidInput)
		return nil, &SubmitError{Kind: KindInvalidInput, Message: "message is empty"}
	}

	cb.mu.Lock()
	if cb.state != session.StateIdle {
		cb.mu.Unlock()
		cb.record(ctx, KindBusy)
		return nil, &SubmitError{Kind: KindBusy, Message: "a reply is still pending"}
	}
	cb.setStateLocked(session.StateAwaitingResponse)
	cb.mu.Unlock()

	turn := session.NewTurn(session.RoleUser, userText)
	if err := cb.store.Append(ctx, turn); err != nil {
		serr := &SubmitError{Kind: KindStorage, Message: "failed to save your message", Err: err}
		cb.fail(ctx, serr)
		return nil, serr
	}

	cb.mu.Lock()
	cb.turns = append(cb.turns, turn)
	messages := toMessages(cb.turns)
	model := cb.model
	cb.mu.Unlock()

	p := newPending()
	go cb.complete(context.WithoutCancel(ctx), p, model, messages)
	return p, nil
}

// Send submits userText and waits for the reply
func (cb *ChatBot) Send(ctx context.Context, userText string) (Reply, error) {
	p, err := cb.Submit(ctx, userText)
	if err != nil {
		return Reply{}, err
	}
	return p.Wait()
}

func (cb *ChatBot) complete(ctx context.Context, p *Pending, model string, messages []backend.OllamaMessage) {
	raw, err := cb.callModel(ctx, model, messages)
	if err != nil {
		serr := inferenceError(err)
		cb.fail(ctx, serr)
		p.finish(Reply{}, serr)
		return
	}

	visible, reasoning := sanitize.ExtractReasoning(raw)
	if len(reasoning) > 0 {
		cb.logger.Debug("model reasoning removed", "model", model, "reasoning_segments", reasoning)
	}

	turn := session.NewTurn(session.RoleAssistant, visible)
	reply := Reply{
		Turn:      turn,
		Format:    sanitize.ClassifyFormat(visible),
		Reasoning: reasoning,
	}

	storeErr := cb.store.Append(ctx, turn)

	// the reply is kept in memory even when it could not be stored
	cb.mu.Lock()
	cb.turns = append(cb.turns, turn)
	cb.mu.Unlock()

	if storeErr != nil {
		serr := &SubmitError{Kind: KindStorage, Message: "failed to save the reply", Err: storeErr}
		cb.fail(ctx, serr)
		p.finish(reply, serr)
		return
	}

	cb.mu.Lock()
	cb.lastErr = nil
	cb.setStateLocked(session.StateIdle)
	cb.mu.Unlock()

	cb.record(ctx, 0)
	p.finish(reply, nil)
}

// callModel issues the chat request and returns the raw assistant content
func (cb *ChatBot) callModel(ctx context.Context, model string, messages []backend.OllamaMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, cb.timeout)
	defer cancel()

	ctx, span := cb.tracer.Start(ctx, "ollama_api_call", trace.WithAttributes(
		attribute.String("llm.model", model),
		attribute.Int("llm.messages", len(messages)),
	))
	defer span.End()

	start := time.Now()
	resp, err := cb.llm.Chat(ctx, model, messages)
	if cb.duration != nil {
		cb.duration.Record(ctx, float64(time.Since(start).Milliseconds()))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if !resp.HasContent {
		cb.logger.Warn("response carried no message content", "model", model)
		return NoResponse, nil
	}
	return resp.Content, nil
}

// fail passes through the one-shot Error state and returns to Idle
func (cb *ChatBot) fail(ctx context.Context, serr *SubmitError) {
	cb.logger.Error("submit failed", "kind", serr.Kind.String(), "error", serr)

	cb.mu.Lock()
	cb.lastErr = serr
	cb.setStateLocked(session.StateError)
	cb.setStateLocked(session.StateIdle)
	cb.mu.Unlock()

	cb.record(ctx, serr.Kind)
}

func (cb *ChatBot) setStateLocked(next session.State) {
	if cb.state == next {
		return
	}
	cb.logger.Debug("state changed", "from", cb.state.String(), "to", next.String())
	cb.state = next
}

// record counts a submit outcome; kind 0 means success
func (cb *ChatBot) record(ctx context.Context, kind Kind) {
	if cb.outcomes == nil {
		return
	}
	outcome := "ok"
	if kind != 0 {
		outcome = kind.String()
	}
	cb.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", outcome)))
}

func toMessages(turns []session.Turn) []backend.OllamaMessage {
	messages := make([]backend.OllamaMessage, len(turns))
	for i, t := range turns {
		messages[i] = backend.OllamaMessage{
			Role:    string(t.Role),
			Content: t.Content,
		}
	}
	return messages
}

// Pending is the handle for one in-flight submit
type Pending struct {
	done  chan struct{}
	reply Reply
	err   error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) finish(reply Reply, err error) {
	p.reply = reply
	p.err = err
	close(p.done)
}

// Done is closed once the result is available
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the call finishes. On a KindStorage error for the reply
// the returned Reply is still populated.
func (p *Pending) Wait() (Reply, error) {
	<-p.done
	return p.reply, p.err
}
