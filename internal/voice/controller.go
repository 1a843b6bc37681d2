package voice

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soyeahso/foodvoice/internal/agent"
	"github.com/soyeahso/foodvoice/internal/config"
	"github.com/soyeahso/foodvoice/internal/domain"
	"github.com/soyeahso/foodvoice/internal/hooks"
	"github.com/soyeahso/foodvoice/internal/llm"
	"github.com/soyeahso/foodvoice/internal/logging"
	"github.com/soyeahso/foodvoice/internal/order"
	"github.com/soyeahso/foodvoice/internal/stt"
	"github.com/soyeahso/foodvoice/internal/tts"
)

// ErrClientClosed is returned by a Sender once the client connection is gone.
var ErrClientClosed = errors.New("client connection closed")

// Sender delivers events to the client.
type Sender interface {
	Send(v any) error
}

// Bridge is a live transcription stream.
type Bridge interface {
	Signals() <-chan stt.Signal
	Pump(ctx context.Context, src stt.Source, active func() bool) error
	Close() error
}

// OpenFunc opens a transcription stream.
type OpenFunc func(ctx context.Context, opts stt.Options) (Bridge, error)

// DialerOpener adapts an stt.Dialer to an OpenFunc.
func DialerOpener(d *stt.Dialer) OpenFunc {
	return func(ctx context.Context, opts stt.Options) (Bridge, error) {
		b, err := d.Open(ctx, opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// Responder generates the assistant's reply to one utterance.
type Responder interface {
	GenerateReply(ctx context.Context, history []llm.Message, utterance string, opts agent.ReplyOptions, tc *agent.ToolContext) (*agent.Reply, error)
}

// Speaker turns reply text into audio. A nil result means text only.
type Speaker interface {
	Synthesize(ctx context.Context, text string, voice tts.VoiceConfig) []byte
}

// TranscriptRecorder persists conversations.
type TranscriptRecorder interface {
	StartConversation(ctx context.Context, sessionID string) (string, error)
	AppendMessages(ctx context.Context, conversationID string, msgs []llm.Message) error
	EndConversation(ctx context.Context, conversationID string) error
}

// OrderStarter executes confirmed orders in the background.
type OrderStarter interface {
	Start(ctx context.Context, sessionID string, d *order.Draft, notify func(order.Update)) (string, error)
}

// Deps are the collaborators of a Controller. Engine and Open are
// required; the rest are optional.
type Deps struct {
	Engine      Responder
	Open        OpenFunc
	Speech      Speaker
	Orders      OrderStarter
	Transcripts TranscriptRecorder
	Hooks       *hooks.Manager
	Voice       config.VoiceConfig
	Log         *logging.Logger
}

type turn struct {
	text      string
	confirmed bool
	gen       uint64
}

// Controller drives one session: it handles client messages, runs the
// transcription bridge and processes turns one at a time on a single worker.
type Controller struct {
	sess *Session
	out  Sender
	deps Deps
	log  *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	turns      chan turn
	busy       atomic.Bool
	bridges    sync.WaitGroup
	workerDone chan struct{}
	closeOnce  sync.Once
}

// NewController creates a controller for sess writing to out.
func NewController(sess *Session, out Sender, deps Deps) *Controller {
	queue := deps.Voice.MaxQueuedTurns
	if queue <= 0 {
		queue = 1
	}
	return &Controller{
		sess:       sess,
		out:        out,
		deps:       deps,
		log:        deps.Log.Sub("voice").With("sessionId", sess.ID),
		turns:      make(chan turn, queue),
		workerDone: make(chan struct{}),
	}
}

// Session returns the controlled session.
func (c *Controller) Session() *Session {
	return c.sess
}

// Start announces the session to the client and starts the turn worker.
// ctx bounds the session; cancelling it has the same effect as Close.
func (c *Controller) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	go c.worker()

	ev := NewEvent(EventConnected)
	ev.SessionID = c.sess.ID
	c.send(ev)
	c.deps.Hooks.EmitAsync(c.ctx, hooks.EventSessionStart, map[string]any{"sessionId": c.sess.ID})
	c.log.Info().Msg("session started")
}

// Close tears the session down: the conversation is deactivated, the
// bridge closed, buffered audio discarded and the worker stopped after the
// turn in flight.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		b, convID := c.sess.stop()
		if c.cancel != nil {
			c.cancel()
		}
		if b != nil {
			_ = b.Close()
		}
		c.sess.Buffer().Clear()
		c.endTranscript(convID)
		c.deps.Hooks.EmitAsync(context.Background(), hooks.EventSessionEnd, map[string]any{"sessionId": c.sess.ID})
		c.log.Info().Msg("session closed")
	})
}

// Wait blocks until the worker and bridge goroutines have exited. Call it
// after Close.
func (c *Controller) Wait() {
	<-c.workerDone
	c.bridges.Wait()
}

// HandleAudio buffers one binary frame from the client.
func (c *Controller) HandleAudio(chunk []byte) {
	if !c.sess.PushAudio(chunk) {
		c.log.Trace().Int("bytes", len(chunk)).Msg("dropping audio, conversation not active")
	}
}

// HandleMessage processes one JSON control message from the client.
func (c *Controller) HandleMessage(data []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Warn().Err(err).Msg("invalid client message")
		c.send(ErrorEvent("invalid message: " + err.Error()))
		return
	}

	switch msg.Type {
	case MsgStartConversation:
		c.startConversation()
	case MsgStopConversation:
		c.stopConversation()
	case MsgUpdateConfig:
		c.updateConfig(msg.Config)
	case MsgConfirmedOrder:
		text := msg.Message
		if text == "" {
			text = agent.ConfirmOrderMessage
		}
		c.enqueue(turn{text: text, confirmed: true, gen: c.sess.Generation()})
	default:
		c.log.Warn().Str("type", msg.Type).Msg("ignoring unknown message type")
	}
}

func (c *Controller) startConversation() {
	if c.sess.Active() {
		c.log.Info().Msg("restarting conversation")
		b, convID := c.sess.stop()
		if b != nil {
			_ = b.Close()
		}
		c.endTranscript(convID)
	}

	gen := c.sess.begin()
	if !c.busy.Load() {
		c.transition(StateListening)
	}
	c.openTranscript(gen)

	c.send(NewEvent(EventConversationStarted))
	c.deps.Hooks.EmitAsync(c.ctx, hooks.EventConversationStart, map[string]any{"sessionId": c.sess.ID})
	c.log.Info().Msg("conversation started")

	c.bridges.Add(1)
	go c.runBridge(gen)
}

func (c *Controller) stopConversation() {
	_, convID := c.sess.stop()
	if !c.busy.Load() {
		c.transition(StateIdle)
	}
	c.endTranscript(convID)

	c.send(NewEvent(EventConversationStopped))
	c.deps.Hooks.EmitAsync(c.ctx, hooks.EventConversationStop, map[string]any{"sessionId": c.sess.ID})
	c.log.Info().Msg("conversation stopped")
}

func (c *Controller) updateConfig(update map[string]any) {
	cfg, err := c.sess.UpdateConfig(update)
	if err != nil {
		c.log.Warn().Err(err).Msg("config update partly rejected")
		c.send(ErrorEvent("invalid config: " + err.Error()))
	}
	ev := NewEvent(EventConfigUpdated)
	ev.Config = &cfg
	c.send(ev)
	c.log.Info().Int("keys", len(update)).Msg("config updated")
}

func (c *Controller) runBridge(gen uint64) {
	defer c.bridges.Done()

	cfg := c.sess.Config()
	b, err := c.deps.Open(c.ctx, stt.Options{
		SampleRate:   cfg.SampleRate,
		Encoding:     cfg.Encoding,
		PollInterval: c.deps.Voice.PollInterval(),
	})
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.log.Error().Err(err).Msg("transcription connect failed")
		c.abandon(gen, "Failed to connect to transcription service: "+err.Error())
		return
	}
	if !c.sess.attach(gen, b) {
		_ = b.Close()
		return
	}

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		err := b.Pump(c.ctx, c.sess.Buffer(), func() bool { return c.sess.current(gen) })
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, stt.ErrBridgeClosed) {
			c.log.Warn().Err(err).Msg("audio forwarding stopped")
		}
		_ = b.Close()
		c.sess.detach(gen, b)
	}()

	for sig := range b.Signals() {
		c.handleSignal(gen, sig)
	}
	<-pumpDone
}

func (c *Controller) handleSignal(gen uint64, sig stt.Signal) {
	if !c.sess.current(gen) {
		return
	}

	switch sig.Kind {
	case stt.TurnStarted:
		c.send(NewEvent(EventSpeechStarted))
	case stt.InterimTranscript:
		ev := NewEvent(EventInterimTranscript)
		ev.Transcript = sig.Text
		final := false
		ev.IsFinal = &final
		c.send(ev)
	case stt.FinalTranscript:
		c.log.Info().Str("transcript", sig.Text).Msg("user said")
		ev := NewEvent(EventUserSpeech)
		ev.Transcript = sig.Text
		c.send(ev)
		c.enqueue(turn{text: sig.Text, gen: gen})
	case stt.ConnectionError:
		c.abandon(gen, "Transcription connection lost: "+sig.Reason)
	}
}

// abandon ends conversation gen after a bridge failure. The session stays
// usable and may start a new conversation.
func (c *Controller) abandon(gen uint64, msg string) {
	if !c.sess.current(gen) {
		return
	}
	_, convID := c.sess.stop()
	c.endTranscript(convID)
	c.fail(msg)
}

func (c *Controller) enqueue(t turn) {
	select {
	case c.turns <- t:
	default:
		c.log.Warn().Str("transcript", t.text).Msg("turn queue full, dropping utterance")
		c.send(ErrorEvent("Still working on earlier requests, please repeat that in a moment"))
	}
}

func (c *Controller) worker() {
	defer close(c.workerDone)
	for {
		select {
		case <-c.ctx.Done():
			return
		case t := <-c.turns:
			if c.ctx.Err() != nil {
				return
			}
			if t.gen != c.sess.Generation() {
				c.log.Info().Str("transcript", t.text).Msg("dropping utterance from an earlier conversation")
				continue
			}
			c.runTurn(t)
		}
	}
}

func (c *Controller) runTurn(t turn) {
	c.busy.Store(true)
	defer c.busy.Store(false)

	start := time.Now()
	convID := c.sess.ConversationID()
	c.transition(StateProcessing)
	c.deps.Hooks.EmitAsync(c.ctx, hooks.EventTurnStart, map[string]any{
		"sessionId": c.sess.ID, "transcript": t.text, "confirmed": t.confirmed,
	})
	c.send(NewEvent(EventAgentProcessing))

	if t.confirmed {
		c.executePendingOrder()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), c.deps.Voice.TurnTimeout())
	defer cancel()

	cfg := c.sess.Config()
	tc := &agent.ToolContext{SessionID: c.sess.ID, State: c.sess, Progress: c.progress}
	reply, err := c.deps.Engine.GenerateReply(ctx, c.sess.Messages(), t.text, agent.ReplyOptions{Model: cfg.LLMModel}, tc)
	if err != nil {
		c.log.Error().Err(err).Msg("turn failed")
		c.transition(StateError)
		c.send(ErrorEvent("Failed to generate reply: " + err.Error()))
		resp := NewEvent(EventAgentResponse)
		resp.Response = agent.ErrorReply
		c.send(resp)
		c.settle()
		c.deps.Hooks.EmitAsync(c.ctx, hooks.EventTurnEnd, map[string]any{
			"sessionId": c.sess.ID, "error": err.Error(),
		})
		return
	}

	if c.sess.Generation() == t.gen {
		c.sess.AppendMessages(reply.Messages...)
		c.persist(ctx, convID, reply.Messages)
	} else {
		c.log.Info().Msg("conversation restarted during turn, reply not kept in history")
	}

	c.transition(StateSpeaking)
	if reply.UIUpdate != nil {
		ev := NewEvent(EventUIUpdate)
		ev.Response = reply.UIUpdate
		c.send(ev)
	}
	resp := NewEvent(EventAgentResponse)
	resp.Response = reply.Text
	c.send(resp)

	if !reply.Fallback && reply.Text != "" && c.deps.Speech != nil {
		audio := c.deps.Speech.Synthesize(ctx, reply.Text, tts.VoiceConfig{VoiceID: cfg.TTSVoice, ModelID: cfg.TTSModel})
		if len(audio) > 0 {
			ev := NewEvent(EventAgentSpeaking)
			ev.Audio = audio
			c.send(ev)
		}
	}
	c.settle()

	c.log.Info().
		Int("rounds", reply.Rounds).
		Bool("fallback", reply.Fallback).
		Dur("duration", time.Since(start)).
		Msg("turn complete")
	c.deps.Hooks.EmitAsync(c.ctx, hooks.EventTurnEnd, map[string]any{
		"sessionId": c.sess.ID, "rounds": reply.Rounds, "fallback": reply.Fallback,
		"durationMs": time.Since(start).Milliseconds(),
	})
}

func (c *Controller) executePendingOrder() {
	pending := c.sess.TakePendingOrder()
	if pending == nil {
		c.log.Info().Msg("order confirmed with nothing pending")
		return
	}
	c.deps.Hooks.EmitAsync(c.ctx, hooks.EventOrderConfirmed, map[string]any{
		"sessionId":  c.sess.ID,
		"restaurant": pending.Restaurant.Name,
		"platform":   pending.DeliveryPlatform,
		"totalPrice": pending.TotalPrice,
	})
	if c.deps.Orders == nil {
		c.log.Warn().Msg("order execution not configured, skipping")
		return
	}

	draft, err := order.FromConfirmation(pending, c.sess.Preferences())
	if err != nil {
		c.orderUpdate(order.Update{Status: domain.OrderFailed, Error: err.Error()})
		return
	}
	id, err := c.deps.Orders.Start(context.WithoutCancel(c.ctx), c.sess.ID, draft, c.orderUpdate)
	if err != nil {
		c.log.Error().Err(err).Msg("starting order failed")
		c.orderUpdate(order.Update{Status: domain.OrderFailed, Error: err.Error()})
		return
	}
	c.log.Info().Str("orderId", id).Str("platform", pending.DeliveryPlatform).Msg("order started")
}

func (c *Controller) orderUpdate(u order.Update) {
	ev := NewEvent(EventOrderUpdate)
	ev.OrderID = u.OrderID
	ev.Status = string(u.Status)
	ev.Error = u.Error
	if u.Summary != nil {
		ev.Result = u.Summary
	}
	c.send(ev)

	if u.Status == domain.OrderSucceeded || u.Status == domain.OrderFailed {
		c.deps.Hooks.EmitAsync(context.Background(), hooks.EventOrderExecuted, map[string]any{
			"sessionId": c.sess.ID, "orderId": u.OrderID, "status": string(u.Status),
		})
	}
}

func (c *Controller) progress(p agent.ProgressEvent) {
	ev := NewEvent(EventFunctionCall)
	ev.Function = p.Function
	ev.Status = p.Status
	ev.Data = p.Data
	ev.Result = p.Result
	ev.Error = p.Error
	c.send(ev)
}

// fail reports an error to the client. The state machine passes through
// error unless a turn is in flight, which settles the state itself.
func (c *Controller) fail(msg string) {
	if !c.busy.Load() {
		c.transition(StateError)
		c.settle()
	}
	c.send(ErrorEvent(msg))
}

// settle returns to listening while the conversation is active, idle otherwise.
func (c *Controller) settle() {
	if c.sess.Active() {
		c.transition(StateListening)
	} else {
		c.transition(StateIdle)
	}
}

func (c *Controller) transition(to State) {
	if err := c.sess.Transition(to); err != nil {
		c.log.Warn().Err(err).Msg("rejected state change")
	}
}

func (c *Controller) send(ev Event) {
	if err := c.out.Send(ev); err != nil {
		if errors.Is(err, ErrClientClosed) {
			c.log.Debug().Str("event", ev.Type).Msg("client gone, event dropped")
			return
		}
		c.log.Warn().Err(err).Str("event", ev.Type).Msg("failed to send event")
	}
}

func (c *Controller) openTranscript(gen uint64) {
	if c.deps.Transcripts == nil {
		return
	}
	id, err := c.deps.Transcripts.StartConversation(c.ctx, c.sess.ID)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to record conversation start")
		return
	}
	c.sess.setConversationID(gen, id)
}

func (c *Controller) persist(ctx context.Context, convID string, msgs []llm.Message) {
	if c.deps.Transcripts == nil || convID == "" || len(msgs) == 0 {
		return
	}
	if err := c.deps.Transcripts.AppendMessages(ctx, convID, msgs); err != nil {
		c.log.Warn().Err(err).Str("conversationId", convID).Msg("failed to record turn")
	}
}

func (c *Controller) endTranscript(convID string) {
	if c.deps.Transcripts == nil || convID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.deps.Transcripts.EndConversation(ctx, convID); err != nil {
		c.log.Warn().Err(err).Str("conversationId", convID).Msg("failed to record conversation end")
	}
}
