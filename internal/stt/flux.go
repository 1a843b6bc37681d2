package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/foodvoice/internal/config"
	"github.com/soyeahso/foodvoice/internal/logging"
)

const (
	defaultPollInterval = 10 * time.Millisecond
	signalBuffer        = 64
)

// Dialer opens Flux streams.
type Dialer struct {
	url    string
	model  string
	apiKey string
	dialer websocket.Dialer
	log    *logging.Logger
}

// NewDialer creates a dialer from the stt config section.
func NewDialer(cfg config.STTConfig, log *logging.Logger) *Dialer {
	return &Dialer{
		url:    cfg.URL,
		model:  cfg.Model,
		apiKey: cfg.APIKey,
		dialer: websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    log.Sub("stt"),
	}
}

// StreamURL builds the upstream URL for the given options.
func (d *Dialer) StreamURL(opts Options) (string, error) {
	u, err := url.Parse(d.url)
	if err != nil {
		return "", fmt.Errorf("parse stt url: %w", err)
	}
	opts = d.resolve(opts)

	q := u.Query()
	q.Set("model", opts.Model)
	q.Set("sample_rate", strconv.Itoa(opts.SampleRate))
	q.Set("encoding", opts.Encoding)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// resolve fills unset stream options from the dialer config and defaults.
func (d *Dialer) resolve(opts Options) Options {
	if opts.Model == "" {
		opts.Model = d.model
	}
	if opts.Encoding == "" {
		opts.Encoding = config.DefaultEncoding
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = config.DefaultSampleRate
	}
	return opts
}

// Open dials the transcription service and starts reading its events.
func (d *Dialer) Open(ctx context.Context, opts Options) (*Bridge, error) {
	opts = d.resolve(opts)
	streamURL, err := d.StreamURL(opts)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	conn, resp, err := d.dialer.DialContext(ctx, streamURL, headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			if len(body) > 0 {
				return nil, fmt.Errorf("stt connect (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}
			return nil, fmt.Errorf("stt connect: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("stt connect: %w", err)
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	b := &Bridge{
		conn:    conn,
		signals: make(chan Signal, signalBuffer),
		done:    make(chan struct{}),
		poll:    poll,
		log:     d.log,
	}
	go b.readLoop()

	d.log.Info().Str("model", opts.Model).Int("sampleRate", opts.SampleRate).Msg("connected to transcription service")
	return b, nil
}

// Bridge is one live upstream stream. Send and Close are safe for
// concurrent use.
type Bridge struct {
	conn    *websocket.Conn
	signals chan Signal
	done    chan struct{}
	poll    time.Duration
	log     *logging.Logger

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	sent      atomic.Int64
}

// Signals returns the normalized event stream. It is closed when the
// upstream connection ends.
func (b *Bridge) Signals() <-chan Signal {
	return b.signals
}

// Sent reports how many audio chunks have been forwarded.
func (b *Bridge) Sent() int64 {
	return b.sent.Load()
}

// Send forwards one audio chunk as a binary frame.
func (b *Bridge) Send(chunk []byte) error {
	if b.closed.Load() {
		return ErrBridgeClosed
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("stt send: %w", err)
	}
	b.sent.Add(1)
	return nil
}

// Pump forwards audio from src every poll interval until active reports
// false, ctx ends or a send fails. Chunks drained in one poll are sent in
// order; active is rechecked before each send so nothing is forwarded after
// a stop.
func (b *Bridge) Pump(ctx context.Context, src Source, active func() bool) error {
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	for {
		if !active() {
			return nil
		}
		for _, chunk := range src.Drain() {
			if !active() {
				return nil
			}
			if err := b.Send(chunk); err != nil {
				return err
			}
			if n := b.sent.Load(); n%100 == 0 {
				b.log.Debug().Int64("chunks", n).Msg("audio forwarded")
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return ErrBridgeClosed
		case <-ticker.C:
		}
	}
}

// Close asks the service to finish the stream and closes the socket.
// Calling it more than once is harmless.
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		b.writeMu.Lock()
		_ = b.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		_ = b.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		b.writeMu.Unlock()
		err = b.conn.Close()
	})
	return err
}

// Done is closed once the read loop has exited.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

type fluxMessage struct {
	Type       string `json:"type"`
	Event      string `json:"event"`
	Transcript string `json:"transcript"`
	TurnIndex  int    `json:"turn_index"`
}

func (b *Bridge) readLoop() {
	defer func() {
		close(b.signals)
		close(b.done)
	}()

	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			if b.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			b.log.Warn().Err(err).Msg("transcription stream ended")
			b.emit(Signal{Kind: ConnectionError, Reason: err.Error()})
			return
		}

		sig, ok := b.parse(data)
		if ok {
			b.emit(sig)
		}
	}
}

// parse maps one upstream message to a signal. Messages that carry no
// signal report false.
func (b *Bridge) parse(data []byte) (Signal, bool) {
	var msg fluxMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		b.log.Warn().Err(err).Msg("skipping malformed transcription message")
		return Signal{}, false
	}

	if msg.Type != "TurnInfo" {
		b.log.Debug().Str("type", msg.Type).Msg("ignoring transcription message")
		return Signal{}, false
	}

	text := strings.TrimSpace(msg.Transcript)
	switch msg.Event {
	case "StartOfTurn":
		return Signal{Kind: TurnStarted}, true
	case "Update":
		if text == "" {
			return Signal{}, false
		}
		return Signal{Kind: InterimTranscript, Text: text}, true
	case "EndOfTurn":
		if text == "" {
			return Signal{}, false
		}
		return Signal{Kind: FinalTranscript, Text: text}, true
	default:
		b.log.Debug().Str("event", msg.Event).Msg("ignoring turn event")
		return Signal{}, false
	}
}

// emit delivers a signal unless the bridge has been closed by the caller.
func (b *Bridge) emit(sig Signal) {
	if b.closed.Load() && sig.Kind != ConnectionError {
		return
	}
	select {
	case b.signals <- sig:
	case <-time.After(5 * time.Second):
		b.log.Warn().Str("signal", sig.Kind.String()).Msg("dropping signal, consumer not reading")
	}
}
