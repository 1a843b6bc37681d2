package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/soyeahso/foodvoice/internal/agent"
	"github.com/soyeahso/foodvoice/internal/llm"
	"github.com/soyeahso/foodvoice/internal/order"
)

func newChatCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant by typing instead of speaking",
		Long: `Runs the same conversation engine and tools as a voice session, reading
one utterance per line from stdin. Type /confirm to place the order the
assistant last proposed, /reset to start over, or /quit to exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := validate(&cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.engine == nil {
				return errNoLLM
			}

			s := &chatSession{
				id:     uuid.NewString(),
				engine: a.engine,
				orders: a.orders,
				model:  model,
				state:  &agent.MemoryState{},
				out:    cmd.OutOrStdout(),
			}
			return s.loop(ctx, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model override for this chat")
	return cmd
}

type orderRunner interface {
	Run(ctx context.Context, sessionID string, d *order.Draft) (string, *order.Summary, error)
}

type chatSession struct {
	id      string
	engine  responder
	orders  orderRunner
	model   string
	state   *agent.MemoryState
	history []llm.Message
	out     io.Writer
}

type responder interface {
	GenerateReply(ctx context.Context, history []llm.Message, utterance string, opts agent.ReplyOptions, tc *agent.ToolContext) (*agent.Reply, error)
}

func (s *chatSession) loop(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(s.out, "Tell me what you're hungry for. /confirm places the proposed order, /quit exits.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			s.history = nil
			s.state = &agent.MemoryState{}
			fmt.Fprintln(s.out, "Starting over.")
			continue
		case "/confirm":
			if err := s.confirm(ctx); err != nil {
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
			continue
		}
		if err := s.turn(ctx, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

func (s *chatSession) turn(ctx context.Context, text string) error {
	tc := &agent.ToolContext{
		SessionID: s.id,
		State:     s.state,
		Progress: func(ev agent.ProgressEvent) {
			if ev.Status == agent.StatusStarted {
				fmt.Fprintf(s.out, "  [%s]\n", ev.Function)
			}
		},
	}
	reply, err := s.engine.GenerateReply(ctx, s.history, text, agent.ReplyOptions{Model: s.model}, tc)
	if err != nil {
		return err
	}
	s.history = append(s.history, reply.Messages...)
	fmt.Fprintln(s.out, reply.Text)
	if reply.UIUpdate != nil {
		data, err := json.MarshalIndent(reply.UIUpdate, "", "  ")
		if err == nil {
			fmt.Fprintln(s.out, string(data))
		}
		fmt.Fprintln(s.out, "Type /confirm to place this order.")
	}
	return nil
}

func (s *chatSession) confirm(ctx context.Context) error {
	d, err := order.FromConfirmation(s.state.PendingOrder(), s.state.Preferences())
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Placing your order on %s...\n", d.Orders[0].Platform)
	id, summary, err := s.orders.Run(ctx, s.id, d)
	if err != nil {
		return err
	}
	s.state.SetPendingOrder(nil)
	return printSummary(s.out, id, summary)
}

func printSummary(w io.Writer, id string, summary *order.Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "order %s: %d of %d platform orders succeeded\n", id, summary.SuccessfulOrders, summary.TotalOrders)
	fmt.Fprintln(w, string(data))
	return nil
}
