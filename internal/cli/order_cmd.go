package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/soyeahso/foodvoice/internal/order"
)

func newOrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Plan, place and inspect orders without a voice session",
	}

	cmd.AddCommand(newOrderPlanCmd())
	cmd.AddCommand(newOrderRunCmd())
	cmd.AddCommand(newOrderListCmd())
	cmd.AddCommand(newOrderShowCmd())
	cmd.AddCommand(newOrderSitesCmd())
	return cmd
}

func newOrderPlanCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "plan <request>",
		Short: "Turn a free-text request into an order draft",
		Example: `  foodvoice order plan "two vegan burritos on doordash, under $30"
  foodvoice order plan "pad thai for 3" > draft.json && foodvoice order run draft.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()
			if a.planner == nil {
				return errNoLLM
			}

			res, err := a.planner.Run(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "# preferences\n%s\n\n# platforms\n%s\n\n", res.PreferencesAnalysis, res.PlatformSelection)
			}
			return writeJSON(cmd, res.Draft)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the intermediate planning stages to stderr")
	return cmd
}

func newOrderRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <draft.json>",
		Short: "Execute an order draft on its delivery platforms",
		Long:  "Reads an order draft (use - for stdin), sends each platform group to the executor and prints the summary.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var d order.Draft
			if err := json.Unmarshal(data, &d); err != nil {
				return fmt.Errorf("parsing draft: %w", err)
			}
			if err := d.Validate(); err != nil {
				return err
			}

			a, ctx, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			id, summary, err := a.orders.Run(ctx, "cli", &d)
			if err != nil {
				return err
			}
			if err := printSummary(cmd.OutOrStdout(), id, summary); err != nil {
				return err
			}
			if !summary.Success {
				return fmt.Errorf("all %d platform orders failed", summary.TotalOrders)
			}
			return nil
		},
	}
}

func newOrderListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent order runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := a.orderStore.List(ctx, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No orders yet.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tSESSION\tCREATED")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Status, r.SessionID, r.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of orders to show")
	return cmd
}

func newOrderShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <order-id>",
		Short: "Show one order run with its draft and summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			rec, err := a.orderStore.Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("order %s: %w", args[0], err)
			}
			return writeJSON(cmd, rec)
		},
	}
}

func newOrderSitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List the delivery platforms orders can be placed on",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			keys := make([]string, 0, len(order.Sites))
			for k := range order.Sites {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, k := range keys {
				s := order.Sites[k]
				fmt.Fprintf(tw, "%s\t%s\t%s\n", k, s.Name, s.URL)
			}
			tw.Flush()
		},
	}
}

// openApp loads and validates the config and wires the app under a
// signal-aware context.
func openApp() (*app, context.Context, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := validate(&cfg); err != nil {
		return nil, nil, nil, err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		stop()
		return nil, nil, nil, err
	}
	return a, ctx, func() { a.Close(); stop() }, nil
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
