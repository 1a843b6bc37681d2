package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soyeahso/foodvoice/internal/config"
	"github.com/soyeahso/foodvoice/internal/gateway"
	"github.com/soyeahso/foodvoice/internal/voice"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the voice gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if err := validate(&cfg); err != nil {
				return err
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(a.providers) > 0 {
				log.Info().Strs("providers", a.providers).Str("model", cfg.LLM.Model).Msg("LLM providers available")
			} else {
				log.Warn().Msg("no LLM providers found, voice sessions and planning will be unavailable")
			}

			opts := []gateway.ServerOption{
				gateway.WithHooks(a.hooks),
				gateway.WithVoice(a.voiceDeps()),
				gateway.WithSessions(voice.NewRegistry()),
				gateway.WithOrders(a.orders),
				gateway.WithOrderLookup(a.orderStore),
			}
			if a.planner != nil {
				opts = append(opts, gateway.WithPlanner(a.planner))
			}

			srv := gateway.New(cfg, log, opts...)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "gateway port (overrides config)")
	cmd.Flags().StringVar(&bind, "bind", "", "bind mode: auto, lan, loopback, custom")

	return cmd
}

// validate logs every config issue and fails if there are any.
func validate(cfg *config.Config) error {
	issues := config.Validate(cfg)
	if len(issues) == 0 {
		return nil
	}
	for _, issue := range issues {
		log.Error().Str("path", issue.Path).Msg(issue.Message)
	}
	return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
}
