package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/foodvoice/internal/config"
	"github.com/soyeahso/foodvoice/internal/gateway"
	"github.com/soyeahso/foodvoice/internal/llm"
	"github.com/soyeahso/foodvoice/internal/version"
)

func newStatusCmd() *cobra.Command {
	var gatewayURL string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show foodvoice status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "foodvoice %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:   %s\n", paths.Config)
			fmt.Fprintf(out, "Data:     %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:     %s\n", paths.Logs)
			fmt.Fprintln(out)

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:   not found (using defaults)")
			}
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:   error loading: %v\n", err)
				return nil
			}
			printConfigSummary(out, cfg)

			if gatewayURL == "" {
				gatewayURL = localGatewayURL(cfg.Gateway)
			}
			health, err := checkGateway(cmd.Context(), gatewayURL)
			if err != nil {
				fmt.Fprintf(out, "Server:   not reachable at %s (%v)\n", gatewayURL, err)
			} else {
				fmt.Fprintf(out, "Server:   %s at %s, version %s, %d active session(s), up %s\n",
					health.Status, gatewayURL, health.Version, health.Sessions,
					time.Duration(health.UptimeSeconds)*time.Second)
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&gatewayURL, "url", "", "gateway base URL (default derived from config)")
	return cmd
}

func printConfigSummary(out io.Writer, cfg config.Config) {
	auth := "none"
	if gateway.ResolveAuth(cfg.Gateway.Auth).Required() {
		auth = "token"
	}
	fmt.Fprintf(out, "Gateway:  port=%d bind=%s auth=%s tls=%v\n",
		cfg.Gateway.Port, cfg.Gateway.Bind, auth, cfg.Gateway.TLS.Enabled)

	registry := llm.NewRegistryFromConfig(cfg.LLM, log)
	if providers := registry.List(); len(providers) > 0 {
		fmt.Fprintf(out, "LLM:      %s (model %s)\n", strings.Join(providers, ", "), cfg.LLM.Model)
	} else {
		fmt.Fprintln(out, "LLM:      (none configured)")
	}

	fmt.Fprintf(out, "STT:      %s model=%s key=%s\n", cfg.STT.URL, cfg.STT.Model, configured(cfg.STT.APIKey))
	fmt.Fprintf(out, "TTS:      voice=%s model=%s key=%s\n", cfg.TTS.VoiceID, cfg.TTS.ModelID, configured(cfg.TTS.APIKey))

	placesCreds := configured(cfg.Places.APIKey)
	if cfg.Places.APIKey == "" && cfg.Places.CredentialsFile != "" {
		placesCreds = "service account"
	}
	fmt.Fprintf(out, "Places:   %s near %.4f,%.4f radius=%.0fm\n",
		placesCreds, cfg.Places.Location.Lat, cfg.Places.Location.Lng, cfg.Places.RadiusMeters)

	cache := "in-process"
	if cfg.Redis.URL != "" {
		cache = "redis"
	}
	fmt.Fprintf(out, "Cache:    %s ttl=%s\n", cache, cfg.Places.CacheTTL())
	fmt.Fprintf(out, "Memory:   %s\n", cfg.Memory.Driver)

	executor := cfg.Executor.BaseURL
	if executor == "" {
		executor = "(not configured)"
	}
	fmt.Fprintf(out, "Executor: %s\n", executor)

	hookCount := 0
	for _, entries := range cfg.Hooks {
		hookCount += len(entries)
	}
	if hookCount > 0 {
		fmt.Fprintf(out, "Hooks:    %d across %d event(s)\n", hookCount, len(cfg.Hooks))
	}
	fmt.Fprintln(out)
}

func configured(key string) string {
	if key == "" {
		return "missing"
	}
	return "set"
}

func localGatewayURL(cfg config.GatewayConfig) string {
	scheme := "http"
	if cfg.TLS.Enabled {
		scheme = "https"
	}
	host := "127.0.0.1"
	if cfg.Bind == "custom" && cfg.CustomBindHost != "" {
		host = cfg.CustomBindHost
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, cfg.Port)
}

func checkGateway(ctx context.Context, baseURL string) (*gateway.HealthResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/health", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health returned %s", resp.Status)
	}
	var health gateway.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decoding health: %w", err)
	}
	return &health, nil
}
