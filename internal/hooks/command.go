package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/foodvoice/internal/config"
)

const defaultCommandTimeout = 10 * time.Second

// CommandHandler runs a shell command with the payload as JSON on stdin.
// FOODVOICE_EVENT is set in the command's environment.
func CommandHandler(entry config.HookEntry) Handler {
	timeout := defaultCommandTimeout
	if entry.Timeout > 0 {
		timeout = time.Duration(entry.Timeout) * time.Millisecond
	}

	return func(ctx context.Context, p Payload) error {
		input, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding hook payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", entry.Command)
		cmd.Stdin = bytes.NewReader(input)
		cmd.Env = append(os.Environ(), "FOODVOICE_EVENT="+p.Event)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("hook %q timed out after %s", entry.Command, timeout)
			}
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("hook %q: %w: %s", entry.Command, err, msg)
			}
			return fmt.Errorf("hook %q: %w", entry.Command, err)
		}
		return nil
	}
}

// RegisterConfig registers a CommandHandler for every configured hook.
// Unknown event names are logged and skipped.
func (m *Manager) RegisterConfig(cfg config.HooksConfig) int {
	n := 0
	for event, entries := range cfg {
		if !Known(event) {
			m.log.Warn().Str("event", event).Msg("ignoring hooks for unknown event")
			continue
		}
		for i, entry := range entries {
			if strings.TrimSpace(entry.Command) == "" {
				continue
			}
			m.On(event, fmt.Sprintf("config:%s[%d]", event, i), CommandHandler(entry))
			n++
		}
	}
	return n
}
