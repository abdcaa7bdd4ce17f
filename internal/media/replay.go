// Package media launches external media processes for prerecorded replays.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// CommandLauncher starts a configured external command for each replay,
// passing the session key, source reference, and seek offset in seconds as
// arguments. Launches are fire-and-forget: the command is started, never
// awaited.
type CommandLauncher struct {
	command string
}

// NewCommandLauncher creates a launcher for the given command. An empty
// command yields a launcher that logs and does nothing, for deployments
// without replay support.
func NewCommandLauncher(command string) *CommandLauncher {
	return &CommandLauncher{command: command}
}

// LaunchPrerecordedReplay starts the replay process at the given offset into
// the source. Only the launch itself can fail; process exit is observed in a
// background goroutine purely for logging.
func (l *CommandLauncher) LaunchPrerecordedReplay(ctx context.Context, sessionKey, sourceRef string, seekOffset time.Duration) error {
	if l.command == "" {
		slog.Warn("No replay command configured, skipping replay launch",
			"session_key", sessionKey,
			"source", sourceRef)
		return nil
	}

	seekSeconds := fmt.Sprintf("%d", int64(seekOffset.Seconds()))
	cmd := exec.Command(l.command, sessionKey, sourceRef, seekSeconds)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start replay command: %w", err)
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Warn("Replay process exited with error",
				"session_key", sessionKey,
				"error", err)
		}
	}()

	return nil
}
