package browser

import (
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// startXvfb launches a virtual display for hosts without a real screen.
func startXvfb(display string, log *slog.Logger) (*exec.Cmd, error) {
	cmd := exec.Command("Xvfb", display, "-screen", "0", "1920x1080x24", "-ac")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start xvfb: %w", err)
	}
	time.Sleep(500 * time.Millisecond)
	log.Info("browser: xvfb started", "display", display, "pid", cmd.Process.Pid)
	return cmd, nil
}

func stopXvfb(cmd *exec.Cmd, log *slog.Logger) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	cmd.Process.Kill()
	cmd.Wait()
	log.Info("browser: xvfb stopped")
}
