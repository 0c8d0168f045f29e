package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/runner"
)

const (
	// Schedule runs the check on the 1st of every month at 09:00.
	Schedule = "0 9 1 * *"

	header = "# srcwatch - monthly source update check"
	tag    = "# srcwatch-managed"

	crontabTimeout = 10 * time.Second
)

type Manager struct {
	Runner runner.CommandRunner
}

func New(r runner.CommandRunner) *Manager {
	if r == nil {
		r = &runner.ExecRunner{}
	}
	return &Manager{Runner: r}
}

// Entry is the crontab line that runs a silent check and appends to logPath.
func Entry(binary, configPath, logPath string) string {
	cmd := binary + " check --silent"
	if configPath != "" {
		cmd += " --config " + shellQuote(configPath)
	}
	return fmt.Sprintf("%s %s >> %s 2>&1 %s", Schedule, cmd, shellQuote(logPath), tag)
}

func shellQuote(s string) string {
	if !strings.ContainsAny(s, " \t'\"$`\\") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func (m *Manager) current(ctx context.Context) (string, error) {
	out, err := m.Runner.Run(ctx, crontabTimeout, runner.Capture, "crontab", "-l")
	if err != nil {
		// crontab -l exits 1 when the user has no table yet.
		if strings.Contains(strings.ToLower(string(out)), "no crontab") {
			return "", nil
		}
		return "", fmt.Errorf("crontab -l: %w", err)
	}
	return string(out), nil
}

func managed(line string) bool {
	return strings.Contains(line, header) || strings.HasSuffix(strings.TrimSpace(line), tag)
}

// Installed reports whether a managed entry is present.
func (m *Manager) Installed(ctx context.Context) (bool, error) {
	table, err := m.current(ctx)
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(table, "\n") {
		if managed(line) {
			return true, nil
		}
	}
	return false, nil
}

// Install appends entry to the user's crontab. It returns false when a
// managed entry already exists.
func (m *Manager) Install(ctx context.Context, entry string) (bool, error) {
	table, err := m.current(ctx)
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(table, "\n") {
		if managed(line) {
			logger.Info("cron job already installed")
			return false, nil
		}
	}

	next := strings.TrimRight(table, "\n")
	if next != "" {
		next += "\n\n"
	}
	next += header + "\n" + entry + "\n"

	if err := m.write(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// Uninstall drops every managed line. It returns false when nothing matched.
func (m *Manager) Uninstall(ctx context.Context) (bool, error) {
	table, err := m.current(ctx)
	if err != nil {
		return false, err
	}

	lines := strings.Split(table, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if !managed(line) {
			kept = append(kept, line)
		}
	}
	if len(kept) == len(lines) {
		return false, nil
	}

	next := strings.TrimRight(strings.Join(kept, "\n"), "\n")
	if next != "" {
		next += "\n"
	}
	if err := m.write(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) write(ctx context.Context, table string) error {
	out, err := m.Runner.RunWithInput(ctx, crontabTimeout, []byte(table), "crontab", "-")
	if err != nil {
		return fmt.Errorf("crontab -: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}
