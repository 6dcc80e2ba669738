package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"go-laue-run-monitor/internal/config"
	"go-laue-run-monitor/internal/connectors/jobdb"
	"go-laue-run-monitor/internal/logging"
	"go-laue-run-monitor/internal/tui"
)

func main() {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// The table owns the terminal, so logs only go to the file.
	cfg.LogOutput = []string{"file"}
	logger := logging.New(cfg)

	store, err := jobdb.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open job database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	m := tui.New(store, cfg.DefaultJobLimit,
		tui.WithInterval(cfg.TUIRefreshInterval),
		tui.WithQueryTimeout(cfg.DBQueryTimeout),
		tui.WithLogger(logger),
	)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		logger.Error().Err(err).Msg("Run monitor exited with error")
		fmt.Fprintf(os.Stderr, "run monitor: %v\n", err)
		os.Exit(1)
	}
}
