// Package logging builds the structured logger shared by the API server, the poller
// and the terminal client.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"

	"go-laue-run-monitor/internal/config"
)

const timeFormat = "15:04:05"

// New returns a logger writing to the outputs named in cfg.LogOutput at cfg.LogLevel.
// With no usable output it falls back to the console.
func New(cfg config.Config) arbor.ILogger {
	logger := arbor.NewLogger()

	hasFile := false
	hasConsole := false
	for _, output := range cfg.LogOutput {
		switch output {
		case "file":
			hasFile = true
		case "stdout", "console":
			hasConsole = true
		}
	}

	if hasFile && cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "warning: log directory unavailable: %v\n", err)
			hasConsole = true
		} else {
			logger = logger.WithFileWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeFile,
				FileName:   cfg.LogFile,
				TimeFormat: timeFormat,
				MaxSize:    100 * 1024 * 1024,
				MaxBackups: 3,
				OutputType: models.OutputFormatLogfmt,
			})
		}
	} else if !hasConsole {
		hasConsole = true
	}

	if hasConsole {
		logger = logger.WithConsoleWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeConsole,
			TimeFormat: timeFormat,
			OutputType: models.OutputFormatLogfmt,
		})
	}

	return logger.WithLevelFromString(cfg.LogLevel)
}

// Discard returns a logger for tests and library callers that do not care about output.
func Discard() arbor.ILogger {
	return arbor.NewLogger().WithLevelFromString("error")
}
