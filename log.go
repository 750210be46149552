package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, "miovo").CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "miovo.log"), nil
}

// setupLog sends log output to a file in the user cache dir, since the TUI
// owns the terminal. MIOVO_DEBUG raises the level to debug.
func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)

	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		// log disabled
		return func() error { return nil }, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	log.SetLevel(log.InfoLevel)
	if os.Getenv("MIOVO_DEBUG") != "" {
		log.SetLevel(log.DebugLevel)
	}
	return f.Close, nil
}

// logToStderr is used by the headless commands.
func logToStderr() {
	log.SetOutput(os.Stderr)
}
