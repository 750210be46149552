package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	HomeDir     string `env:"HOME"`
	EnableMouse bool

	// Path of the file the lines were loaded from; empty for stdin or an
	// empty studio. When set, the file is watched and reloaded on change.
	Path string

	// Engine and URL are shown in the status bar.
	Engine string
	URL    string

	// For debugging the UI
	StatusMessageTimeout time.Duration `env:"MIOVO_STATUS_TIMEOUT" envDefault:"3s"`
	AltScreen            bool          `env:"MIOVO_ALT_SCREEN"     envDefault:"true"`
}
