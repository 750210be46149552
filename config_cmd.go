package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const defaultConfig = `# Synthesis backend
tts:
  # "gateway" (studio gateway) or "aivis" (AivisSpeech engine)
  engine: "gateway"
  # backend URL; empty uses http://localhost:8000 or http://localhost:10101
  url: ""
  # per-request timeout, e.g. "30s"; "0s" waits forever
  timeout: "0s"
  # throttle synthesis requests; 0 disables
  requests_per_minute: 0
  # preferred voice id; see "miovo speakers"
  voice: ""
  # voice controls
  speed: 1.0       # 0.5 - 2.0
  pitch: 0.0       # -1.0 - 1.0
  intonation: 1.0  # 0.0 - 2.0
  volume: 1.0      # 0.0 - 2.0

# Synthesized audio kept in memory
cache:
  # store payloads zstd-compressed
  compress: false
  level: 3

# Audio output
audio:
  sample_rate: 44100  # 44100 or 48000
  channels: 1
  buffer_size: "100ms"

# Where "ctrl+s" and "miovo export" write WAV files
export:
  dir: "."

# Voice conversion
rvc:
  # gateway URL serving /rvc routes; empty uses tts.url
  url: ""
  # RVC service URL, needed for vocal separation
  service_url: ""

# Serve /metrics, /healthz and /readyz while the studio runs, e.g. "127.0.0.1:9464"
metrics:
  addr: ""

# mouse support
mouse: false
`

var (
	showConfig bool

	configCmd = &cobra.Command{
		Use:     "config",
		Hidden:  false,
		Short:   "Edit the miovo config file",
		Long:    paragraph(fmt.Sprintf("\n%s the miovo config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
		Example: paragraph("miovo config\nmiovo config --show\nmiovo config --config path/to/config.yml"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showConfig {
				return printConfig(cmd)
			}

			if err := ensureConfigFile(); err != nil {
				return err
			}

			c, err := editor.Cmd("MioVo", configFile)
			if err != nil {
				return fmt.Errorf("unable to set config file: %w", err)
			}
			c.Stdin = os.Stdin
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			if err := c.Run(); err != nil {
				return fmt.Errorf("unable to run command: %w", err)
			}

			fmt.Println("Wrote config file to:", configFile)
			return nil
		},
	}
)

func init() {
	configCmd.Flags().BoolVar(&showConfig, "show", false, "print the effective configuration and exit")
}

// printConfig writes the merged flags, env and file settings as YAML.
func printConfig(cmd *cobra.Command) error {
	out, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("unable to encode config: %w", err)
	}
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintln(cmd.OutOrStdout(), "# "+used)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
