// Package main provides the entry point for the miovo CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/miovo/miovo/ui"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	engineName string
	backendURL string
	voiceID    string
	mouse      bool
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "miovo [FILE|-]",
		Short: "Read scripts aloud, line by line",
		Long: paragraph(
			fmt.Sprintf("\nPaste a script, pick a voice and %s one line at a time.", keyword("listen")),
		),
		Example: paragraph("miovo script.txt\npbpaste | miovo\nmiovo --engine aivis --voice <id> script.txt"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	mouse = viper.GetBool("mouse")
	if viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	if !needsBackend(cmd) {
		return nil
	}
	_, err := loadConfig()
	return err
}

// needsBackend reports whether cmd talks to a synthesis backend and so
// needs a valid studio config.
func needsBackend(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "config", "man", "help", "completion":
			return false
		}
	}
	return true
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// readInput returns the script text and, for files, the absolute path.
// "-" and a piped stdin read from stdin; no argument yields an empty script.
func readInput(args []string) (text string, path string, err error) {
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}

	if arg == "" {
		yes, err := stdinIsPipe()
		if err != nil {
			return "", "", err
		}
		if !yes {
			return "", "", nil
		}
		arg = "-"
	}

	if arg == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("unable to read from stdin: %w", err)
		}
		return string(b), "", nil
	}

	p, err := homedir.Expand(arg)
	if err != nil {
		return "", "", fmt.Errorf("unable to expand path: %w", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", "", fmt.Errorf("unable to open file: %w", err)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", "", fmt.Errorf("unable to get absolute path: %w", err)
	}
	return string(b), abs, nil
}

func execute(cmd *cobra.Command, args []string) error {
	text, path, err := readInput(args)
	if err != nil {
		return err
	}
	return runTUI(cmd.Context(), path, text)
}

func runTUI(ctx context.Context, path, text string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the studio needs a terminal; use `miovo say` or `miovo export` for headless use")
	}

	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	config, err := loadConfig()
	if err != nil {
		return err
	}

	cfg.Path = path
	cfg.EnableMouse = mouse
	cfg.Engine = string(config.Engine)
	cfg.URL = config.URL

	engine, err := newEngine(config)
	if err != nil {
		return err
	}

	stopMetrics, err := startMetrics(ctx, healthCheckers(engine, nil))
	if err != nil {
		return err
	}
	defer stopMetrics()

	device, err := openDevice()
	if err != nil {
		return err
	}

	studio, err := newStudio(config, engine, device)
	if err != nil {
		return err
	}
	defer func() { _ = studio.Close() }()
	studio.Paste(text)

	// Run Bubble Tea program
	if _, err := ui.NewProgram(cfg, studio).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}

	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	flags.StringVarP(&engineName, "engine", "e", "", "synthesis backend (gateway or aivis)")
	flags.StringVarP(&backendURL, "url", "u", "", "backend base URL")
	flags.StringVar(&voiceID, "voice", "", "preferred voice id")
	flags.BoolVar(&debug, "debug", false, "log at debug level")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("tts.engine", flags.Lookup("engine"))
	_ = viper.BindPFlag("tts.url", flags.Lookup("url"))
	_ = viper.BindPFlag("tts.voice", flags.Lookup("voice"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	setDefaults()

	rootCmd.AddCommand(
		configCmd,
		manCmd,
		speakersCmd,
		sayCmd,
		exportCmd,
		healthCmd,
		rvcCmd,
	)
}

func setDefaults() {
	viper.SetDefault("tts.engine", "gateway")
	viper.SetDefault("tts.url", "")
	viper.SetDefault("tts.timeout", "0s")
	viper.SetDefault("tts.requests_per_minute", 0)
	viper.SetDefault("tts.speed", 1.0)
	viper.SetDefault("tts.pitch", 0.0)
	viper.SetDefault("tts.intonation", 1.0)
	viper.SetDefault("tts.volume", 1.0)
	viper.SetDefault("tts.voice", "")
	viper.SetDefault("cache.compress", false)
	viper.SetDefault("cache.level", 3)
	viper.SetDefault("audio.sample_rate", 44100)
	viper.SetDefault("audio.channels", 1)
	viper.SetDefault("audio.buffer_size", "100ms")
	viper.SetDefault("export.dir", ".")
	viper.SetDefault("rvc.url", "")
	viper.SetDefault("rvc.service_url", "")
	viper.SetDefault("metrics.addr", "")
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "miovo")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "miovo")}, dirs...)
	}

	if c := os.Getenv("MIOVO_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("miovo")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("miovo")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "miovo.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
