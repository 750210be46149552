package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/miovo/miovo/internal/tts"
	"github.com/miovo/miovo/internal/ttypes"
	"github.com/spf13/cobra"
)

var (
	saySpeed float64

	sayCmd = &cobra.Command{
		Use:     "say [FILE|-]",
		Short:   "Read a script aloud without the studio UI",
		Long:    paragraph(fmt.Sprintf("\nSynthesize every line, then %s them in order. Lines that fail to synthesize are skipped. Press ctrl+c to stop.", keyword("play"))),
		Example: paragraph("miovo say script.txt\necho こんにちは | miovo say --speed 1.25"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runSay,
	}
)

func init() {
	sayCmd.Flags().Float64Var(&saySpeed, "speed", tts.DefaultSpeed, "playback speed multiplier (0.5 - 2.0)")
}

func runSay(cmd *cobra.Command, args []string) error {
	logToStderr()

	text, _, err := readInput(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("nothing to read")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	config, err := loadConfig()
	if err != nil {
		return err
	}
	engine, err := newEngine(config)
	if err != nil {
		return err
	}
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
	if _, err := studio.LoadVoices(ctx); err != nil {
		log.Warn("using fallback voices", "error", err)
	}
	if err := studio.Controller().SetPlaybackSpeed(saySpeed); err != nil {
		return err
	}

	return readAloud(ctx, studio, cmd.ErrOrStderr())
}

// readAloud runs one play-all session and reports progress to w. It returns
// when the session ends or ctx is done.
func readAloud(ctx context.Context, studio *tts.Studio, w io.Writer) error {
	ctrl := studio.Controller()
	lines := studio.Lines()
	index := make(map[string]int, len(lines))
	for i, l := range lines {
		index[l.ID] = i
	}

	var played bool
	show := func(e tts.Event) (done bool) {
		switch e.Type {
		case tts.EventHighlight:
			if i, ok := index[e.LineID]; ok {
				played = true
				fmt.Fprintf(w, "▶ %s %s\n", subtle(fmt.Sprintf("%d/%d", i+1, len(lines))), lines[i].Text)
			}
		case tts.EventLineStatus:
			if e.Status == ttypes.StatusError {
				fmt.Fprintf(w, "%s line %d skipped\n", failMark, index[e.LineID]+1)
			}
		case tts.EventCompleted:
			return true
		}
		return false
	}

	playErr := make(chan error, 1)
	go func() { playErr <- ctrl.Play(ctx) }()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	started := false
	for {
		select {
		case <-ctx.Done():
			ctrl.Stop()
			fmt.Fprintln(w, "Stopped.")
			return nil

		case err := <-playErr:
			if err != nil {
				return err
			}
			started = true
			playErr = nil

		case e := <-studio.Events():
			if show(e) {
				return nil
			}

		case <-ticker.C:
			// Events can be dropped under load; the controller state is
			// authoritative.
			if !started || ctrl.State() != ttypes.StateIdle {
				continue
			}
			for drained := false; !drained; {
				select {
				case e := <-studio.Events():
					show(e)
				default:
					drained = true
				}
			}
			if err := ctrl.LastError(); err != nil && !played {
				return err
			}
			return nil
		}
	}
}
