package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/miovo/miovo/internal/audio"
	"github.com/miovo/miovo/internal/tts"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	exportDir  string
	exportJobs int

	exportCmd = &cobra.Command{
		Use:     "export [FILE|-]",
		Short:   "Synthesize a script into one WAV file",
		Long:    paragraph(fmt.Sprintf("\nSynthesize every line and %s the audio, in line order, into a single WAV file. Lines that fail are left out.", keyword("merge"))),
		Example: paragraph("miovo export script.txt\nmiovo export --dir ~/exports --jobs 4 script.txt"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runExport,
	}
)

func init() {
	exportCmd.Flags().StringVarP(&exportDir, "dir", "d", "", "output directory (default export.dir)")
	exportCmd.Flags().IntVarP(&exportJobs, "jobs", "j", 1, "lines synthesized at once")
}

func runExport(cmd *cobra.Command, args []string) error {
	logToStderr()

	text, _, err := readInput(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("nothing to export")
	}
	if exportJobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", exportJobs)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	config, err := loadConfig()
	if err != nil {
		return err
	}
	if exportDir != "" {
		if config.ExportDir, err = homedir.Expand(exportDir); err != nil {
			return fmt.Errorf("unable to expand export dir: %w", err)
		}
	}

	engine, err := newEngine(config)
	if err != nil {
		return err
	}
	// Export never plays, so no output device is opened.
	studio, err := newStudio(config, engine, audio.DefaultMockPlayer())
	if err != nil {
		return err
	}
	defer func() { _ = studio.Close() }()

	studio.Paste(text)
	if _, err := studio.LoadVoices(ctx); err != nil {
		log.Warn("using fallback voices", "error", err)
	}

	if err := generateAll(ctx, studio, exportJobs, cmd.ErrOrStderr()); err != nil {
		return err
	}

	path, size, err := studio.Export(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %s (%s)\n", path, humanize.Bytes(uint64(size))) //nolint:gosec
	return nil
}

// generateAll synthesizes every line with at most jobs requests in flight.
// Failed lines are reported and skipped; only cancellation aborts.
func generateAll(ctx context.Context, studio *tts.Studio, jobs int, w io.Writer) error {
	lines := studio.Lines()
	var failed atomic.Int32

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, line := range lines {
		g.Go(func() error {
			if _, err := studio.Generate(ctx, line.ID); err != nil {
				if tts.IsCanceled(err) {
					return err
				}
				failed.Add(1)
				fmt.Fprintf(w, "%s line %d: %v\n", failMark, i+1, err)
				return nil
			}
			fmt.Fprintf(w, "%s line %d\n", okMark, i+1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if n := int(failed.Load()); n > 0 {
		log.Warn("some lines were left out", "failed", n, "total", len(lines))
	}
	return nil
}
