package main

import (
	"fmt"

	"github.com/miovo/miovo/internal/ttypes"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
)

var speakersCmd = &cobra.Command{
	Use:     "speakers [QUERY]",
	Short:   "List the voices the backend offers",
	Long:    paragraph(fmt.Sprintf("\nList every voice style of the backend. A %s narrows the list by fuzzy matching names and ids.", keyword("query"))),
	Example: paragraph("miovo speakers\nmiovo speakers anneli"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logToStderr()

		config, err := loadConfig()
		if err != nil {
			return err
		}
		engine, err := newEngine(config)
		if err != nil {
			return err
		}
		defer func() { _ = engine.Close() }()

		voices, err := engine.Voices(cmd.Context())
		if err != nil {
			return fmt.Errorf("unable to list voices: %w", err)
		}
		if len(args) == 1 {
			voices = filterVoices(voices, args[0])
		}
		if len(voices) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No voices found.")
			return nil
		}

		w := cmd.OutOrStdout()
		for _, v := range voices {
			fmt.Fprintf(w, "%s  %s %s\n", keyword(v.ID), v.Name, subtle(fmt.Sprintf("(style %d)", v.SpeakerID)))
		}
		return nil
	},
}

// filterVoices keeps the voices whose name or id fuzzy-matches query, best
// match first.
func filterVoices(voices []ttypes.Voice, query string) []ttypes.Voice {
	targets := make([]string, len(voices))
	for i, v := range voices {
		targets[i] = v.Name + " " + v.ID
	}

	matches := fuzzy.Find(query, targets)
	out := make([]ttypes.Voice, len(matches))
	for i, m := range matches {
		out[i] = voices[m.Index]
	}
	return out
}
